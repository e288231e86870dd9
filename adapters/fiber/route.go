package fiber

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/authstore/core"
	"github.com/lborres/authstore/pkg/crypto"
	"github.com/lborres/authstore/services"
)

type Adapter struct {
	app  *fiber.App
	auth *core.Auth
	ids  *crypto.NanoID
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	ids, _ := crypto.NewNanoID("") // default alphabet is always valid
	return &Adapter{app: app, ids: ids}
}

// RegisterRoutes mounts every registered endpoint under auth.BasePath.
// Protected endpoints run behind requireAuth.
func (a *Adapter) RegisterRoutes(auth *core.Auth) error {
	a.auth = auth

	handlers := map[string]fiber.Handler{
		services.OpGetSession:          a.getSession,
		services.OpSignOut:             a.signOut,
		services.OpRequestVerification: a.requestVerification,
		services.OpVerifyEmail:         a.verifyEmail,
		services.OpDeleteUser:          a.deleteUser,
	}

	api := a.app.Group(auth.BasePath, a.requestID)

	for _, ep := range services.NewEndpointRegistry().Endpoints() {
		handler, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}

		methods := []string{ep.Method}
		if ep.Metadata.Protected {
			api.Add(methods, ep.Path, a.requireAuth, handler)
			continue
		}
		api.Add(methods, ep.Path, handler)
	}

	return nil
}
