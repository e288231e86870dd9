package services

import (
	"context"
	"log/slog"

	"github.com/lborres/authstore/core"
)

// LogNotifier writes verification requests to the log instead of sending
// them. Meant for development.
type LogNotifier struct {
	logger   *slog.Logger
	basePath string
}

var _ core.VerificationNotifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger, basePath string) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, basePath: basePath}
}

func (n *LogNotifier) SendVerificationRequest(ctx context.Context, req core.VerificationRequest) error {
	n.logger.InfoContext(ctx, "verification token issued",
		slog.String("identifier", req.Identifier),
		slog.Time("expires_at", req.Expires),
		slog.String("verify", n.basePath+"/verify"),
		slog.String("token", req.Token),
	)
	return nil
}
