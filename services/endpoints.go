package services

import (
	"fmt"

	"github.com/lborres/authstore/core"
)

// Operation ids shared by BaseEndpoints and the HTTP adapters.
const (
	OpGetSession          = "getSession"
	OpSignOut             = "signOut"
	OpRequestVerification = "requestVerification"
	OpVerifyEmail         = "verifyEmail"
	OpDeleteUser          = "deleteUser"
)

// BaseEndpoints returns framework-agnostic endpoint definitions
// for all core authentication endpoints.
//
// Adapters look endpoints up by OperationID and bind their own handlers, so
// several frameworks can share the same definitions.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:   "/session",
			Method: "GET",
			Metadata: core.EndpointMetadata{
				OperationID: OpGetSession,
				Description: "Get the current user's session data",
				Protected:   true,
			},
		},
		{
			Path:   "/sign-out",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpSignOut,
				Description: "Sign out the current user and invalidate the session",
				Protected:   true,
			},
		},
		{
			Path:   "/verify-request",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpRequestVerification,
				Description: "Send a single-use sign-in token to an email address",
			},
		},
		{
			Path:   "/verify",
			Method: "POST",
			Metadata: core.EndpointMetadata{
				OperationID: OpVerifyEmail,
				Description: "Exchange a verification token for a session",
			},
		},
		{
			Path:   "/user",
			Method: "DELETE",
			Metadata: core.EndpointMetadata{
				OperationID: OpDeleteUser,
				Description: "Delete the current user with its accounts and sessions",
				Protected:   true,
			},
		},
	}
}

// EndpointRegistry manages a collection of framework-agnostic endpoints
// and handles conflict detection for duplicate METHOD:PATH combinations.
//
// It starts with base authentication endpoints and supports registration of
// additional plugin endpoints with automatic conflict detection.
type EndpointRegistry struct {
	// endpoints stores all registered endpoints keyed by "METHOD:PATH"
	endpoints map[string]*core.Endpoint
}

// NewEndpointRegistry creates a new registry with all base authentication endpoints
// pre-registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{
		endpoints: make(map[string]*core.Endpoint),
	}

	// Register all base endpoints
	for _, ep := range BaseEndpoints() {
		if err := reg.register(&ep); err != nil {
			panic(err)
		}
	}

	return reg
}

// register adds a single endpoint to the registry with conflict detection.
// Returns error if an endpoint with the same METHOD:PATH already exists.
func (r *EndpointRegistry) register(ep *core.Endpoint) error {
	key := fmt.Sprintf("%s:%s", ep.Method, ep.Path)

	if _, exists := r.endpoints[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
	}

	r.endpoints[key] = ep
	return nil
}

// RegisterPlugin registers additional plugin endpoints to the registry.
// Returns error if any plugin endpoint conflicts with existing endpoints
// or with other plugin endpoints in the same batch.
//
// If an error occurs, no endpoints from the plugin are registered.
func (r *EndpointRegistry) RegisterPlugin(endpoints []core.Endpoint) error {
	// First, check for conflicts with existing endpoints
	for i := range endpoints {
		ep := &endpoints[i]
		key := fmt.Sprintf("%s:%s", ep.Method, ep.Path)

		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("plugin endpoint conflict: %s %s already registered", ep.Method, ep.Path)
		}
	}

	// Check for conflicts within the plugin set itself
	seen := make(map[string]bool)
	for i := range endpoints {
		ep := &endpoints[i]
		key := fmt.Sprintf("%s:%s", ep.Method, ep.Path)

		if seen[key] {
			return fmt.Errorf("plugin contains duplicate endpoint: %s %s", ep.Method, ep.Path)
		}
		seen[key] = true
	}

	// No conflicts found, register all plugin endpoints
	for i := range endpoints {
		ep := &endpoints[i]
		r.endpoints[fmt.Sprintf("%s:%s", ep.Method, ep.Path)] = ep
	}

	return nil
}

// Endpoints returns a slice of all registered endpoints
// (both base and plugin endpoints).
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		result = append(result, ep)
	}
	return result
}
