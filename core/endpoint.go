package core

// Endpoint is a framework-agnostic route description. HTTP adapters bind
// their own handlers to endpoints by OperationID.
type Endpoint struct {
	Path     string
	Method   string
	Metadata EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	// Protected endpoints require a valid session.
	Protected bool
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
