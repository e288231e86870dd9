package core

import (
	"errors"
	"fmt"
)

// Operation failure kinds. An adapter never returns these bare; they are
// carried by *OpError and matched with errors.Is.
var (
	ErrConflict      = errors.New("unique constraint violated")         // 409 Conflict
	ErrInvalidInput  = errors.New("invalid input")                      // 400 Bad Request
	ErrMissingRecord = errors.New("record to update does not exist")    // 404 Not Found
	ErrMalformed     = errors.New("malformed record")                   // 500
	ErrIntegrity     = errors.New("backend integrity violated")         // 500
	ErrUnavailable   = errors.New("backend unavailable or call failed") // 503
)

// Session errors (auth core)
var (
	ErrMissingAuthHeader = errors.New("missing authorization header") // 401
	ErrInvalidToken      = errors.New("invalid session token")        // 401
	ErrSessionExpired    = errors.New("session expired")              // 401
	ErrCacheNotFound     = errors.New("session not found in cache")
)

// Validation errors (client input)
var (
	ErrInvalidAuthHeader = errors.New("invalid authorization format, expected 'Bearer <token>'") // 401
)

// Verification errors (auth core)
var (
	ErrVerificationFailed = errors.New("verification token is invalid or was already used") // 401
	ErrTokenExpired       = errors.New("verification token expired")                        // 401
	ErrIdentifierRequired = errors.New("identifier is required")                            // 400
	ErrAccountNotLinked   = errors.New("email belongs to another account")                  // 409
	ErrAccountNotOwned    = errors.New("account belongs to another user")                   // 403
)

// Config errors (server-side configuration)
var (
	ErrAdapterRequired     = errors.New("storage adapter is required")        // 500
	ErrHTTPAdapterRequired = errors.New("http adapter is required")           // 500
	ErrSecretRequired      = errors.New("secret is required")                 // 500
	ErrSecretTooShort      = errors.New("secret too short")                   // 500
	ErrNotifierRequired    = errors.New("verification notifier is required")  // 500
	ErrNotSupported        = errors.New("operation not supported by adapter") // 501
)

// OpError is an OperationFailure: any adapter error other than "not found".
type OpError struct {
	Op   string // adapter verb, e.g. "CreateUser"
	Kind error  // one of the kinds above
	Err  error  // backend cause, may be nil
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Fail builds an OperationFailure. An err that already is an *OpError is
// returned unchanged so kinds are not double wrapped.
func Fail(op string, kind error, err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

// IsOperationFailure reports whether err came from an adapter call.
func IsOperationFailure(err error) bool {
	var opErr *OpError
	return errors.As(err, &opErr)
}
