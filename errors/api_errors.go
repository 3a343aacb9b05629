package errors

import "fmt"

// APIError is the JSON error body returned by the HTTP surface.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes.
const (
	InvalidRequest         = "invalid_request"
	Unauthorized           = "unauthorized"
	NotFound               = "not_found"
	UnknownCommand         = "unknown_command"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
)

func NewInvalidRequest(description string) *APIError {
	return &APIError{Code: InvalidRequest, Description: description}
}

func NewUnauthorized(description string) *APIError {
	return &APIError{Code: Unauthorized, Description: description}
}

func NewNotFound(description string) *APIError {
	return &APIError{Code: NotFound, Description: description}
}

func NewUnknownCommand(name string) *APIError {
	return &APIError{Code: UnknownCommand, Description: fmt.Sprintf("unknown command %q", name)}
}

func NewServerError(description string) *APIError {
	return &APIError{Code: ServerError, Description: description}
}

// NewTemporarilyUnavailable tells the caller to retry the delivery.
func NewTemporarilyUnavailable(description string) *APIError {
	return &APIError{Code: TemporarilyUnavailable, Description: description}
}
