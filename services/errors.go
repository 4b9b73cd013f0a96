package services

import "errors"

// Kind classifies an APIError.
type Kind int

const (
	// KindInternal means storage failed; the cause is logged, never shown.
	KindInternal Kind = iota
	// KindNotFound means the referenced post does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// User-facing messages.
const (
	MsgCreateFailed = "Failed to create post. Please try again."
	MsgListFailed   = "Failed to fetch posts. Please refresh the page."
	MsgReplyFailed  = "Failed to add reply. Please try again."
	MsgPostNotFound = "Post not found"
)

// APIError is the only error type besides validation errors that leaves the service.
type APIError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Cause }

func internal(msg string, cause error) *APIError {
	return &APIError{Kind: KindInternal, Message: msg, Cause: cause}
}

func notFound() *APIError {
	return &APIError{Kind: KindNotFound, Message: MsgPostNotFound}
}

// IsNotFound reports whether err is a NotFound APIError.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}
