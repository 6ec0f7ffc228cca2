package remote

import "fmt"

// NetworkError marks a transport-level failure: connection refused, DNS,
// timeout. Retry soon.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UnauthorizedError marks a 401/403 response. The session may be refreshed
// out of band, so retry much later.
type UnauthorizedError struct {
	Status int
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: status %d", e.Status)
}

// NotFoundError marks a 404 response for the requested resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// UnknownError marks any other failed response.
type UnknownError struct {
	Status  int
	Message string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unexpected response: status %d: %s", e.Status, e.Message)
}
