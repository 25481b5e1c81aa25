package transport

import "fmt"

// NotConnectedError reports a Send/SendNotification call made before Start
// succeeded, or after the transport was torn down — the same closed-taxonomy
// style internal/llm uses for its ChatProvider errors.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string { return "transport: not connected" }

// ClosedError reports the underlying connection ending while a request was
// still pending a response.
type ClosedError struct{}

func (e *ClosedError) Error() string { return "transport: connection closed" }

// TimeoutError reports a Send call that never received a matching response
// within the request's deadline.
type TimeoutError struct{ RequestID uint64 }

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: request %d timed out waiting for a response", e.RequestID)
}

// StatusError reports a non-2xx HTTP response from an HTTP or SSE transport.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: http %d: %s", e.StatusCode, e.Body)
}
