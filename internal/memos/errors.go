package memos

import "fmt"

// RemoteError is returned when the OpenMem API answers with a non-success
// HTTP status. It carries everything the caller needs to surface the failure
// verbatim: the numeric code, the status text, and the response body.
// Remote failures are never retried.
type RemoteError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("openmem api: %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// TransportError is returned when the request never produced an HTTP
// response: connection failures, cancelled contexts, or an open circuit.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("openmem api: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
