package compose

import (
	"fmt"
	"net/http"
)

// DecodeError reports malformed or unreadable image bytes.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("failed to decode image %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PreconditionError reports an operation invoked on an empty or invalid working set.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return e.Reason }

// CompositeError reports a drawing or serialization failure after decode succeeded.
type CompositeError struct {
	Err error
}

func (e *CompositeError) Error() string { return "failed to composite images: " + e.Err.Error() }

func (e *CompositeError) Unwrap() error { return e.Err }

// ProxyError carries the message of the remote image proxy verbatim.
type ProxyError struct {
	Status  int
	Message string
}

func (e *ProxyError) Error() string { return e.Message }

// HTTPStatus falls back to 502 when the proxy did not supply a status
func (e *ProxyError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadGateway
	}
	return e.Status
}

// ArchiveError reports a zip or packaging failure.
type ArchiveError struct {
	Err error
}

func (e *ArchiveError) Error() string { return "failed to build archive: " + e.Err.Error() }

func (e *ArchiveError) Unwrap() error { return e.Err }
