package analytics

import (
	"fmt"
	"strings"
)

// UpstreamError reports a failed or malformed answer from the analytics
// provider. A cycle that hits one writes nothing.
type UpstreamError struct {
	// Op names the step that failed.
	Op string
	// StatusCode is the HTTP status, when one was received.
	StatusCode int
	// Messages holds provider-reported error messages.
	Messages []string
	// Err is the underlying error, if any.
	Err error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString("upstream ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
