package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRelayFailed is returned when the email API rejects or fails a send.
var ErrRelayFailed = errors.New("relay failed")

// ContactRequest is one contact-form submission.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ValidationError lists the missing contact-form fields.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing fields: %s", strings.Join(e.Fields, ", "))
}

// Validate reports a ValidationError when any field is blank.
func (r ContactRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(r.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Sender delivers contact requests.
type Sender interface {
	Send(ctx context.Context, req ContactRequest) error
}
