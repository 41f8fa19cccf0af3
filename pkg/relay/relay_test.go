package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ContactRequest
		missing []string
	}{
		{"complete", ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "Hi"}, nil},
		{"missing message", ContactRequest{Name: "Ada", Email: "ada@example.com"}, []string{"message"}},
		{"blank name", ContactRequest{Name: "  ", Email: "ada@example.com", Message: "Hi"}, []string{"name"}},
		{"empty", ContactRequest{}, []string{"name", "email", "message"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.missing == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.missing, verr.Fields)
		})
	}
}

func TestResendSender_Send(t *testing.T) {
	var got resendEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &got))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"id":"email-1"}`)
	}))
	defer server.Close()

	sender := NewResendSender(ResendConfig{
		Endpoint: server.URL,
		APIKey:   "re_key",
		From:     "onboarding@resend.dev",
		To:       "lars@joonify.dev",
		Timeout:  time.Second,
	})

	err := sender.Send(context.Background(), ContactRequest{
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "<script>alert(1)</script>",
	})
	require.NoError(t, err)

	assert.Equal(t, "onboarding@resend.dev", got.From)
	assert.Equal(t, []string{"lars@joonify.dev"}, got.To)
	assert.Equal(t, "ada@example.com", got.ReplyTo)
	assert.Equal(t, "New Contact from Ada (Joonify)", got.Subject)
	assert.Contains(t, got.HTML, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, got.HTML, "<script>")
}

func TestResendSender_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid from"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	sender := NewResendSender(ResendConfig{Endpoint: server.URL, APIKey: "re_key", Timeout: time.Second})

	err := sender.Send(context.Background(), ContactRequest{Name: "a", Email: "b", Message: "c"})
	assert.ErrorIs(t, err, ErrRelayFailed)
	assert.Contains(t, err.Error(), "status 422")
}

func TestResendSender_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	sender := NewResendSender(ResendConfig{Endpoint: url, APIKey: "re_key", Timeout: time.Second})

	err := sender.Send(context.Background(), ContactRequest{Name: "a", Email: "b", Message: "c"})
	assert.ErrorIs(t, err, ErrRelayFailed)
}
