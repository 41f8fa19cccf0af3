package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

// DefaultResendEndpoint is Resend's send-email API.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// ResendConfig configures a ResendSender.
type ResendConfig struct {
	// Endpoint defaults to DefaultResendEndpoint.
	Endpoint string
	// APIKey is sent as a bearer token.
	APIKey string
	// From is the sender address.
	From string
	// To is the site owner's address.
	To string
	// Timeout bounds one send.
	Timeout time.Duration
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendSender sends contact requests through the Resend API.
type ResendSender struct {
	endpoint   string
	from       string
	to         string
	httpClient *http.Client
}

// NewResendSender creates a sender authenticating with cfg.APIKey.
func NewResendSender(cfg ResendConfig) *ResendSender {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultResendEndpoint
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))
	client.Timeout = cfg.Timeout

	return &ResendSender{
		endpoint:   endpoint,
		from:       cfg.From,
		to:         cfg.To,
		httpClient: client,
	}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, req ContactRequest) error {
	payload, err := json.Marshal(resendEmail{
		From:    s.from,
		To:      []string{s.to},
		ReplyTo: req.Email,
		Subject: fmt.Sprintf("New Contact from %s (Joonify)", req.Name),
		HTML:    renderHTML(req),
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrRelayFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func renderHTML(req ContactRequest) string {
	var b strings.Builder
	b.WriteString("<h3>New Message from Joonify.dev</h3>\n")
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>\n", html.EscapeString(req.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>\n", html.EscapeString(req.Email))
	b.WriteString("<p><strong>Message:</strong></p>\n")
	fmt.Fprintf(&b,
		"<blockquote style=\"background: #f4f4f4; padding: 10px; border-left: 4px solid #86efac;\">%s</blockquote>\n",
		html.EscapeString(req.Message))
	return b.String()
}
