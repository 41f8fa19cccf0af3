// Package relay forwards contact-form submissions to an email API.
//
// # Overview
//
// A ContactRequest carries the submitter's name, email and message. All
// three are required. ResendSender delivers it as an HTML email to the site
// owner with reply-to set to the submitter; user input is HTML-escaped before
// it is placed in the body.
//
// # Usage Example
//
//	sender := relay.NewResendSender(relay.ResendConfig{
//		APIKey: cfg.ResendAPIKey,
//		From:   "onboarding@resend.dev",
//		To:     "lars@joonify.dev",
//	})
//	req := relay.ContactRequest{Name: "Ada", Email: "ada@example.com", Message: "Hi"}
//	if err := req.Validate(); err != nil {
//		return err
//	}
//	err := sender.Send(ctx, req)
//
// # Related Packages
//
//   - pkg/gateway: Serves POST /api/contact
package relay
