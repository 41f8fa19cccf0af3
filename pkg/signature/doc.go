// Package signature signs and verifies payloads exchanged with the stats actor.
//
// # Overview
//
// Writes to the live stats snapshot are authenticated with an HMAC-SHA256 tag
// computed over the exact request body with the process-wide shared secret.
// The tag travels hex encoded in the X-Signature header.
//
// # Usage Example
//
// Sender side:
//
//	body, _ := json.Marshal(snapshot)
//	req.Header.Set(signature.Header, signature.Sign(secret, body))
//
// Receiver side:
//
//	if !signature.Verify(secret, body, r.Header.Get(signature.Header)) {
//		return actor.ErrInvalidSignature
//	}
//
// # Related Packages
//
//   - pkg/actor: Verifies tags before merging an update
//   - pkg/analytics: Signs merged snapshots at the end of a cycle
package signature
