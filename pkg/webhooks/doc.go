// Package webhooks delivers signed JSON events to an external HTTP endpoint.
//
// The back office uses it to hand invitation links to the mail service:
//
//	sender := webhooks.NewSender(webhooks.Config{URL: url, Secret: secret})
//	delivery, err := sender.Send(ctx, "invitation.issued", payload)
//
// Each request carries X-Backoffice-Event, X-Backoffice-Event-ID and an
// X-Backoffice-Signature of the form "sha256=<hex hmac of body>". Receivers
// check it with VerifySignature.
//
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff (RetryPolicy). Other non-2xx responses return a PermanentError
// immediately.
package webhooks
