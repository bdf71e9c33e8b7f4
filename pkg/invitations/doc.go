// Package invitations lets tenant members invite new users by email.
//
// Create stores only the SHA-256 hash of a random "inv_" token and hands
// the plaintext to a Notifier as an accept link. Inviting an address that
// already has a pending invitation in the tenant refreshes that invitation
// with a new token, role and expiry.
//
// Accept locks the invitation row, creates the user with the invited role
// and marks the invitation consumed in one transaction. A second accept of
// the same token fails with ErrAlreadyConsumed; a token past its expiry
// fails with ErrExpired.
//
// LogNotifier writes accept links to the log. WebhookNotifier posts a signed
// invitation.issued event for an external mailer to deliver.
//
//	svc := invitations.NewService(db, roleStore, resolver, hasher, tokens,
//		invitations.NewLogNotifier(logger), invitations.Config{TTL: 7 * 24 * time.Hour})
package invitations
