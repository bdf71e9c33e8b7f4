package invitations

import (
	"context"
	"time"

	"github.com/platinummonkey/backoffice/pkg/observability"
	"github.com/platinummonkey/backoffice/pkg/webhooks"
)

// Notifier delivers invitation links to invitees
type Notifier interface {
	InvitationIssued(ctx context.Context, inv *Invitation, acceptURL string) error
}

// LogNotifier writes invitation links to the log instead of sending them
type LogNotifier struct {
	logger *observability.Logger
}

// NewLogNotifier creates a notifier that logs through logger
func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// InvitationIssued implements Notifier
func (n *LogNotifier) InvitationIssued(ctx context.Context, inv *Invitation, acceptURL string) error {
	n.logger.WithFields(map[string]interface{}{
		"invitation_id": inv.ID,
		"tenant_id":     inv.TenantID,
		"email":         inv.Email,
		"role":          inv.RoleSlug,
		"expires_at":    inv.ExpiresAt,
		"accept_url":    acceptURL,
	}).Info("invitation issued")
	return nil
}

// EventTypeInvitationIssued is the webhook event type for new invitations
const EventTypeInvitationIssued = "invitation.issued"

// EventSender posts events to the mail service
type EventSender interface {
	Send(ctx context.Context, eventType string, data interface{}) (*webhooks.Delivery, error)
}

// WebhookNotifier hands invitation links to an external mailer over a signed webhook
type WebhookNotifier struct {
	sender EventSender
	logger *observability.Logger
}

// NewWebhookNotifier creates a notifier that posts through sender
func NewWebhookNotifier(sender EventSender, logger *observability.Logger) *WebhookNotifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &WebhookNotifier{sender: sender, logger: logger}
}

type invitationIssuedPayload struct {
	InvitationID int64     `json:"invitation_id"`
	TenantID     int64     `json:"tenant_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	InvitedBy    int64     `json:"invited_by"`
	ExpiresAt    time.Time `json:"expires_at"`
	AcceptURL    string    `json:"accept_url"`
}

// InvitationIssued implements Notifier
func (n *WebhookNotifier) InvitationIssued(ctx context.Context, inv *Invitation, acceptURL string) error {
	delivery, err := n.sender.Send(ctx, EventTypeInvitationIssued, invitationIssuedPayload{
		InvitationID: inv.ID,
		TenantID:     inv.TenantID,
		Email:        inv.Email,
		Role:         inv.RoleSlug,
		InvitedBy:    inv.InvitedBy,
		ExpiresAt:    inv.ExpiresAt,
		AcceptURL:    acceptURL,
	})
	if err != nil {
		return err
	}
	n.logger.WithFields(map[string]interface{}{
		"invitation_id": inv.ID,
		"event_id":      delivery.EventID,
		"attempts":      delivery.Attempts,
	}).Debug("invitation webhook delivered")
	return nil
}
