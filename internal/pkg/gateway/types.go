package gateway

import "time"

// EventKind is the closed internal event set the webhook processor consumes.
// Provider-specific event names are normalized into one of these at the
// adapter boundary; anything else is reported as unknown and dropped upstream.
type EventKind string

const (
	EventCompleted             EventKind = "completed"
	EventFailed                EventKind = "failed"
	EventExpired               EventKind = "expired"
	EventSubscriptionCancelled EventKind = "subscription_cancelled"
	EventUnknown               EventKind = "unknown"
)

// NormalizedEvent is the provider-agnostic shape of a verified webhook event.
type NormalizedEvent struct {
	Provider              string
	ProviderEventID       string
	EventType             string
	Kind                  EventKind
	GatewayPaymentID      string
	GatewaySubscriptionID string
	AmountCents           int64
	Currency              string
}

// Known reports whether the provider event mapped onto the closed event set.
func (e *NormalizedEvent) Known() bool {
	return e.Kind != EventUnknown
}

// CheckoutParams describes a card checkout to be created at the provider.
type CheckoutParams struct {
	Reference    string // internal payment UUID, round-tripped via metadata
	StudentEmail string
	PlanName     string
	AmountCents  int64
	Currency     string
	SuccessURL   string
	CancelURL    string
}

// CardCheckout is the provider-issued redirect reference for a card checkout.
type CardCheckout struct {
	SessionID   string
	CheckoutURL string
}

// PixChargeParams describes a PIX charge with a hard offer expiration.
type PixChargeParams struct {
	Reference   string
	AmountCents int64
	Currency    string
	Description string
	ExpiresAt   time.Time
}

// PixCharge is the payable payload returned by the provider for a PIX charge.
type PixCharge struct {
	ChargeID      string
	QRCode        string
	CopyPasteCode string
}
