package models

import "time"

// Payment methods supported by the checkout flow.
const (
	PaymentMethodCard = "card"
	PaymentMethodPix  = "pix"
)

// Payment statuses. completed, failed and expired are terminal; a payment row
// is immutable once it reaches one of them.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusExpired   = "expired"
)

// Payment records one checkout attempt against a subscription. PIX payments
// carry the payable payload and a hard offer expiration; card payments leave
// those columns empty.
type Payment struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UUID             string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	SubscriptionID   uint       `gorm:"not null;index" json:"subscription_id"`
	Method           string     `gorm:"type:varchar(10);not null;index:idx_payments_method_status_expiry,priority:1" json:"method"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_payments_method_status_expiry,priority:2" json:"status"`
	Provider         string     `gorm:"type:varchar(20);not null;default:''" json:"provider"`
	GatewayPaymentID string     `gorm:"type:varchar(191);not null;default:'';index" json:"gateway_payment_id"`
	AmountCents      int64      `gorm:"not null" json:"amount_cents"`
	DiscountCents    int64      `gorm:"not null;default:0" json:"discount_cents"`
	FinalAmountCents int64      `gorm:"not null" json:"final_amount_cents"`
	Currency         string     `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	QRCode           string     `gorm:"type:text" json:"qr_code,omitempty"`
	CopyPasteCode    string     `gorm:"type:text" json:"copy_paste_code,omitempty"`
	OfferExpiresAt   *time.Time `gorm:"type:timestamp;default:null;index:idx_payments_method_status_expiry,priority:3" json:"offer_expires_at,omitempty"`
	PaidAt           *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Subscription *Subscription `gorm:"foreignKey:SubscriptionID" json:"-"`
}

// IsTerminal reports whether the payment has reached an immutable status.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusExpired:
		return true
	default:
		return false
	}
}
