package models

import "time"

// Gateway providers the adapter layer knows how to talk to.
const (
	GatewayProviderStripe    = "stripe"
	GatewayProviderPagBrasil = "pagbrasil"
)

// PaymentConfig is the single durable row holding the active gateway selection
// and payment tuning knobs. Reads go through the cached store in
// internal/pkg/paymentconfig; only the newest row is authoritative.
type PaymentConfig struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ActiveGateway       string    `gorm:"type:varchar(20);not null;default:'stripe'" json:"active_gateway" validate:"required,oneof=stripe pagbrasil"`
	APIKey              string    `gorm:"type:text" json:"-"`
	WebhookSecret       string    `gorm:"type:text" json:"-"`
	PixExpirationMinutes int      `gorm:"not null;default:30" json:"pix_expiration_minutes" validate:"min=5,max=1440"`
	PixDiscountPercent  int       `gorm:"not null;default:0" json:"pix_discount_percent" validate:"min=0,max=50"`
	MaxPaymentRetries   int       `gorm:"not null;default:3" json:"max_payment_retries" validate:"min=1,max=10"`
	CacheTTLSeconds     int       `gorm:"not null;default:300" json:"cache_ttl_seconds" validate:"min=1,max=3600"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
