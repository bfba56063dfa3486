package models

import "time"

// Subscription statuses. `cancelled` is terminal; every other status can still
// move. At most one subscription per student may be pending or active at a time.
const (
	SubscriptionStatusPending   = "pending"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusSuspended = "suspended"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription is the canonical per-student entitlement record. Status is
// written exclusively by the subscription service transition function.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UUID                   string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	StudentID              uint       `gorm:"not null;index:idx_subscriptions_student_status,priority:1" json:"student_id"`
	PlanID                 uint       `gorm:"not null;index" json:"plan_id"`
	Status                 string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_subscriptions_student_status,priority:2;index:idx_subscriptions_status_period_end,priority:1" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null;index:idx_subscriptions_status_period_end,priority:2" json:"current_period_end,omitempty"`
	CancelledAt            *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	Provider               string     `gorm:"type:varchar(20);not null;default:''" json:"provider"`
	GatewaySubscriptionID  string     `gorm:"type:varchar(191);not null;default:'';index" json:"gateway_subscription_id"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Plan    *Plan    `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Student *Student `gorm:"foreignKey:StudentID" json:"-"`
}

// IsValidSubscriptionStatus reports whether s names a known lifecycle status.
func IsValidSubscriptionStatus(s string) bool {
	switch s {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusSuspended, SubscriptionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the subscription can never transition again.
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled
}

// BlocksNewCheckout reports whether this subscription prevents the student
// from opening a fresh checkout (pending retries are handled separately).
func (s *Subscription) BlocksNewCheckout() bool {
	switch s.Status {
	case SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusSuspended:
		return true
	default:
		return false
	}
}
