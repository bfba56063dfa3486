package models

import "time"

// Student holds the learner account plus a denormalized mirror of the current
// subscription state. The mirror columns are written only by the subscription
// service, in the same transaction as the subscription row, and are read by
// the course-access checks of the wider platform.
type Student struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Name                  string     `gorm:"type:varchar(100);not null" json:"name"`
	Email                 string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	SubscriptionStatus    string     `gorm:"type:varchar(20);not null;default:'';index" json:"subscription_status"`
	SubscriptionExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
