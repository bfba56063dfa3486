package models

import "time"

// Plan is a purchasable subscription plan. Prices are stored in cents to avoid
// float arithmetic on money.
type Plan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"uuid"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	PriceCents   int64     `gorm:"not null" json:"price_cents"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'BRL'" json:"currency"`
	IntervalDays int       `gorm:"not null;default:30" json:"interval_days"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
