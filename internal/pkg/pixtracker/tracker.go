package pixtracker

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/eduflow-br/eduflow/app/models"
)

// Repository lists PIX offers that are due for expiration.
type Repository interface {
	// ListDuePixPayments returns pending PIX payments whose offer window
	// closed at or before now, oldest expiration first.
	ListDuePixPayments(now time.Time, limit int) ([]models.Payment, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ListDuePixPayments(now time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("method = ? AND status = ? AND offer_expires_at IS NOT NULL AND offer_expires_at <= ?",
		models.PaymentMethodPix, models.PaymentStatusPending, now).
		Order("offer_expires_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

// PixExpirer transitions one pending PIX payment to expired.
type PixExpirer interface {
	ExpirePixOffer(ctx context.Context, paymentID uint) (bool, error)
}

// Tracker sweeps over lapsed PIX offers in pages, expiring each through the
// subscription service. One bad row never stops the sweep.
type Tracker struct {
	repo     Repository
	expirer  PixExpirer
	pageSize int
	now      func() time.Time
}

const defaultPageSize = 200

func NewTracker(repo Repository, expirer PixExpirer) *Tracker {
	return &Tracker{
		repo:     repo,
		expirer:  expirer,
		pageSize: defaultPageSize,
		now:      time.Now,
	}
}

// ExpireDue walks all due offers and expires them. Returns how many payments
// were transitioned.
func (t *Tracker) ExpireDue(ctx context.Context) (int, error) {
	expired := 0
	for {
		select {
		case <-ctx.Done():
			return expired, ctx.Err()
		default:
		}

		due, err := t.repo.ListDuePixPayments(t.now(), t.pageSize)
		if err != nil {
			return expired, err
		}
		if len(due) == 0 {
			return expired, nil
		}

		progressed := 0
		for _, p := range due {
			ok, err := t.expirer.ExpirePixOffer(ctx, p.ID)
			if err != nil {
				log.Errorf("[PixTracker] Failed to expire payment %d: %v", p.ID, err)
				continue
			}
			if ok {
				expired++
				progressed++
			}
		}
		// Rows that stayed pending because of errors would repeat forever;
		// stop the pass once a page makes no progress.
		if progressed == 0 {
			return expired, nil
		}
		if len(due) < t.pageSize {
			return expired, nil
		}
	}
}
