package subscription

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eduflow-br/eduflow/app/models"
)

// Repository is the persistence seam of the subscription engine. All reads
// that precede a state mutation take a row lock so concurrent webhook
// deliveries and sweeps serialize per row instead of racing.
type Repository interface {
	// Transaction runs fn against a repository bound to one database
	// transaction. Returning an error rolls everything back.
	Transaction(fn func(tx Repository) error) error

	GetStudentByID(id uint) (*models.Student, error)
	UpdateStudentMirror(studentID uint, status string, expiresAt *time.Time) error

	GetPlanByUUID(uuid string) (*models.Plan, error)
	GetPlanByID(id uint) (*models.Plan, error)

	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	GetSubscriptionByUUID(uuid string) (*models.Subscription, error)
	GetSubscriptionByID(id uint) (*models.Subscription, error)
	GetSubscriptionByIDForUpdate(id uint) (*models.Subscription, error)
	FindBlockingSubscriptionForUpdate(studentID uint) (*models.Subscription, error)
	FindSubscriptionByGatewayIDForUpdate(provider, gatewaySubscriptionID string) (*models.Subscription, error)
	GetCurrentSubscription(studentID uint) (*models.Subscription, error)
	ListSubscriptionsPastPeriodEnd(now time.Time, limit int) ([]models.Subscription, error)
	ListSubscriptions(status string, offset, limit int) ([]models.Subscription, int64, error)
	CountSubscriptionsByStatus() (map[string]int64, error)

	CreatePayment(p *models.Payment) error
	SavePayment(p *models.Payment) error
	GetPaymentByUUID(uuid string) (*models.Payment, error)
	GetPaymentByIDForUpdate(id uint) (*models.Payment, error)
	FindPaymentByGatewayIDForUpdate(provider, gatewayPaymentID string) (*models.Payment, error)
	LatestPaymentForSubscription(subscriptionID uint) (*models.Payment, error)
	CountFailedPayments(subscriptionID uint, since *time.Time) (int64, error)

	// RecordWebhookEvent inserts into the delivery ledger and reports whether
	// the row was new. A false return means the delivery is a duplicate.
	RecordWebhookEvent(ev *models.WebhookEvent) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a Repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetStudentByID(id uint) (*models.Student, error) {
	var student models.Student
	if err := r.db.First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &student, nil
}

func (r *gormRepository) UpdateStudentMirror(studentID uint, status string, expiresAt *time.Time) error {
	return r.db.Model(&models.Student{}).Where("id = ?", studentID).Updates(map[string]interface{}{
		"subscription_status":     status,
		"subscription_expires_at": expiresAt,
	}).Error
}

func (r *gormRepository) GetPlanByUUID(uuid string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("uuid = ? AND is_active = ?", uuid, true).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) GetPlanByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) GetSubscriptionByUUID(uuid string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("uuid = ?", uuid).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByIDForUpdate(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindBlockingSubscriptionForUpdate(studentID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND status IN ?", studentID, []string{
			models.SubscriptionStatusPending,
			models.SubscriptionStatusActive,
			models.SubscriptionStatusSuspended,
		}).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindSubscriptionByGatewayIDForUpdate(provider, gatewaySubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND gateway_subscription_id = ?", provider, gatewaySubscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetCurrentSubscription(studentID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Plan").
		Where("student_id = ? AND status <> ?", studentID, models.SubscriptionStatusCancelled).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListSubscriptionsPastPeriodEnd(now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("status = ? AND current_period_end IS NOT NULL AND current_period_end < ?",
		models.SubscriptionStatusActive, now).
		Order("current_period_end ASC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ListSubscriptions(status string, offset, limit int) ([]models.Subscription, int64, error) {
	q := r.db.Model(&models.Subscription{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subs []models.Subscription
	err := q.Preload("Plan").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&subs).Error
	return subs, total, err
}

func (r *gormRepository) CountSubscriptionsByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.Model(&models.Subscription{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) GetPaymentByUUID(uuid string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("uuid = ?", uuid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPaymentByIDForUpdate(id uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentByGatewayIDForUpdate(provider, gatewayPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND gateway_payment_id = ?", provider, gatewayPaymentID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) LatestPaymentForSubscription(subscriptionID uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CountFailedPayments(subscriptionID uint, since *time.Time) (int64, error) {
	q := r.db.Model(&models.Payment{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, models.PaymentStatusFailed)
	if since != nil {
		q = q.Where("created_at >= ?", *since)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *gormRepository) RecordWebhookEvent(ev *models.WebhookEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
