package subscription

import (
	"sort"
	"time"

	"github.com/eduflow-br/eduflow/app/models"
)

// fakeRepository is an in-memory Repository. Transaction snapshots the state
// and restores it when fn fails, mirroring a rollback.
type fakeRepository struct {
	students map[uint]*models.Student
	plans    map[uint]*models.Plan
	subs     map[uint]*models.Subscription
	payments map[uint]*models.Payment
	ledger   map[string]bool

	nextSubID     uint
	nextPaymentID uint

	failSavePayment      bool
	failSaveSubscription bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		students: map[uint]*models.Student{},
		plans:    map[uint]*models.Plan{},
		subs:     map[uint]*models.Subscription{},
		payments: map[uint]*models.Payment{},
		ledger:   map[string]bool{},
	}
}

type failInjection struct{ op string }

func (e *failInjection) Error() string { return "injected failure: " + e.op }

func (f *fakeRepository) snapshot() *fakeRepository {
	c := newFakeRepository()
	for k, v := range f.students {
		s := *v
		c.students[k] = &s
	}
	for k, v := range f.plans {
		p := *v
		c.plans[k] = &p
	}
	for k, v := range f.subs {
		s := *v
		c.subs[k] = &s
	}
	for k, v := range f.payments {
		p := *v
		c.payments[k] = &p
	}
	for k, v := range f.ledger {
		c.ledger[k] = v
	}
	c.nextSubID = f.nextSubID
	c.nextPaymentID = f.nextPaymentID
	return c
}

func (f *fakeRepository) restore(s *fakeRepository) {
	f.students = s.students
	f.plans = s.plans
	f.subs = s.subs
	f.payments = s.payments
	f.ledger = s.ledger
	f.nextSubID = s.nextSubID
	f.nextPaymentID = s.nextPaymentID
}

func (f *fakeRepository) Transaction(fn func(tx Repository) error) error {
	before := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(before)
		return err
	}
	return nil
}

func (f *fakeRepository) GetStudentByID(id uint) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, ErrStudentNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeRepository) UpdateStudentMirror(studentID uint, status string, expiresAt *time.Time) error {
	s, ok := f.students[studentID]
	if !ok {
		return ErrStudentNotFound
	}
	s.SubscriptionStatus = status
	s.SubscriptionExpiresAt = expiresAt
	return nil
}

func (f *fakeRepository) GetPlanByUUID(uuid string) (*models.Plan, error) {
	for _, p := range f.plans {
		if p.UUID == uuid && p.IsActive {
			c := *p
			return &c, nil
		}
	}
	return nil, ErrPlanNotFound
}

func (f *fakeRepository) GetPlanByID(id uint) (*models.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	sub.CreatedAt = time.Now()
	c := *sub
	f.subs[sub.ID] = &c
	return nil
}

func (f *fakeRepository) SaveSubscription(sub *models.Subscription) error {
	if f.failSaveSubscription {
		return &failInjection{op: "save subscription"}
	}
	c := *sub
	f.subs[sub.ID] = &c
	return nil
}

func (f *fakeRepository) GetSubscriptionByUUID(uuid string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.UUID == uuid {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeRepository) GetSubscriptionByIDForUpdate(id uint) (*models.Subscription, error) {
	return f.GetSubscriptionByID(id)
}

func (f *fakeRepository) FindBlockingSubscriptionForUpdate(studentID uint) (*models.Subscription, error) {
	var found *models.Subscription
	for _, s := range f.subs {
		if s.StudentID != studentID {
			continue
		}
		switch s.Status {
		case models.SubscriptionStatusPending, models.SubscriptionStatusActive, models.SubscriptionStatusSuspended:
			if found == nil || s.ID > found.ID {
				found = s
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

func (f *fakeRepository) FindSubscriptionByGatewayIDForUpdate(provider, gatewaySubscriptionID string) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.Provider == provider && s.GatewaySubscriptionID == gatewaySubscriptionID && gatewaySubscriptionID != "" {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (f *fakeRepository) GetCurrentSubscription(studentID uint) (*models.Subscription, error) {
	var found *models.Subscription
	for _, s := range f.subs {
		if s.StudentID == studentID && s.Status != models.SubscriptionStatusCancelled {
			if found == nil || s.ID > found.ID {
				found = s
			}
		}
	}
	if found == nil {
		return nil, ErrSubscriptionNotFound
	}
	c := *found
	if plan, ok := f.plans[c.PlanID]; ok {
		p := *plan
		c.Plan = &p
	}
	return &c, nil
}

func (f *fakeRepository) ListSubscriptionsPastPeriodEnd(now time.Time, limit int) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status == models.SubscriptionStatusActive && s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.Before(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPeriodEnd.Before(*out[j].CurrentPeriodEnd) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) ListSubscriptions(status string, offset, limit int) ([]models.Subscription, int64, error) {
	var all []models.Subscription
	for _, s := range f.subs {
		if status != "" && s.Status != status {
			continue
		}
		c := *s
		if plan, ok := f.plans[c.PlanID]; ok {
			p := *plan
			c.Plan = &p
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (f *fakeRepository) CountSubscriptionsByStatus() (map[string]int64, error) {
	out := map[string]int64{}
	for _, s := range f.subs {
		out[s.Status]++
	}
	return out, nil
}

func (f *fakeRepository) CreatePayment(p *models.Payment) error {
	f.nextPaymentID++
	p.ID = f.nextPaymentID
	p.CreatedAt = time.Now()
	c := *p
	f.payments[p.ID] = &c
	return nil
}

func (f *fakeRepository) SavePayment(p *models.Payment) error {
	if f.failSavePayment {
		return &failInjection{op: "save payment"}
	}
	c := *p
	f.payments[p.ID] = &c
	return nil
}

func (f *fakeRepository) GetPaymentByUUID(uuid string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.UUID == uuid {
			c := *p
			return &c, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (f *fakeRepository) GetPaymentByIDForUpdate(id uint) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeRepository) FindPaymentByGatewayIDForUpdate(provider, gatewayPaymentID string) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.Provider == provider && p.GatewayPaymentID == gatewayPaymentID && gatewayPaymentID != "" {
			c := *p
			return &c, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (f *fakeRepository) LatestPaymentForSubscription(subscriptionID uint) (*models.Payment, error) {
	var found *models.Payment
	for _, p := range f.payments {
		if p.SubscriptionID == subscriptionID {
			if found == nil || p.ID > found.ID {
				found = p
			}
		}
	}
	if found == nil {
		return nil, ErrPaymentNotFound
	}
	c := *found
	return &c, nil
}

func (f *fakeRepository) CountFailedPayments(subscriptionID uint, since *time.Time) (int64, error) {
	var n int64
	for _, p := range f.payments {
		if p.SubscriptionID != subscriptionID || p.Status != models.PaymentStatusFailed {
			continue
		}
		if since != nil && p.CreatedAt.Before(*since) {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeRepository) RecordWebhookEvent(ev *models.WebhookEvent) (bool, error) {
	key := ev.Provider + "|" + ev.ProviderEventID
	if f.ledger[key] {
		return false, nil
	}
	f.ledger[key] = true
	return true, nil
}
