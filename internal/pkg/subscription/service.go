package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/eduflow-br/eduflow/app/models"
	"github.com/eduflow-br/eduflow/internal/pkg/gateway"
	"github.com/eduflow-br/eduflow/internal/pkg/notify"
)

// ConfigSource provides the current payment configuration snapshot.
type ConfigSource interface {
	GetConfig(ctx context.Context) (*models.PaymentConfig, error)
}

// Service owns every subscription and payment state transition. Status columns
// are never written outside this type, which keeps the lifecycle rules in one
// place: pending -> active -> suspended -> active, any -> cancelled (terminal)
// for subscriptions, and pending -> completed | failed | expired for payments.
type Service struct {
	repo     Repository
	gateways *gateway.Registry
	config   ConfigSource
	notifier notify.Notifier
	now      func() time.Time
}

func NewService(repo Repository, gateways *gateway.Registry, config ConfigSource, notifier notify.Notifier) *Service {
	return &Service{
		repo:     repo,
		gateways: gateways,
		config:   config,
		notifier: notifier,
		now:      time.Now,
	}
}

// CheckoutInput describes a checkout request for a plan.
type CheckoutInput struct {
	StudentID  uint
	PlanUUID   string
	Method     string
	SuccessURL string
	CancelURL  string
}

// CheckoutResult is what the student needs to complete payment: a redirect URL
// for card checkouts, or the PIX payload on the payment row.
type CheckoutResult struct {
	Subscription *models.Subscription `json:"subscription"`
	Payment      *models.Payment      `json:"payment"`
	CheckoutURL  string               `json:"checkout_url,omitempty"`
}

// CreateSubscription opens a checkout for a plan. A student with a pending,
// active or suspended subscription cannot open a second one; the only
// exception is a pending subscription whose last payment already reached a
// terminal status, which is reused for the retry instead of creating a
// sibling row.
func (s *Service) CreateSubscription(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if in.Method != models.PaymentMethodCard && in.Method != models.PaymentMethodPix {
		return nil, ErrUnsupportedPaymentMethod
	}

	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payment config: %w", err)
	}
	adapter, err := s.gateways.ForProvider(cfg.ActiveGateway)
	if err != nil {
		return nil, err
	}

	student, err := s.repo.GetStudentByID(in.StudentID)
	if err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlanByUUID(in.PlanUUID)
	if err != nil {
		return nil, err
	}

	var sub *models.Subscription
	var payment *models.Payment
	err = s.repo.Transaction(func(tx Repository) error {
		existing, err := tx.FindBlockingSubscriptionForUpdate(in.StudentID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status != models.SubscriptionStatusPending {
				return ErrActiveSubscriptionExists
			}
			last, err := tx.LatestPaymentForSubscription(existing.ID)
			if err != nil && !errors.Is(err, ErrPaymentNotFound) {
				return err
			}
			if last != nil && !last.IsTerminal() {
				return ErrActiveSubscriptionExists
			}
			// Retry on the same pending subscription, possibly for a new plan.
			existing.PlanID = plan.ID
			existing.Provider = cfg.ActiveGateway
			if err := tx.SaveSubscription(existing); err != nil {
				return err
			}
			sub = existing
		} else {
			sub = &models.Subscription{
				UUID:      uuid.New().String(),
				StudentID: in.StudentID,
				PlanID:    plan.ID,
				Status:    models.SubscriptionStatusPending,
				Provider:  cfg.ActiveGateway,
			}
			if err := tx.CreateSubscription(sub); err != nil {
				return err
			}
		}

		payment = s.buildPayment(sub, plan, cfg, in.Method)
		return tx.CreatePayment(payment)
	})
	if err != nil {
		return nil, err
	}

	// Provider calls happen outside the transaction so no row lock is held
	// across network I/O.
	result, err := s.chargeAtProvider(ctx, adapter, student, plan, payment, in)
	if err != nil {
		return nil, err
	}
	result.Subscription = sub

	if payment.Method == models.PaymentMethodPix {
		s.notifier.PixChargeCreated(student, payment)
	}
	log.Infof("[Subscription] Checkout opened: student=%d plan=%s method=%s payment=%s", student.ID, plan.Name, in.Method, payment.UUID)
	return result, nil
}

// buildPayment creates the pending payment row for a checkout, applying the
// PIX discount and offer window from the current configuration.
func (s *Service) buildPayment(sub *models.Subscription, plan *models.Plan, cfg *models.PaymentConfig, method string) *models.Payment {
	amount := plan.PriceCents
	var discount int64
	if method == models.PaymentMethodPix && cfg.PixDiscountPercent > 0 {
		discount = amount * int64(cfg.PixDiscountPercent) / 100
	}

	p := &models.Payment{
		UUID:             uuid.New().String(),
		SubscriptionID:   sub.ID,
		Method:           method,
		Status:           models.PaymentStatusPending,
		Provider:         cfg.ActiveGateway,
		AmountCents:      amount,
		DiscountCents:    discount,
		FinalAmountCents: amount - discount,
		Currency:         plan.Currency,
	}
	if method == models.PaymentMethodPix {
		expires := s.now().Add(time.Duration(cfg.PixExpirationMinutes) * time.Minute)
		p.OfferExpiresAt = &expires
	}
	return p
}

// chargeAtProvider creates the charge at the gateway and stores the provider
// references on the payment row. A provider failure marks the payment failed
// so the student can retry.
func (s *Service) chargeAtProvider(ctx context.Context, adapter gateway.Adapter, student *models.Student, plan *models.Plan, payment *models.Payment, in CheckoutInput) (*CheckoutResult, error) {
	switch payment.Method {
	case models.PaymentMethodCard:
		checkout, err := adapter.CreateCardCheckout(ctx, gateway.CheckoutParams{
			Reference:    payment.UUID,
			StudentEmail: student.Email,
			PlanName:     plan.Name,
			AmountCents:  payment.FinalAmountCents,
			Currency:     payment.Currency,
			SuccessURL:   in.SuccessURL,
			CancelURL:    in.CancelURL,
		})
		if err != nil {
			s.failPaymentAfterProviderError(payment, err)
			return nil, err
		}
		payment.GatewayPaymentID = checkout.SessionID
		if err := s.repo.SavePayment(payment); err != nil {
			return nil, err
		}
		return &CheckoutResult{Payment: payment, CheckoutURL: checkout.CheckoutURL}, nil

	case models.PaymentMethodPix:
		charge, err := adapter.CreatePixCharge(ctx, gateway.PixChargeParams{
			Reference:   payment.UUID,
			AmountCents: payment.FinalAmountCents,
			Currency:    payment.Currency,
			Description: plan.Name,
			ExpiresAt:   *payment.OfferExpiresAt,
		})
		if err != nil {
			s.failPaymentAfterProviderError(payment, err)
			return nil, err
		}
		payment.GatewayPaymentID = charge.ChargeID
		payment.QRCode = charge.QRCode
		payment.CopyPasteCode = charge.CopyPasteCode
		if err := s.repo.SavePayment(payment); err != nil {
			return nil, err
		}
		return &CheckoutResult{Payment: payment}, nil

	default:
		return nil, ErrUnsupportedPaymentMethod
	}
}

func (s *Service) failPaymentAfterProviderError(payment *models.Payment, cause error) {
	payment.Status = models.PaymentStatusFailed
	if err := s.repo.SavePayment(payment); err != nil {
		log.Errorf("[Subscription] Failed to mark payment %s failed after provider error: %v (cause: %v)", payment.UUID, err, cause)
	}
}

// Outcome classifies what ProcessEvent did with a delivery.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeDuplicate
	OutcomeIgnored
)

// ProcessEvent records a verified webhook delivery in the ledger and applies
// the resulting state transition, both inside one database transaction. A
// redelivery that is already in the ledger returns OutcomeDuplicate without
// touching any row; events that match no known payment or carry an unknown
// type are recorded and ignored. Any error rolls back the ledger row too, so
// the provider's retry will reprocess the delivery from scratch.
func (s *Service) ProcessEvent(ctx context.Context, ev *gateway.NormalizedEvent, payloadSHA256 string) (Outcome, error) {
	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("load payment config: %w", err)
	}

	outcome := OutcomeIgnored
	var after []func()
	err = s.repo.Transaction(func(tx Repository) error {
		processedAt := s.now()
		inserted, err := tx.RecordWebhookEvent(&models.WebhookEvent{
			Provider:        ev.Provider,
			ProviderEventID: ev.ProviderEventID,
			EventType:       ev.EventType,
			PayloadSHA256:   payloadSHA256,
			ProcessedAt:     &processedAt,
		})
		if err != nil {
			return err
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}

		if !ev.Known() {
			log.Infof("[Subscription] Ignoring unknown event type %q from %s", ev.EventType, ev.Provider)
			outcome = OutcomeIgnored
			return nil
		}

		o, notifs, err := s.applyEvent(tx, ev, cfg.MaxPaymentRetries)
		if err != nil {
			return err
		}
		outcome = o
		after = notifs
		return nil
	})
	if err != nil {
		return OutcomeIgnored, err
	}

	// Notifications fire only after the transaction committed.
	for _, fn := range after {
		fn()
	}
	return outcome, nil
}

// applyEvent resolves the event to a payment and subscription row and applies
// the transition. Both rows are locked for the duration of the transaction.
func (s *Service) applyEvent(tx Repository, ev *gateway.NormalizedEvent, maxRetries int) (Outcome, []func(), error) {
	if ev.Kind == gateway.EventSubscriptionCancelled {
		sub, err := tx.FindSubscriptionByGatewayIDForUpdate(ev.Provider, ev.GatewaySubscriptionID)
		if errors.Is(err, ErrSubscriptionNotFound) {
			log.Warnf("[Subscription] Cancellation event %s matches no subscription (gateway id %s)", ev.ProviderEventID, ev.GatewaySubscriptionID)
			return OutcomeIgnored, nil, nil
		}
		if err != nil {
			return OutcomeIgnored, nil, err
		}
		return s.cancelLocked(tx, sub)
	}

	var payment *models.Payment
	var err error
	if ev.GatewayPaymentID == "" {
		err = ErrPaymentNotFound
	} else {
		payment, err = tx.FindPaymentByGatewayIDForUpdate(ev.Provider, ev.GatewayPaymentID)
	}
	if errors.Is(err, ErrPaymentNotFound) {
		// Renewal charges are created by the provider, not by a checkout, so
		// the first event about them has no local payment row yet.
		payment, err = s.adoptRenewalPayment(tx, ev)
		if errors.Is(err, ErrSubscriptionNotFound) || errors.Is(err, ErrPaymentNotFound) {
			log.Warnf("[Subscription] Event %s matches no payment or subscription, ignoring", ev.ProviderEventID)
			return OutcomeIgnored, nil, nil
		}
	}
	if err != nil {
		return OutcomeIgnored, nil, err
	}

	if payment.IsTerminal() {
		// Payment statuses are monotonic. A late event for a settled payment
		// is logged and dropped, never re-applied.
		log.Warnf("[Subscription] Dropping %s event for terminal payment %s (status %s)", ev.Kind, payment.UUID, payment.Status)
		return OutcomeIgnored, nil, nil
	}

	sub, err := tx.GetSubscriptionByIDForUpdate(payment.SubscriptionID)
	if err != nil {
		return OutcomeIgnored, nil, err
	}

	switch ev.Kind {
	case gateway.EventCompleted:
		return s.completeLocked(tx, sub, payment, ev.GatewaySubscriptionID)
	case gateway.EventFailed:
		return s.failLocked(tx, sub, payment, maxRetries)
	case gateway.EventExpired:
		return s.expireLocked(tx, sub, payment)
	default:
		return OutcomeIgnored, nil, nil
	}
}

// adoptRenewalPayment creates the local row for a provider-initiated renewal
// charge, keyed by the gateway subscription id the event carries.
func (s *Service) adoptRenewalPayment(tx Repository, ev *gateway.NormalizedEvent) (*models.Payment, error) {
	if ev.GatewaySubscriptionID == "" {
		return nil, ErrPaymentNotFound
	}
	sub, err := tx.FindSubscriptionByGatewayIDForUpdate(ev.Provider, ev.GatewaySubscriptionID)
	if err != nil {
		return nil, err
	}
	plan, err := tx.GetPlanByID(sub.PlanID)
	if err != nil {
		return nil, err
	}

	amount := ev.AmountCents
	currency := ev.Currency
	if amount == 0 {
		amount = plan.PriceCents
	}
	if currency == "" {
		currency = plan.Currency
	}

	payment := &models.Payment{
		UUID:             uuid.New().String(),
		SubscriptionID:   sub.ID,
		Method:           models.PaymentMethodCard,
		Status:           models.PaymentStatusPending,
		Provider:         ev.Provider,
		GatewayPaymentID: ev.GatewayPaymentID,
		AmountCents:      amount,
		FinalAmountCents: amount,
		Currency:         currency,
	}
	if err := tx.CreatePayment(payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) completeLocked(tx Repository, sub *models.Subscription, payment *models.Payment, gatewaySubscriptionID string) (Outcome, []func(), error) {
	now := s.now()
	payment.Status = models.PaymentStatusCompleted
	payment.PaidAt = &now
	if err := tx.SavePayment(payment); err != nil {
		return OutcomeIgnored, nil, err
	}

	if sub.IsTerminal() {
		// Money arrived for a cancelled subscription. Keep the payment record
		// but never resurrect the subscription.
		log.Warnf("[Subscription] Completed payment %s for cancelled subscription %s", payment.UUID, sub.UUID)
		return OutcomeApplied, nil, nil
	}

	// The provider's subscription id first shows up on the founding payment
	// event. Persisting it here is what lets later renewal and cancellation
	// events find this row.
	if gatewaySubscriptionID != "" {
		sub.GatewaySubscriptionID = gatewaySubscriptionID
	}

	plan, err := tx.GetPlanByID(sub.PlanID)
	if err != nil {
		return OutcomeIgnored, nil, err
	}

	// A renewal paid before the period lapsed extends from the period end;
	// everything else starts a fresh period now.
	start := now
	if sub.Status == models.SubscriptionStatusActive && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
		start = *sub.CurrentPeriodEnd
	}
	end := start.Add(time.Duration(plan.IntervalDays) * 24 * time.Hour)

	sub.Status = models.SubscriptionStatusActive
	sub.CurrentPeriodStart = &start
	sub.CurrentPeriodEnd = &end
	if err := tx.SaveSubscription(sub); err != nil {
		return OutcomeIgnored, nil, err
	}
	if err := tx.UpdateStudentMirror(sub.StudentID, sub.Status, sub.CurrentPeriodEnd); err != nil {
		return OutcomeIgnored, nil, err
	}

	student, err := tx.GetStudentByID(sub.StudentID)
	if err != nil {
		return OutcomeIgnored, nil, err
	}
	p := *payment
	return OutcomeApplied, []func(){func() { s.notifier.PaymentConfirmed(student, &p) }}, nil
}

func (s *Service) failLocked(tx Repository, sub *models.Subscription, payment *models.Payment, maxRetries int) (Outcome, []func(), error) {
	payment.Status = models.PaymentStatusFailed
	if err := tx.SavePayment(payment); err != nil {
		return OutcomeIgnored, nil, err
	}

	// A failed founding payment keeps the subscription pending; the student
	// can retry. Only an active subscription that exhausted its renewal
	// retries gets suspended.
	if sub.Status != models.SubscriptionStatusActive {
		return OutcomeApplied, nil, nil
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	failed, err := tx.CountFailedPayments(sub.ID, sub.CurrentPeriodStart)
	if err != nil {
		return OutcomeIgnored, nil, err
	}
	if failed < int64(maxRetries) {
		return OutcomeApplied, nil, nil
	}

	sub.Status = models.SubscriptionStatusSuspended
	if err := tx.SaveSubscription(sub); err != nil {
		return OutcomeIgnored, nil, err
	}
	if err := tx.UpdateStudentMirror(sub.StudentID, sub.Status, sub.CurrentPeriodEnd); err != nil {
		return OutcomeIgnored, nil, err
	}

	student, err := tx.GetStudentByID(sub.StudentID)
	if err != nil {
		return OutcomeIgnored, nil, err
	}
	sb := *sub
	log.Warnf("[Subscription] Suspended subscription %s after %d failed renewal payments", sub.UUID, failed)
	return OutcomeApplied, []func(){func() { s.notifier.SubscriptionSuspended(student, &sb) }}, nil
}

func (s *Service) expireLocked(tx Repository, sub *models.Subscription, payment *models.Payment) (Outcome, []func(), error) {
	payment.Status = models.PaymentStatusExpired
	if err := tx.SavePayment(payment); err != nil {
		return OutcomeIgnored, nil, err
	}

	// An expired offer never changes the subscription: a founding checkout
	// stays pending so the student can generate a new code.
	var notifs []func()
	if payment.Method == models.PaymentMethodPix {
		student, err := tx.GetStudentByID(sub.StudentID)
		if err != nil {
			return OutcomeIgnored, nil, err
		}
		p := *payment
		notifs = append(notifs, func() { s.notifier.PixOfferExpired(student, &p) })
	}
	return OutcomeApplied, notifs, nil
}

func (s *Service) cancelLocked(tx Repository, sub *models.Subscription) (Outcome, []func(), error) {
	if sub.IsTerminal() {
		return OutcomeIgnored, nil, nil
	}
	now := s.now()
	sub.Status = models.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	if err := tx.SaveSubscription(sub); err != nil {
		return OutcomeIgnored, nil, err
	}
	if err := tx.UpdateStudentMirror(sub.StudentID, sub.Status, nil); err != nil {
		return OutcomeIgnored, nil, err
	}

	student, err := tx.GetStudentByID(sub.StudentID)
	if err != nil {
		return OutcomeIgnored, nil, err
	}
	sb := *sub
	return OutcomeApplied, []func(){func() { s.notifier.SubscriptionCancelled(student, &sb) }}, nil
}

// CancelSubscription cancels the student's subscription. The local row is
// cancelled first; the gateway call happens after commit and its failure is
// logged, not surfaced, because the provider will also emit a cancellation
// webhook that lands in the ledger as a no-op. Cancelling an already
// cancelled subscription is a no-op.
func (s *Service) CancelSubscription(ctx context.Context, studentID uint, subscriptionUUID string) error {
	var gatewaySubID, provider string
	var after []func()
	err := s.repo.Transaction(func(tx Repository) error {
		sub, err := tx.GetSubscriptionByUUID(subscriptionUUID)
		if err != nil {
			return err
		}
		if sub.StudentID != studentID {
			return ErrSubscriptionNotFound
		}
		sub, err = tx.GetSubscriptionByIDForUpdate(sub.ID)
		if err != nil {
			return err
		}
		if sub.IsTerminal() {
			return nil
		}

		gatewaySubID = sub.GatewaySubscriptionID
		provider = sub.Provider
		_, notifs, err := s.cancelLocked(tx, sub)
		if err != nil {
			return err
		}
		after = notifs
		return nil
	})
	if err != nil {
		return err
	}

	for _, fn := range after {
		fn()
	}

	if gatewaySubID != "" {
		adapter, err := s.gateways.ForProvider(provider)
		if err != nil {
			log.Errorf("[Subscription] Cannot cancel %s at provider: %v", subscriptionUUID, err)
			return nil
		}
		if err := adapter.CancelSubscription(ctx, gatewaySubID); err != nil {
			log.Errorf("[Subscription] Provider-side cancel of %s failed: %v", subscriptionUUID, err)
		}
	}
	return nil
}

// ReactivateSubscription opens a fresh checkout for a suspended subscription.
// The subscription stays suspended until the new payment completes.
func (s *Service) ReactivateSubscription(ctx context.Context, studentID uint, subscriptionUUID string, in CheckoutInput) (*CheckoutResult, error) {
	if in.Method != models.PaymentMethodCard && in.Method != models.PaymentMethodPix {
		return nil, ErrUnsupportedPaymentMethod
	}

	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load payment config: %w", err)
	}
	adapter, err := s.gateways.ForProvider(cfg.ActiveGateway)
	if err != nil {
		return nil, err
	}
	student, err := s.repo.GetStudentByID(studentID)
	if err != nil {
		return nil, err
	}

	var sub *models.Subscription
	var plan *models.Plan
	var payment *models.Payment
	err = s.repo.Transaction(func(tx Repository) error {
		var err error
		sub, err = tx.GetSubscriptionByUUID(subscriptionUUID)
		if err != nil {
			return err
		}
		if sub.StudentID != studentID {
			return ErrSubscriptionNotFound
		}
		sub, err = tx.GetSubscriptionByIDForUpdate(sub.ID)
		if err != nil {
			return err
		}
		if sub.Status != models.SubscriptionStatusSuspended {
			return ErrInvalidStateTransition
		}
		plan, err = tx.GetPlanByID(sub.PlanID)
		if err != nil {
			return err
		}

		payment = s.buildPayment(sub, plan, cfg, in.Method)
		return tx.CreatePayment(payment)
	})
	if err != nil {
		return nil, err
	}

	result, err := s.chargeAtProvider(ctx, adapter, student, plan, payment, in)
	if err != nil {
		return nil, err
	}
	result.Subscription = sub

	if payment.Method == models.PaymentMethodPix {
		s.notifier.PixChargeCreated(student, payment)
	}
	return result, nil
}

// ExpireSubscriptionPeriod suspends an active subscription whose paid period
// has lapsed without a renewal. Called by the daily sweep. Returns whether
// the subscription was suspended.
func (s *Service) ExpireSubscriptionPeriod(ctx context.Context, subscriptionID uint) (bool, error) {
	suspended := false
	var after []func()
	err := s.repo.Transaction(func(tx Repository) error {
		sub, err := tx.GetSubscriptionByIDForUpdate(subscriptionID)
		if err != nil {
			return err
		}
		// Recheck under the lock: a renewal may have landed since the sweep
		// listed this row. A period ending exactly now is still paid through
		// this instant; only a strictly past end lapses.
		if sub.Status != models.SubscriptionStatusActive {
			return nil
		}
		if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Before(s.now()) {
			return nil
		}

		sub.Status = models.SubscriptionStatusSuspended
		if err := tx.SaveSubscription(sub); err != nil {
			return err
		}
		if err := tx.UpdateStudentMirror(sub.StudentID, sub.Status, sub.CurrentPeriodEnd); err != nil {
			return err
		}

		student, err := tx.GetStudentByID(sub.StudentID)
		if err != nil {
			return err
		}
		suspended = true
		sb := *sub
		after = append(after, func() { s.notifier.SubscriptionSuspended(student, &sb) })
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, fn := range after {
		fn()
	}
	return suspended, nil
}

// SweepLapsedPeriods suspends every active subscription whose paid period has
// lapsed, in pages. One bad row never stops the sweep. Returns how many
// subscriptions were suspended.
func (s *Service) SweepLapsedPeriods(ctx context.Context) (int, error) {
	const pageSize = 200
	suspended := 0
	for {
		select {
		case <-ctx.Done():
			return suspended, ctx.Err()
		default:
		}

		due, err := s.repo.ListSubscriptionsPastPeriodEnd(s.now(), pageSize)
		if err != nil {
			return suspended, err
		}
		if len(due) == 0 {
			return suspended, nil
		}

		progressed := 0
		for _, sub := range due {
			ok, err := s.ExpireSubscriptionPeriod(ctx, sub.ID)
			if err != nil {
				log.Errorf("[Subscription] Period sweep failed for subscription %d: %v", sub.ID, err)
				continue
			}
			if ok {
				suspended++
			}
			progressed++
		}
		if progressed == 0 {
			return suspended, nil
		}
		if len(due) < pageSize {
			return suspended, nil
		}
	}
}

// ExpirePixOffer marks a pending PIX payment whose offer window has closed as
// expired. The boundary is inclusive: an offer expiring exactly now is
// expired. Returns whether the payment was transitioned.
func (s *Service) ExpirePixOffer(ctx context.Context, paymentID uint) (bool, error) {
	expired := false
	var after []func()
	var gatewayPaymentID, provider string
	err := s.repo.Transaction(func(tx Repository) error {
		payment, err := tx.GetPaymentByIDForUpdate(paymentID)
		if err != nil {
			return err
		}
		if payment.Method != models.PaymentMethodPix || payment.Status != models.PaymentStatusPending {
			return nil
		}
		if payment.OfferExpiresAt == nil || payment.OfferExpiresAt.After(s.now()) {
			return nil
		}

		sub, err := tx.GetSubscriptionByIDForUpdate(payment.SubscriptionID)
		if err != nil {
			return err
		}
		_, notifs, err := s.expireLocked(tx, sub, payment)
		if err != nil {
			return err
		}
		expired = true
		after = notifs
		gatewayPaymentID = payment.GatewayPaymentID
		provider = payment.Provider
		return nil
	})
	if err != nil {
		return false, err
	}

	for _, fn := range after {
		fn()
	}

	// Best effort: void the charge at the provider so a late payment against
	// the dead offer is rejected upstream.
	if expired && gatewayPaymentID != "" {
		if adapter, err := s.gateways.ForProvider(provider); err == nil {
			if err := adapter.CancelPixCharge(ctx, gatewayPaymentID); err != nil {
				log.Warnf("[Subscription] Provider-side PIX cancel failed for payment %d: %v", paymentID, err)
			}
		}
	}
	return expired, nil
}

// GetCurrentSubscription returns the student's latest non-cancelled
// subscription with its plan preloaded.
func (s *Service) GetCurrentSubscription(ctx context.Context, studentID uint) (*models.Subscription, error) {
	return s.repo.GetCurrentSubscription(studentID)
}

// SubscriptionPage is one page of the admin subscription listing.
type SubscriptionPage struct {
	Items   []models.Subscription `json:"items"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// ListSubscriptions returns subscriptions across all students, newest first,
// optionally filtered by status. Page numbering starts at 1.
func (s *Service) ListSubscriptions(ctx context.Context, status string, page, perPage int) (*SubscriptionPage, error) {
	if status != "" && !models.IsValidSubscriptionStatus(status) {
		return nil, ErrInvalidStatusFilter
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	items, total, err := s.repo.ListSubscriptions(status, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	return &SubscriptionPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// SubscriptionStats is the per-status headcount served to the admin dashboard.
type SubscriptionStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Active    int64 `json:"active"`
	Suspended int64 `json:"suspended"`
	Cancelled int64 `json:"cancelled"`
}

// SubscriptionStats counts subscriptions per lifecycle status.
func (s *Service) SubscriptionStats(ctx context.Context) (*SubscriptionStats, error) {
	counts, err := s.repo.CountSubscriptionsByStatus()
	if err != nil {
		return nil, err
	}
	stats := &SubscriptionStats{
		Pending:   counts[models.SubscriptionStatusPending],
		Active:    counts[models.SubscriptionStatusActive],
		Suspended: counts[models.SubscriptionStatusSuspended],
		Cancelled: counts[models.SubscriptionStatusCancelled],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// GetPaymentStatus returns a payment owned by the student, for PIX polling.
func (s *Service) GetPaymentStatus(ctx context.Context, studentID uint, paymentUUID string) (*models.Payment, error) {
	payment, err := s.repo.GetPaymentByUUID(paymentUUID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubscriptionByID(payment.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.StudentID != studentID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}
