package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduflow-br/eduflow/app/models"
	"github.com/eduflow-br/eduflow/internal/pkg/gateway"
	"github.com/eduflow-br/eduflow/internal/pkg/notify"
)

type fakeAdapter struct {
	provider         string
	checkout         gateway.CardCheckout
	pix              gateway.PixCharge
	err              error
	cancelledSubs    []string
	cancelledCharges []string
}

func (a *fakeAdapter) Provider() string { return a.provider }

func (a *fakeAdapter) CreateCardCheckout(ctx context.Context, p gateway.CheckoutParams) (*gateway.CardCheckout, error) {
	if a.err != nil {
		return nil, a.err
	}
	c := a.checkout
	return &c, nil
}

func (a *fakeAdapter) CreatePixCharge(ctx context.Context, p gateway.PixChargeParams) (*gateway.PixCharge, error) {
	if a.err != nil {
		return nil, a.err
	}
	c := a.pix
	return &c, nil
}

func (a *fakeAdapter) CancelSubscription(ctx context.Context, id string) error {
	a.cancelledSubs = append(a.cancelledSubs, id)
	return nil
}

func (a *fakeAdapter) CancelPixCharge(ctx context.Context, id string) error {
	a.cancelledCharges = append(a.cancelledCharges, id)
	return nil
}

func (a *fakeAdapter) VerifyAndParse(payload []byte, sig, secret string) (*gateway.NormalizedEvent, error) {
	return nil, nil
}

type fixedConfig struct {
	cfg models.PaymentConfig
}

func (f *fixedConfig) GetConfig(ctx context.Context) (*models.PaymentConfig, error) {
	c := f.cfg
	return &c, nil
}

func defaultConfig() *fixedConfig {
	return &fixedConfig{cfg: models.PaymentConfig{
		ActiveGateway:        "stripe",
		PixExpirationMinutes: 30,
		PixDiscountPercent:   10,
		MaxPaymentRetries:    3,
		CacheTTLSeconds:      300,
	}}
}

type testEnv struct {
	repo    *fakeRepository
	adapter *fakeAdapter
	svc     *Service
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newFakeRepository()
	adapter := &fakeAdapter{
		provider: "stripe",
		checkout: gateway.CardCheckout{SessionID: "cs_1", CheckoutURL: "https://pay.example/cs_1"},
		pix:      gateway.PixCharge{ChargeID: "pi_1", QRCode: "qr-data", CopyPasteCode: "qr-data"},
	}
	svc := NewService(repo, gateway.NewRegistry(adapter), defaultConfig(), notify.NoopNotifier{})
	now := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return now }

	repo.students[1] = &models.Student{ID: 1, Name: "Ana", Email: "ana@example.com"}
	repo.plans[1] = &models.Plan{ID: 1, UUID: "plan-basic", Name: "Basic", PriceCents: 9900, Currency: "BRL", IntervalDays: 30, IsActive: true}
	return &testEnv{repo: repo, adapter: adapter, svc: svc, now: now}
}

func TestCreateSubscriptionCard(t *testing.T) {
	e := newTestEnv(t)

	res, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
		SuccessURL: "https://app/success", CancelURL: "https://app/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusPending, res.Subscription.Status)
	assert.Equal(t, "https://pay.example/cs_1", res.CheckoutURL)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, "cs_1", res.Payment.GatewayPaymentID)
	assert.EqualValues(t, 9900, res.Payment.AmountCents)
	assert.EqualValues(t, 9900, res.Payment.FinalAmountCents, "card checkouts get no discount")
	assert.Nil(t, res.Payment.OfferExpiresAt)
}

func TestCreateSubscriptionPixDiscountAndWindow(t *testing.T) {
	e := newTestEnv(t)

	res, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodPix,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 990, res.Payment.DiscountCents)
	assert.EqualValues(t, 8910, res.Payment.FinalAmountCents)
	assert.Equal(t, "qr-data", res.Payment.QRCode)
	require.NotNil(t, res.Payment.OfferExpiresAt)
	assert.Equal(t, e.now.Add(30*time.Minute), *res.Payment.OfferExpiresAt)
}

func TestCreateSubscriptionBlockedByOpenSubscription(t *testing.T) {
	e := newTestEnv(t)

	for _, status := range []string{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusSuspended,
	} {
		e.repo.subs = map[uint]*models.Subscription{
			10: {ID: 10, UUID: "sub-10", StudentID: 1, PlanID: 1, Status: status},
		}
		_, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
			StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
		})
		assert.ErrorIs(t, err, ErrActiveSubscriptionExists, status)
	}
}

func TestCreateSubscriptionPendingWithOpenPaymentBlocks(t *testing.T) {
	e := newTestEnv(t)
	e.repo.subs[10] = &models.Subscription{ID: 10, UUID: "sub-10", StudentID: 1, PlanID: 1, Status: models.SubscriptionStatusPending}
	e.repo.payments[5] = &models.Payment{ID: 5, UUID: "pay-5", SubscriptionID: 10, Method: models.PaymentMethodPix, Status: models.PaymentStatusPending}

	_, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
	})
	assert.ErrorIs(t, err, ErrActiveSubscriptionExists)
}

func TestCreateSubscriptionPendingRetryReusesRow(t *testing.T) {
	e := newTestEnv(t)
	e.repo.subs[10] = &models.Subscription{ID: 10, UUID: "sub-10", StudentID: 1, PlanID: 1, Status: models.SubscriptionStatusPending, Provider: "stripe"}
	e.repo.payments[5] = &models.Payment{ID: 5, UUID: "pay-5", SubscriptionID: 10, Method: models.PaymentMethodPix, Status: models.PaymentStatusExpired}
	e.repo.nextSubID = 10
	e.repo.nextPaymentID = 5

	res, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)

	assert.Equal(t, uint(10), res.Subscription.ID, "pending retry must reuse the subscription row")
	assert.Len(t, e.repo.subs, 1)
	assert.Len(t, e.repo.payments, 2)
}

func TestCreateSubscriptionProviderFailureMarksPaymentFailed(t *testing.T) {
	e := newTestEnv(t)
	e.adapter.err = assert.AnError

	_, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
	})
	require.Error(t, err)

	p, err := e.repo.LatestPaymentForSubscription(1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)
}

func checkoutPix(t *testing.T, e *testEnv) *CheckoutResult {
	t.Helper()
	res, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodPix,
	})
	require.NoError(t, err)
	return res
}

func completedEvent(id, paymentID string) *gateway.NormalizedEvent {
	return &gateway.NormalizedEvent{
		Provider:         "stripe",
		ProviderEventID:  id,
		EventType:        "payment_intent.succeeded",
		Kind:             gateway.EventCompleted,
		GatewayPaymentID: paymentID,
	}
}

func TestProcessEventCompletedActivates(t *testing.T) {
	e := newTestEnv(t)
	res := checkoutPix(t, e)

	outcome, err := e.svc.ProcessEvent(context.Background(), completedEvent("evt_1", "pi_1"), "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	sub := e.repo.subs[res.Subscription.ID]
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, e.now.Add(30*24*time.Hour), *sub.CurrentPeriodEnd)

	p := e.repo.payments[res.Payment.ID]
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	require.NotNil(t, p.PaidAt)

	student := e.repo.students[1]
	assert.Equal(t, models.SubscriptionStatusActive, student.SubscriptionStatus)
	require.NotNil(t, student.SubscriptionExpiresAt)
	assert.Equal(t, *sub.CurrentPeriodEnd, *student.SubscriptionExpiresAt)
}

func TestProcessEventCompletedPersistsGatewaySubscriptionID(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)

	founding := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_1", EventType: "checkout.session.completed",
		Kind: gateway.EventCompleted, GatewayPaymentID: "cs_1", GatewaySubscriptionID: "sub_xyz",
	}
	outcome, err := e.svc.ProcessEvent(context.Background(), founding, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	sub := e.repo.subs[res.Subscription.ID]
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_xyz", sub.GatewaySubscriptionID, "activation must store the provider's subscription id")
	oldEnd := *sub.CurrentPeriodEnd

	// A renewal keyed only by the provider's subscription id now finds the row.
	renewal := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_2", EventType: "invoice.payment_succeeded",
		Kind: gateway.EventCompleted, GatewayPaymentID: "pi_renew", GatewaySubscriptionID: "sub_xyz",
		AmountCents: 9900, Currency: "BRL",
	}
	outcome, err = e.svc.ProcessEvent(context.Background(), renewal, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, oldEnd.Add(30*24*time.Hour), *e.repo.subs[sub.ID].CurrentPeriodEnd)

	// A gateway-initiated cancellation finds it too.
	cancelled := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_3", EventType: "customer.subscription.deleted",
		Kind: gateway.EventSubscriptionCancelled, GatewaySubscriptionID: "sub_xyz",
	}
	outcome, err = e.svc.ProcessEvent(context.Background(), cancelled, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusCancelled, e.repo.subs[sub.ID].Status)
}

func TestCancelSubscriptionUsesStoredGatewayID(t *testing.T) {
	e := newTestEnv(t)
	res, err := e.svc.CreateSubscription(context.Background(), CheckoutInput{
		StudentID: 1, PlanUUID: "plan-basic", Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)

	founding := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_1", EventType: "checkout.session.completed",
		Kind: gateway.EventCompleted, GatewayPaymentID: "cs_1", GatewaySubscriptionID: "sub_xyz",
	}
	_, err = e.svc.ProcessEvent(context.Background(), founding, "sha")
	require.NoError(t, err)

	require.NoError(t, e.svc.CancelSubscription(context.Background(), 1, res.Subscription.UUID))
	assert.Equal(t, []string{"sub_xyz"}, e.adapter.cancelledSubs, "local cancel must reach the provider")
}

func TestProcessEventDuplicateIsNoOp(t *testing.T) {
	e := newTestEnv(t)
	res := checkoutPix(t, e)

	_, err := e.svc.ProcessEvent(context.Background(), completedEvent("evt_1", "pi_1"), "sha")
	require.NoError(t, err)

	// Redeliver the same event after the subscription was cancelled locally.
	sub := e.repo.subs[res.Subscription.ID]
	sub.Status = models.SubscriptionStatusCancelled

	outcome, err := e.svc.ProcessEvent(context.Background(), completedEvent("evt_1", "pi_1"), "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, models.SubscriptionStatusCancelled, e.repo.subs[res.Subscription.ID].Status, "duplicate must not re-apply the transition")
}

func TestProcessEventTerminalPaymentIsMonotonic(t *testing.T) {
	e := newTestEnv(t)
	res := checkoutPix(t, e)
	e.repo.payments[res.Payment.ID].Status = models.PaymentStatusExpired

	ev := completedEvent("evt_late", "pi_1")
	outcome, err := e.svc.ProcessEvent(context.Background(), ev, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Equal(t, models.PaymentStatusExpired, e.repo.payments[res.Payment.ID].Status)
	assert.Equal(t, models.SubscriptionStatusPending, e.repo.subs[res.Subscription.ID].Status)
}

func TestProcessEventUnknownTypeIsRecordedAndIgnored(t *testing.T) {
	e := newTestEnv(t)
	checkoutPix(t, e)

	ev := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_u", EventType: "customer.updated", Kind: gateway.EventUnknown,
	}
	outcome, err := e.svc.ProcessEvent(context.Background(), ev, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.True(t, e.repo.ledger["stripe|evt_u"], "unknown events still land in the ledger")
}

func TestProcessEventRollbackAllowsRedelivery(t *testing.T) {
	e := newTestEnv(t)
	checkoutPix(t, e)

	e.repo.failSaveSubscription = true
	_, err := e.svc.ProcessEvent(context.Background(), completedEvent("evt_1", "pi_1"), "sha")
	require.Error(t, err)
	assert.False(t, e.repo.ledger["stripe|evt_1"], "failed processing must roll the ledger row back")

	e.repo.failSaveSubscription = false
	outcome, err := e.svc.ProcessEvent(context.Background(), completedEvent("evt_1", "pi_1"), "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
}

func activeSubscription(e *testEnv) *models.Subscription {
	start := e.now.Add(-10 * 24 * time.Hour)
	end := e.now.Add(20 * 24 * time.Hour)
	sub := &models.Subscription{
		ID: 50, UUID: "sub-50", StudentID: 1, PlanID: 1,
		Status:                models.SubscriptionStatusActive,
		CurrentPeriodStart:    &start,
		CurrentPeriodEnd:      &end,
		Provider:              "stripe",
		GatewaySubscriptionID: "gsub_50",
	}
	e.repo.subs[sub.ID] = sub
	e.repo.nextSubID = 50
	return sub
}

func failedEvent(id, paymentID string) *gateway.NormalizedEvent {
	return &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: id, EventType: "invoice.payment_failed",
		Kind: gateway.EventFailed, GatewayPaymentID: paymentID, GatewaySubscriptionID: "gsub_50",
	}
}

func TestProcessEventFailedRenewalsSuspendAfterRetryCeiling(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)

	// First two failures keep the subscription active.
	for i, evID := range []string{"evt_f1", "evt_f2"} {
		outcome, err := e.svc.ProcessEvent(context.Background(), failedEvent(evID, ""), "sha")
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, outcome, i)
		assert.Equal(t, models.SubscriptionStatusActive, e.repo.subs[sub.ID].Status)
	}

	// Third failure hits MaxPaymentRetries and suspends.
	outcome, err := e.svc.ProcessEvent(context.Background(), failedEvent("evt_f3", ""), "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.SubscriptionStatusSuspended, e.repo.subs[sub.ID].Status)
	assert.Equal(t, models.SubscriptionStatusSuspended, e.repo.students[1].SubscriptionStatus)
}

func TestProcessEventFailedFoundingPaymentKeepsPending(t *testing.T) {
	e := newTestEnv(t)
	res := checkoutPix(t, e)

	ev := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_f", EventType: "payment_intent.payment_failed",
		Kind: gateway.EventFailed, GatewayPaymentID: "pi_1",
	}
	outcome, err := e.svc.ProcessEvent(context.Background(), ev, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, models.PaymentStatusFailed, e.repo.payments[res.Payment.ID].Status)
	assert.Equal(t, models.SubscriptionStatusPending, e.repo.subs[res.Subscription.ID].Status)
}

func TestProcessEventRenewalAdoption(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)
	oldEnd := *sub.CurrentPeriodEnd

	ev := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_r", EventType: "invoice.payment_succeeded",
		Kind: gateway.EventCompleted, GatewayPaymentID: "pi_renewal", GatewaySubscriptionID: "gsub_50",
		AmountCents: 9900, Currency: "BRL",
	}
	outcome, err := e.svc.ProcessEvent(context.Background(), ev, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	p, err := e.repo.FindPaymentByGatewayIDForUpdate("stripe", "pi_renewal")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.EqualValues(t, 9900, p.AmountCents)

	// Renewal before period end extends from the period end.
	got := e.repo.subs[sub.ID]
	assert.Equal(t, oldEnd.Add(30*24*time.Hour), *got.CurrentPeriodEnd)
}

func TestProcessEventSubscriptionCancelled(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)

	ev := &gateway.NormalizedEvent{
		Provider: "stripe", ProviderEventID: "evt_c", EventType: "customer.subscription.deleted",
		Kind: gateway.EventSubscriptionCancelled, GatewaySubscriptionID: "gsub_50",
	}
	outcome, err := e.svc.ProcessEvent(context.Background(), ev, "sha")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	got := e.repo.subs[sub.ID]
	assert.Equal(t, models.SubscriptionStatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, models.SubscriptionStatusCancelled, e.repo.students[1].SubscriptionStatus)
}

func TestCancelSubscriptionIsIdempotentAndCallsProvider(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)

	require.NoError(t, e.svc.CancelSubscription(context.Background(), 1, sub.UUID))
	assert.Equal(t, models.SubscriptionStatusCancelled, e.repo.subs[sub.ID].Status)
	assert.Equal(t, []string{"gsub_50"}, e.adapter.cancelledSubs)

	// Second cancel is a no-op, including at the provider.
	require.NoError(t, e.svc.CancelSubscription(context.Background(), 1, sub.UUID))
	assert.Len(t, e.adapter.cancelledSubs, 1)
}

func TestCancelSubscriptionWrongStudent(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)

	err := e.svc.CancelSubscription(context.Background(), 99, sub.UUID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestReactivateSubscriptionOnlyFromSuspended(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)

	_, err := e.svc.ReactivateSubscription(context.Background(), 1, sub.UUID, CheckoutInput{Method: models.PaymentMethodPix})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	e.repo.subs[sub.ID].Status = models.SubscriptionStatusSuspended
	res, err := e.svc.ReactivateSubscription(context.Background(), 1, sub.UUID, CheckoutInput{Method: models.PaymentMethodPix})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, models.SubscriptionStatusSuspended, e.repo.subs[sub.ID].Status, "stays suspended until payment completes")
}

func TestExpireSubscriptionPeriodBoundary(t *testing.T) {
	e := newTestEnv(t)
	sub := activeSubscription(e)

	// Period end in the future: nothing happens.
	ok, err := e.svc.ExpireSubscriptionPeriod(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SubscriptionStatusActive, e.repo.subs[sub.ID].Status)

	// A period ending exactly now is still paid through this instant.
	end := e.now
	e.repo.subs[sub.ID].CurrentPeriodEnd = &end
	ok, err = e.svc.ExpireSubscriptionPeriod(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SubscriptionStatusActive, e.repo.subs[sub.ID].Status)

	// A strictly past period end lapses.
	end = e.now.Add(-time.Second)
	e.repo.subs[sub.ID].CurrentPeriodEnd = &end
	ok, err = e.svc.ExpireSubscriptionPeriod(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.SubscriptionStatusSuspended, e.repo.subs[sub.ID].Status)
}

func TestExpirePixOfferBoundary(t *testing.T) {
	e := newTestEnv(t)
	res := checkoutPix(t, e)

	// Window still open: not expired.
	ok, err := e.svc.ExpirePixOffer(context.Background(), res.Payment.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Offer expiring exactly now is expired and the charge voided upstream.
	expiry := e.now
	e.repo.payments[res.Payment.ID].OfferExpiresAt = &expiry
	ok, err = e.svc.ExpirePixOffer(context.Background(), res.Payment.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.PaymentStatusExpired, e.repo.payments[res.Payment.ID].Status)
	assert.Equal(t, models.SubscriptionStatusPending, e.repo.subs[res.Subscription.ID].Status)
	assert.Equal(t, []string{"pi_1"}, e.adapter.cancelledCharges)

	// Second sweep over the same payment is a no-op.
	ok, err = e.svc.ExpirePixOffer(context.Background(), res.Payment.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, e.adapter.cancelledCharges, 1)
}

func TestSweepLapsedPeriods(t *testing.T) {
	e := newTestEnv(t)
	end := e.now.Add(-time.Hour)
	for i := uint(60); i < 63; i++ {
		e.repo.subs[i] = &models.Subscription{
			ID: i, UUID: "sub", StudentID: 1, PlanID: 1,
			Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &end,
		}
	}

	n, err := e.svc.SweepLapsedPeriods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for i := uint(60); i < 63; i++ {
		assert.Equal(t, models.SubscriptionStatusSuspended, e.repo.subs[i].Status)
	}
}

func TestListSubscriptionsPagingAndFilter(t *testing.T) {
	e := newTestEnv(t)
	statuses := []string{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusSuspended,
		models.SubscriptionStatusCancelled,
		models.SubscriptionStatusPending,
	}
	for i, status := range statuses {
		id := uint(100 + i)
		e.repo.subs[id] = &models.Subscription{ID: id, UUID: "sub", StudentID: 1, PlanID: 1, Status: status}
	}

	page, err := e.svc.ListSubscriptions(context.Background(), "", 1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, uint(104), page.Items[0].ID, "newest first")

	page, err = e.svc.ListSubscriptions(context.Background(), "", 2, 3)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = e.svc.ListSubscriptions(context.Background(), models.SubscriptionStatusActive, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	for _, s := range page.Items {
		assert.Equal(t, models.SubscriptionStatusActive, s.Status)
	}

	_, err = e.svc.ListSubscriptions(context.Background(), "paused", 1, 20)
	assert.ErrorIs(t, err, ErrInvalidStatusFilter)
}

func TestSubscriptionStats(t *testing.T) {
	e := newTestEnv(t)
	statuses := []string{
		models.SubscriptionStatusActive,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusSuspended,
		models.SubscriptionStatusCancelled,
	}
	for i, status := range statuses {
		id := uint(100 + i)
		e.repo.subs[id] = &models.Subscription{ID: id, UUID: "sub", StudentID: 1, PlanID: 1, Status: status}
	}

	stats, err := e.svc.SubscriptionStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Total)
	assert.EqualValues(t, 2, stats.Active)
	assert.EqualValues(t, 1, stats.Suspended)
	assert.EqualValues(t, 1, stats.Cancelled)
	assert.EqualValues(t, 0, stats.Pending)
}

func TestGetCurrentSubscription(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.svc.GetCurrentSubscription(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)

	sub := activeSubscription(e)
	got, err := e.svc.GetCurrentSubscription(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, sub.UUID, got.UUID)
	require.NotNil(t, got.Plan)
	assert.Equal(t, "Basic", got.Plan.Name)
}
