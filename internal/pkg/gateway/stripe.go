package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/eduflow-br/eduflow/app/models"
)

// StripeAdapter drives card checkouts and PIX payment intents through the
// Stripe API. PIX QR payloads are read from the raw API response because the
// pinned SDK version does not type next_action.pix_display_qr_code yet.
type StripeAdapter struct {
	api *client.API
}

func NewStripeAdapter(apiKey string) *StripeAdapter {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeAdapter{api: api}
}

func (a *StripeAdapter) Provider() string {
	return models.GatewayProviderStripe
}

func (a *StripeAdapter) CreateCardCheckout(ctx context.Context, p CheckoutParams) (*CardCheckout, error) {
	var out *CardCheckout
	err := withRetry(ctx, "stripe card checkout", func() error {
		params := &stripe.CheckoutSessionParams{
			Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
			PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
			CustomerEmail:      stripe.String(p.StudentEmail),
			SuccessURL:         stripe.String(p.SuccessURL),
			CancelURL:          stripe.String(p.CancelURL),
			LineItems: []*stripe.CheckoutSessionLineItemParams{
				{
					PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
						Currency:   stripe.String(strings.ToLower(p.Currency)),
						UnitAmount: stripe.Int64(p.AmountCents),
						ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
							Name: stripe.String(p.PlanName),
						},
						Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
							Interval: stripe.String("month"),
						},
					},
					Quantity: stripe.Int64(1),
				},
			},
		}
		params.Context = ctx
		params.AddMetadata("reference", p.Reference)

		s, err := a.api.CheckoutSessions.New(params)
		if err != nil {
			return classifyStripeErr(err)
		}
		out = &CardCheckout{SessionID: s.ID, CheckoutURL: s.URL}
		return nil
	})
	return out, err
}

func (a *StripeAdapter) CreatePixCharge(ctx context.Context, p PixChargeParams) (*PixCharge, error) {
	var out *PixCharge
	err := withRetry(ctx, "stripe pix charge", func() error {
		params := &stripe.PaymentIntentParams{
			Amount:             stripe.Int64(p.AmountCents),
			Currency:           stripe.String(strings.ToLower(p.Currency)),
			PaymentMethodTypes: stripe.StringSlice([]string{"pix"}),
			Description:        stripe.String(p.Description),
		}
		params.Context = ctx
		params.AddMetadata("reference", p.Reference)

		pi, err := a.api.PaymentIntents.New(params)
		if err != nil {
			return classifyStripeErr(err)
		}

		qr, copyPaste, err := extractPixPayload(pi)
		if err != nil {
			return err
		}
		out = &PixCharge{ChargeID: pi.ID, QRCode: qr, CopyPasteCode: copyPaste}
		return nil
	})
	return out, err
}

func (a *StripeAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	return withRetry(ctx, "stripe subscription cancel", func() error {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		if _, err := a.api.Subscriptions.Cancel(gatewaySubscriptionID, params); err != nil {
			return classifyStripeErr(err)
		}
		return nil
	})
}

func (a *StripeAdapter) CancelPixCharge(ctx context.Context, chargeID string) error {
	return withRetry(ctx, "stripe pix cancel", func() error {
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		if _, err := a.api.PaymentIntents.Cancel(chargeID, params); err != nil {
			return classifyStripeErr(err)
		}
		return nil
	})
}

func (a *StripeAdapter) VerifyAndParse(payload []byte, signatureHeader, secret string) (*NormalizedEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return normalizeStripeEvent(&event), nil
}

func normalizeStripeEvent(event *stripe.Event) *NormalizedEvent {
	out := &NormalizedEvent{
		Provider:        models.GatewayProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Kind:            EventUnknown,
	}

	var obj struct {
		ID            string `json:"id"`
		PaymentIntent string `json:"payment_intent"`
		Subscription  string `json:"subscription"`
		AmountPaid    int64  `json:"amount_paid"`
		AmountDue     int64  `json:"amount_due"`
		Currency      string `json:"currency"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return out
	}

	switch event.Type {
	case "checkout.session.completed":
		out.Kind = EventCompleted
		out.GatewayPaymentID = obj.ID
		out.GatewaySubscriptionID = obj.Subscription
	case "payment_intent.succeeded":
		out.Kind = EventCompleted
		out.GatewayPaymentID = obj.ID
	case "payment_intent.payment_failed":
		out.Kind = EventFailed
		out.GatewayPaymentID = obj.ID
	case "payment_intent.canceled":
		out.Kind = EventExpired
		out.GatewayPaymentID = obj.ID
	case "invoice.payment_succeeded":
		out.Kind = EventCompleted
		out.GatewayPaymentID = obj.PaymentIntent
		out.GatewaySubscriptionID = obj.Subscription
		out.AmountCents = obj.AmountPaid
		out.Currency = strings.ToUpper(obj.Currency)
	case "invoice.payment_failed":
		out.Kind = EventFailed
		out.GatewayPaymentID = obj.PaymentIntent
		out.GatewaySubscriptionID = obj.Subscription
		out.AmountCents = obj.AmountDue
		out.Currency = strings.ToUpper(obj.Currency)
	case "customer.subscription.deleted":
		out.Kind = EventSubscriptionCancelled
		out.GatewaySubscriptionID = obj.ID
	}
	return out
}

// extractPixPayload pulls the QR code data out of the untyped
// next_action.pix_display_qr_code block of the raw payment intent response.
func extractPixPayload(pi *stripe.PaymentIntent) (qrCode, copyPaste string, err error) {
	if pi.LastResponse == nil || len(pi.LastResponse.RawJSON) == 0 {
		return "", "", errors.New("stripe pix charge: missing raw response")
	}

	var raw struct {
		NextAction struct {
			PixDisplayQRCode struct {
				Data        string `json:"data"`
				ImageURLPNG string `json:"image_url_png"`
			} `json:"pix_display_qr_code"`
		} `json:"next_action"`
	}
	if err := json.Unmarshal(pi.LastResponse.RawJSON, &raw); err != nil {
		return "", "", fmt.Errorf("stripe pix charge: decode response: %w", err)
	}
	data := raw.NextAction.PixDisplayQRCode.Data
	if data == "" {
		return "", "", errors.New("stripe pix charge: no qr code in response")
	}
	// The copy-paste code and the QR payload are the same EMV string for PIX.
	return data, data, nil
}

func classifyStripeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 {
			return &TransientError{Err: err}
		}
		return err
	}
	// Non-API errors are connection level and worth retrying.
	return &TransientError{Err: err}
}
