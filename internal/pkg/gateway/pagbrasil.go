package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eduflow-br/eduflow/app/models"
	"github.com/eduflow-br/eduflow/internal/pkg/env"
)

const defaultPagBrasilAPIBaseURL = "https://api.pagbrasil.example.com/v1"

// PagBrasilAdapter talks to a REST charge API that signs webhook bodies with
// HMAC-SHA256 in the X-Pagbrasil-Signature header. It exists to keep the
// adapter seam honest: nothing outside this package may assume Stripe.
type PagBrasilAdapter struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewPagBrasilAdapterFromEnv() *PagBrasilAdapter {
	return &PagBrasilAdapter{
		APIKey:     strings.TrimSpace(env.GetEnv("PAGBRASIL_API_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("PAGBRASIL_API_BASE_URL", defaultPagBrasilAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (a *PagBrasilAdapter) Provider() string {
	return models.GatewayProviderPagBrasil
}

func (a *PagBrasilAdapter) CreateCardCheckout(ctx context.Context, p CheckoutParams) (*CardCheckout, error) {
	body := map[string]interface{}{
		"reference":    p.Reference,
		"email":        p.StudentEmail,
		"description":  p.PlanName,
		"amount_cents": p.AmountCents,
		"currency":     p.Currency,
		"success_url":  p.SuccessURL,
		"cancel_url":   p.CancelURL,
	}

	var resp struct {
		ID          string `json:"id"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := a.do(ctx, "pagbrasil card checkout", http.MethodPost, "/checkouts", body, &resp); err != nil {
		return nil, err
	}
	return &CardCheckout{SessionID: resp.ID, CheckoutURL: resp.CheckoutURL}, nil
}

func (a *PagBrasilAdapter) CreatePixCharge(ctx context.Context, p PixChargeParams) (*PixCharge, error) {
	body := map[string]interface{}{
		"reference":    p.Reference,
		"description":  p.Description,
		"amount_cents": p.AmountCents,
		"currency":     p.Currency,
		"expires_at":   p.ExpiresAt.UTC().Format(time.RFC3339),
	}

	var resp struct {
		ID            string `json:"id"`
		QRCode        string `json:"qr_code"`
		CopyPasteCode string `json:"copy_paste_code"`
	}
	if err := a.do(ctx, "pagbrasil pix charge", http.MethodPost, "/pix/charges", body, &resp); err != nil {
		return nil, err
	}
	return &PixCharge{ChargeID: resp.ID, QRCode: resp.QRCode, CopyPasteCode: resp.CopyPasteCode}, nil
}

func (a *PagBrasilAdapter) CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error {
	path := "/subscriptions/" + gatewaySubscriptionID + "/cancel"
	return a.do(ctx, "pagbrasil subscription cancel", http.MethodPost, path, nil, nil)
}

func (a *PagBrasilAdapter) CancelPixCharge(ctx context.Context, chargeID string) error {
	path := "/pix/charges/" + chargeID + "/cancel"
	return a.do(ctx, "pagbrasil pix cancel", http.MethodPost, path, nil, nil)
}

func (a *PagBrasilAdapter) VerifyAndParse(payload []byte, signatureHeader, secret string) (*NormalizedEvent, error) {
	if !VerifyHMACSignature(payload, signatureHeader, secret) {
		return nil, ErrInvalidSignature
	}

	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ChargeID       string `json:"charge_id"`
			SubscriptionID string `json:"subscription_id"`
			AmountCents    int64  `json:"amount_cents"`
			Currency       string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("pagbrasil webhook: decode payload: %w", err)
	}

	out := &NormalizedEvent{
		Provider:              models.GatewayProviderPagBrasil,
		ProviderEventID:       raw.ID,
		EventType:             raw.Type,
		Kind:                  EventUnknown,
		GatewayPaymentID:      raw.Data.ChargeID,
		GatewaySubscriptionID: raw.Data.SubscriptionID,
		AmountCents:           raw.Data.AmountCents,
		Currency:              strings.ToUpper(raw.Data.Currency),
	}

	switch raw.Type {
	case "charge.paid":
		out.Kind = EventCompleted
	case "charge.failed":
		out.Kind = EventFailed
	case "charge.expired":
		out.Kind = EventExpired
	case "subscription.cancelled":
		out.Kind = EventSubscriptionCancelled
	}
	return out, nil
}

func (a *PagBrasilAdapter) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	return withRetry(ctx, op, func() error {
		var reader io.Reader
		if body != nil {
			buf, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(buf)
		}

		req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(a.APIBaseURL, "/")+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.HTTPClient.Do(req)
		if err != nil {
			return &TransientError{Err: err}
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode >= 500 {
			return &TransientError{Err: fmt.Errorf("%s: status=%d body=%s", op, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%s: status=%d body=%s", op, resp.StatusCode, string(respBody))
		}
		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", op, err)
			}
		}
		return nil
	})
}
