package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned by VerifyAndParse when the transport
// signature does not match the payload. Callers must reject the delivery
// without recording it.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Adapter is the seam between the engine and one payment provider. All
// provider calls are plain network I/O; no subscription row lock may be held
// across them.
type Adapter interface {
	Provider() string
	CreateCardCheckout(ctx context.Context, p CheckoutParams) (*CardCheckout, error)
	CreatePixCharge(ctx context.Context, p PixChargeParams) (*PixCharge, error)
	CancelSubscription(ctx context.Context, gatewaySubscriptionID string) error
	CancelPixCharge(ctx context.Context, chargeID string) error
	VerifyAndParse(payload []byte, signatureHeader, secret string) (*NormalizedEvent, error)
}

// Registry resolves the adapter for the currently configured provider.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// ForProvider returns the adapter registered under the given provider name.
func (r *Registry) ForProvider(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("no gateway adapter registered for provider %q", provider)
	}
	return a, nil
}
