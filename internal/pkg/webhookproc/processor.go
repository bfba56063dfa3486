package webhookproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/eduflow-br/eduflow/internal/pkg/gateway"
	"github.com/eduflow-br/eduflow/internal/pkg/metrics/counter"
	"github.com/eduflow-br/eduflow/internal/pkg/subscription"
)

// Status tells the HTTP layer how to answer the delivery. Providers retry on
// anything but a 2xx, so the mapping is part of the processing contract:
// rejected deliveries must not be retried, retryable ones must.
type Status int

const (
	// StatusProcessed covers applied transitions, duplicates and ignored
	// events alike. All of them are acknowledged with a 2xx.
	StatusProcessed Status = iota
	// StatusRejected means the signature did not verify. Answered with a 4xx
	// and nothing was recorded.
	StatusRejected
	// StatusRetryable means a transient failure rolled the delivery back.
	// Answered with a 5xx so the provider redelivers.
	StatusRetryable
)

// Result is the outcome of one webhook delivery.
type Result struct {
	Status  Status
	Outcome subscription.Outcome
	Err     error
}

// EventApplier applies a verified event transactionally.
type EventApplier interface {
	ProcessEvent(ctx context.Context, ev *gateway.NormalizedEvent, payloadSHA256 string) (subscription.Outcome, error)
}

// Processor turns raw webhook deliveries into state transitions: resolve the
// provider adapter, verify the transport signature, then hand the normalized
// event to the subscription service. Signature verification happens before
// anything is written; a forged payload leaves no trace in the ledger.
type Processor struct {
	gateways *gateway.Registry
	config   subscription.ConfigSource
	applier  EventApplier
	counters *counter.Counter
}

// NewProcessor wires the delivery pipeline. counters may be nil, in which case
// no metrics are recorded.
func NewProcessor(gateways *gateway.Registry, config subscription.ConfigSource, applier EventApplier, counters *counter.Counter) *Processor {
	return &Processor{gateways: gateways, config: config, applier: applier, counters: counters}
}

// Process handles one delivery for the named provider.
func (p *Processor) Process(ctx context.Context, provider string, payload []byte, signatureHeader string) Result {
	cfg, err := p.config.GetConfig(ctx)
	if err != nil {
		return Result{Status: StatusRetryable, Err: err}
	}
	adapter, err := p.gateways.ForProvider(provider)
	if err != nil {
		return Result{Status: StatusRejected, Err: err}
	}

	ev, err := adapter.VerifyAndParse(payload, signatureHeader, cfg.WebhookSecret)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			log.Warnf("[Webhook] Rejected %s delivery: %v", provider, err)
			return Result{Status: StatusRejected, Err: err}
		}
		return Result{Status: StatusRetryable, Err: err}
	}

	sum := sha256.Sum256(payload)
	outcome, err := p.applier.ProcessEvent(ctx, ev, hex.EncodeToString(sum[:]))
	if err != nil {
		log.Errorf("[Webhook] Processing %s event %s failed, requesting redelivery: %v", provider, ev.ProviderEventID, err)
		return Result{Status: StatusRetryable, Outcome: outcome, Err: err}
	}

	p.count(ev, outcome)
	return Result{Status: StatusProcessed, Outcome: outcome}
}

func (p *Processor) count(ev *gateway.NormalizedEvent, outcome subscription.Outcome) {
	if p.counters == nil {
		return
	}
	var err error
	switch {
	case outcome == subscription.OutcomeDuplicate:
		err = p.counters.AddWebhookDuplicate()
	case outcome != subscription.OutcomeApplied:
		return
	case ev.Kind == gateway.EventCompleted:
		err = p.counters.AddPaymentCompleted()
	case ev.Kind == gateway.EventFailed:
		err = p.counters.AddPaymentFailed()
	case ev.Kind == gateway.EventExpired:
		err = p.counters.AddPaymentExpired()
	default:
		return
	}
	if err != nil {
		log.Warnf("[Webhook] Counter update failed: %v", err)
	}
}
