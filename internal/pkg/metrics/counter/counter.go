package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	paymentsCompletedKey = "payments:counters:completed"
	paymentsFailedKey    = "payments:counters:failed"
	paymentsExpiredKey   = "payments:counters:expired"
	webhookDuplicatesKey = "webhooks:counters:duplicates"
)

// Counter keeps per-day payment and webhook counters in Redis hashes.
type Counter struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

// dayField buckets counters per UTC day so the admin dashboard can chart them.
func dayField(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (c *Counter) incr(key string) error {
	ctx := context.Background()
	return c.rdb.HIncrBy(ctx, key, dayField(time.Now()), 1).Err()
}

// AddPaymentCompleted increments the completed-payments counter for today.
func (c *Counter) AddPaymentCompleted() error {
	return c.incr(paymentsCompletedKey)
}

// AddPaymentFailed increments the failed-payments counter for today.
func (c *Counter) AddPaymentFailed() error {
	return c.incr(paymentsFailedKey)
}

// AddPaymentExpired increments the expired-offers counter for today.
func (c *Counter) AddPaymentExpired() error {
	return c.incr(paymentsExpiredKey)
}

// AddWebhookDuplicate increments the deduplicated-deliveries counter for today.
func (c *Counter) AddWebhookDuplicate() error {
	return c.incr(webhookDuplicatesKey)
}

// Snapshot is the per-day counter readout served to the admin dashboard.
type Snapshot struct {
	PaymentsCompleted map[string]int64 `json:"payments_completed"`
	PaymentsFailed    map[string]int64 `json:"payments_failed"`
	PaymentsExpired   map[string]int64 `json:"payments_expired"`
	WebhookDuplicates map[string]int64 `json:"webhook_duplicates"`
}

// Read returns all per-day counters currently held in Redis.
func (c *Counter) Read(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error
	if snap.PaymentsCompleted, err = c.readHash(ctx, paymentsCompletedKey); err != nil {
		return nil, err
	}
	if snap.PaymentsFailed, err = c.readHash(ctx, paymentsFailedKey); err != nil {
		return nil, err
	}
	if snap.PaymentsExpired, err = c.readHash(ctx, paymentsExpiredKey); err != nil {
		return nil, err
	}
	if snap.WebhookDuplicates, err = c.readHash(ctx, webhookDuplicatesKey); err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Counter) readHash(ctx context.Context, key string) (map[string]int64, error) {
	data, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for day, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[day] = n
	}
	return out, nil
}
