package paymentconfig

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/eduflow-br/eduflow/app/models"
)

const redisCacheKey = "payment:config"

// Repository provides durable storage for the payment configuration row.
type Repository interface {
	GetLatest() (*models.PaymentConfig, error)
	Save(cfg *models.PaymentConfig) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a config repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetLatest() (*models.PaymentConfig, error) {
	var cfg models.PaymentConfig
	err := r.db.Order("created_at DESC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Seed defaults on first boot so reads never fail on an empty table.
		cfg = models.PaymentConfig{
			ActiveGateway:        models.GatewayProviderStripe,
			PixExpirationMinutes: 30,
			PixDiscountPercent:   0,
			MaxPaymentRetries:    3,
			CacheTTLSeconds:      300,
		}
		if err := r.db.Create(&cfg).Error; err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *gormRepository) Save(cfg *models.PaymentConfig) error {
	return r.db.Save(cfg).Error
}

// UpdateInput is a partial config update; nil fields keep their current value.
type UpdateInput struct {
	ActiveGateway        *string `json:"active_gateway"`
	APIKey               *string `json:"api_key"`
	WebhookSecret        *string `json:"webhook_secret"`
	PixExpirationMinutes *int    `json:"pix_expiration_minutes"`
	PixDiscountPercent   *int    `json:"pix_discount_percent"`
	MaxPaymentRetries    *int    `json:"max_payment_retries"`
	CacheTTLSeconds      *int    `json:"cache_ttl_seconds"`
}

// Store serves the payment configuration through a short-TTL snapshot cache:
// in-memory first, then Redis, then durable storage. Updates write durable
// storage and invalidate both cache layers so the next read is fresh.
type Store struct {
	repo     Repository
	redis    *redis.Client // optional second cache layer
	validate *validator.Validate
	now      func() time.Time

	mu        sync.RWMutex
	snapshot  *models.PaymentConfig
	fetchedAt time.Time
}

func NewStore(repo Repository, redisClient *redis.Client) *Store {
	return &Store{
		repo:     repo,
		redis:    redisClient,
		validate: validator.New(),
		now:      time.Now,
	}
}

// GetConfig returns the cached snapshot while it is within TTL, refetching
// from Redis or durable storage otherwise.
func (s *Store) GetConfig(ctx context.Context) (*models.PaymentConfig, error) {
	s.mu.RLock()
	if s.snapshot != nil && s.now().Sub(s.fetchedAt) < s.ttl(s.snapshot) {
		cfg := *s.snapshot
		s.mu.RUnlock()
		return &cfg, nil
	}
	s.mu.RUnlock()

	if cfg := s.fromRedis(ctx); cfg != nil {
		s.store(cfg)
		return cfg, nil
	}

	cfg, err := s.repo.GetLatest()
	if err != nil {
		return nil, err
	}
	s.store(cfg)
	s.toRedis(ctx, cfg)
	return cfg, nil
}

// UpdateConfig merges the partial update into the current row, validates it,
// persists it and invalidates the cache so subsequent reads see the change
// immediately.
func (s *Store) UpdateConfig(ctx context.Context, in UpdateInput) (*models.PaymentConfig, error) {
	current, err := s.repo.GetLatest()
	if err != nil {
		return nil, err
	}

	cfg := *current
	if in.ActiveGateway != nil {
		cfg.ActiveGateway = *in.ActiveGateway
	}
	if in.APIKey != nil {
		cfg.APIKey = *in.APIKey
	}
	if in.WebhookSecret != nil {
		cfg.WebhookSecret = *in.WebhookSecret
	}
	if in.PixExpirationMinutes != nil {
		cfg.PixExpirationMinutes = *in.PixExpirationMinutes
	}
	if in.PixDiscountPercent != nil {
		cfg.PixDiscountPercent = *in.PixDiscountPercent
	}
	if in.MaxPaymentRetries != nil {
		cfg.MaxPaymentRetries = *in.MaxPaymentRetries
	}
	if in.CacheTTLSeconds != nil {
		cfg.CacheTTLSeconds = *in.CacheTTLSeconds
	}

	if err := s.validate.Struct(&cfg); err != nil {
		return nil, err
	}

	if err := s.repo.Save(&cfg); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	log.Infof("[PaymentConfig] Configuration updated (gateway=%s, pix window=%dm)", cfg.ActiveGateway, cfg.PixExpirationMinutes)
	return &cfg, nil
}

func (s *Store) ttl(cfg *models.PaymentConfig) time.Duration {
	if cfg.CacheTTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(cfg.CacheTTLSeconds) * time.Second
}

func (s *Store) store(cfg *models.PaymentConfig) {
	s.mu.Lock()
	snap := *cfg
	s.snapshot = &snap
	s.fetchedAt = s.now()
	s.mu.Unlock()
}

func (s *Store) invalidate(ctx context.Context) {
	s.mu.Lock()
	s.snapshot = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()

	if s.redis != nil {
		if err := s.redis.Del(ctx, redisCacheKey).Err(); err != nil {
			log.Warnf("[PaymentConfig] Failed to drop Redis cache entry: %v", err)
		}
	}
}

// cachedConfig mirrors models.PaymentConfig for the Redis layer. The model
// masks credentials with json:"-" for API responses, so the cache needs its
// own shape that round-trips them.
type cachedConfig struct {
	ID                   uint   `json:"id"`
	ActiveGateway        string `json:"active_gateway"`
	APIKey               string `json:"api_key"`
	WebhookSecret        string `json:"webhook_secret"`
	PixExpirationMinutes int    `json:"pix_expiration_minutes"`
	PixDiscountPercent   int    `json:"pix_discount_percent"`
	MaxPaymentRetries    int    `json:"max_payment_retries"`
	CacheTTLSeconds      int    `json:"cache_ttl_seconds"`
}

func (s *Store) fromRedis(ctx context.Context) *models.PaymentConfig {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, redisCacheKey).Result()
	if err != nil {
		return nil
	}
	var c cachedConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil
	}
	return &models.PaymentConfig{
		ID:                   c.ID,
		ActiveGateway:        c.ActiveGateway,
		APIKey:               c.APIKey,
		WebhookSecret:        c.WebhookSecret,
		PixExpirationMinutes: c.PixExpirationMinutes,
		PixDiscountPercent:   c.PixDiscountPercent,
		MaxPaymentRetries:    c.MaxPaymentRetries,
		CacheTTLSeconds:      c.CacheTTLSeconds,
	}
}

func (s *Store) toRedis(ctx context.Context, cfg *models.PaymentConfig) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(cachedConfig{
		ID:                   cfg.ID,
		ActiveGateway:        cfg.ActiveGateway,
		APIKey:               cfg.APIKey,
		WebhookSecret:        cfg.WebhookSecret,
		PixExpirationMinutes: cfg.PixExpirationMinutes,
		PixDiscountPercent:   cfg.PixDiscountPercent,
		MaxPaymentRetries:    cfg.MaxPaymentRetries,
		CacheTTLSeconds:      cfg.CacheTTLSeconds,
	})
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, redisCacheKey, raw, s.ttl(cfg)).Err(); err != nil {
		log.Warnf("[PaymentConfig] Failed to write Redis cache entry: %v", err)
	}
}
