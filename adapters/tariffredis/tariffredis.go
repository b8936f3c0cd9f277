// Package tariffredis shares tariff configuration through Redis. A publisher
// stores the JSON document under a key and announces the new version on a
// channel; watchers reload their store when an announcement arrives.
package tariffredis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"import-cost/adapters/tariffile"
	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
	"import-cost/internal/logging"
)

const (
	DefaultKey     = "import-cost:tariff"
	DefaultChannel = "import-cost:tariff:updates"
)

// Config holds connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string

	// ConnectTimeout bounds connection retries; zero means 30s
	ConnectTimeout time.Duration
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 30 * time.Second
	}
	return c.ConnectTimeout
}

// Provider loads and publishes configuration snapshots
type Provider struct {
	client  *redis.Client
	key     string
	channel string
	log     *zap.Logger
}

// New connects to Redis, retrying the first ping with exponential backoff
// for up to ConnectTimeout.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Provider, error) {
	log = logging.OrDefault(log, "tariffredis")
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = cfg.connectTimeout()
	retryPolicy.MaxInterval = 5 * time.Second

	err := backoff.RetryNotify(
		func() error {
			return client.Ping(ctx).Err()
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, next time.Duration) {
			log.Warn("redis connection failed, retrying",
				zap.String("addr", cfg.Addr),
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		_ = client.Close()
		return nil, apperrors.Wrapf(apperrors.TypeInternal, err, "failed to connect to redis at %s", cfg.Addr)
	}
	return NewWithClient(client, cfg.Key, cfg.Channel, log), nil
}

// NewWithClient wraps an existing client. Empty key or channel fall back to
// the defaults.
func NewWithClient(client *redis.Client, key, channel string, log *zap.Logger) *Provider {
	if key == "" {
		key = DefaultKey
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Provider{
		client:  client,
		key:     key,
		channel: channel,
		log:     logging.OrDefault(log, "tariffredis"),
	}
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "redis:" + p.key
}

// Load reads and validates the stored document
func (p *Provider) Load(ctx context.Context) (*tariff.Configuration, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound("tariff configuration", p.Name())
	}
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.TypeInternal, err, "failed to read %s", p.key)
	}
	return tariffile.Parse(data, tariffile.FormatJSON, p.Name())
}

// Publish stores cfg and announces its version. Invalid configurations are
// never written.
func (p *Provider) Publish(ctx context.Context, cfg *tariff.Configuration) error {
	if cfg == nil {
		return apperrors.ConfigInvalid("configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := tariffile.Encode(cfg, tariffile.FormatJSON)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key, data, 0)
	pipe.Publish(ctx, p.channel, cfg.Version)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrapf(apperrors.TypeInternal, err, "failed to publish version %s", cfg.Version)
	}

	p.log.Info("published configuration",
		zap.String("version", cfg.Version),
		zap.String("key", p.key),
		zap.String("channel", p.channel),
	)
	return nil
}

// Watch reloads store whenever a new version is announced. It blocks until
// ctx is cancelled. A rejected snapshot leaves the store unchanged.
func (p *Provider) Watch(ctx context.Context, store *tariff.Store) error {
	sub := p.client.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return apperrors.Wrapf(apperrors.TypeInternal, err, "failed to subscribe to %s", p.channel)
	}
	p.log.Info("watching configuration updates", zap.String("channel", p.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", p.channel)
			}
			p.handle(ctx, store, msg.Payload)
		}
	}
}

func (p *Provider) handle(ctx context.Context, store *tariff.Store, announced string) {
	if announced != "" && announced == store.Version() {
		p.log.Debug("configuration already current", zap.String("version", announced))
		return
	}
	// Reload logs the failure
	_ = store.Reload(ctx, p)
}

// Close releases the connection
func (p *Provider) Close() error {
	return p.client.Close()
}

var _ tariff.Provider = (*Provider)(nil)
