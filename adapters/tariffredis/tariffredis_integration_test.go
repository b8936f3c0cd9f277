//go:build integration

package tariffredis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"import-cost/core/tariff"
	"import-cost/core/tariff/tarifftest"
	apperrors "import-cost/internal/errors"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		tcredis.WithLogLevel(tcredis.LogLevelNotice),
	)
	if err != nil {
		t.Fatalf("failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	opts, err := redis.ParseURL(connStr)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", connStr, err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestProvider_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := startRedis(t)
	p := NewWithClient(client, "test:tariff", "test:tariff:updates", zap.NewNop())

	t.Run("Load_Missing", func(t *testing.T) {
		_, err := p.Load(ctx)
		if !apperrors.IsType(err, apperrors.TypeNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})

	t.Run("Publish_Load", func(t *testing.T) {
		cfg := tarifftest.Config()
		if err := p.Publish(ctx, cfg); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		got, err := p.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.Fingerprint() != cfg.Fingerprint() {
			t.Errorf("loaded configuration differs from published one")
		}
	})

	t.Run("Load_Invalid", func(t *testing.T) {
		if err := client.Set(ctx, "test:broken", `{"version": ""}`, 0).Err(); err != nil {
			t.Fatal(err)
		}
		broken := NewWithClient(client, "test:broken", "", zap.NewNop())
		if _, err := broken.Load(ctx); !apperrors.IsType(err, apperrors.TypeConfigInvalid) {
			t.Fatalf("expected CONFIGURATION_INVALID, got %v", err)
		}
	})

	t.Run("Watch", func(t *testing.T) {
		store, err := tariff.NewStore(tarifftest.Config(), zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		reloaded := make(chan string, 4)
		store.OnReplace(func(cfg *tariff.Configuration) {
			reloaded <- cfg.Version
		})

		watchCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- p.Watch(watchCtx, store) }()

		next := tarifftest.Config()
		next.Version = "2024_07_01"

		// the subscription may not be live yet, so republish until it lands
		deadline := time.After(20 * time.Second)
		for store.Version() != next.Version {
			if err := p.Publish(ctx, next); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
			select {
			case <-reloaded:
			case <-time.After(200 * time.Millisecond):
			case <-deadline:
				t.Fatalf("store never picked up version %s", next.Version)
			}
		}

		stop()
		if err := <-done; err != nil {
			t.Errorf("Watch returned %v", err)
		}
	})
}
