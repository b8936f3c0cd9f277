package tariffredis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"import-cost/core/tariff/tarifftest"
	apperrors "import-cost/internal/errors"
)

// no server is needed: the client connects lazily
func offlineClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewWithClientDefaults(t *testing.T) {
	p := NewWithClient(offlineClient(t), "", "", nil)
	if p.key != DefaultKey || p.channel != DefaultChannel {
		t.Errorf("defaults not applied: key=%q channel=%q", p.key, p.channel)
	}
	if p.Name() != "redis:"+DefaultKey {
		t.Errorf("Name() = %q", p.Name())
	}

	custom := NewWithClient(offlineClient(t), "k", "c", nil)
	if custom.key != "k" || custom.channel != "c" {
		t.Errorf("explicit key and channel ignored")
	}
}

func TestPublishRejectsInvalidBeforeWriting(t *testing.T) {
	p := NewWithClient(offlineClient(t), "", "", nil)

	if err := p.Publish(context.Background(), nil); !apperrors.IsType(err, apperrors.TypeConfigInvalid) {
		t.Errorf("nil configuration: expected CONFIGURATION_INVALID, got %v", err)
	}

	cfg := tarifftest.Config()
	cfg.Rules.RoundingStep = decimal.Zero
	if err := p.Publish(context.Background(), cfg); !apperrors.IsType(err, apperrors.TypeConfigInvalid) {
		t.Errorf("invalid configuration: expected CONFIGURATION_INVALID, got %v", err)
	}
}

func TestNewGivesUpOnUnreachableServer(t *testing.T) {
	cfg := Config{Addr: "127.0.0.1:1", ConnectTimeout: 300 * time.Millisecond}
	_, err := New(context.Background(), cfg, nil)
	if !apperrors.IsType(err, apperrors.TypeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}
