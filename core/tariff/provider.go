package tariff

import (
	"context"

	"go.uber.org/zap"
)

// Provider supplies validated configuration snapshots from some source
type Provider interface {
	// Name identifies the source in logs
	Name() string

	// Load returns a validated configuration or fails
	Load(ctx context.Context) (*Configuration, error)
}

// Reload loads a snapshot from p and swaps it into the store
func (s *Store) Reload(ctx context.Context, p Provider) error {
	cfg, err := p.Load(ctx)
	if err != nil {
		s.log.Warn("configuration reload failed", zap.String("provider", p.Name()), zap.Error(err))
		return err
	}
	return s.Replace(cfg)
}

// LoadStore builds a store from the first snapshot of p
func LoadStore(ctx context.Context, p Provider, log *zap.Logger) (*Store, error) {
	cfg, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(cfg, log)
}
