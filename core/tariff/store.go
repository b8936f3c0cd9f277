package tariff

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "import-cost/internal/errors"
	"import-cost/internal/logging"
)

// Store is the process-wide slot holding the active configuration snapshot.
// Readers never block; writers are serialized and publish a new snapshot with
// one pointer swap, so an estimate sees either the old or the new tariff in full.
type Store struct {
	current atomic.Pointer[Configuration]

	mu    sync.Mutex
	hooks []func(*Configuration)
	log   *zap.Logger
}

// NewStore validates cfg and makes it the active snapshot
func NewStore(cfg *Configuration, log *zap.Logger) (*Store, error) {
	if cfg == nil {
		return nil, apperrors.ConfigInvalid("configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{log: logging.OrDefault(log, "tariff")}
	s.current.Store(cfg)
	return s, nil
}

// Current returns the active snapshot. Do not modify it.
func (s *Store) Current() *Configuration {
	return s.current.Load()
}

// Version returns the version of the active snapshot
func (s *Store) Version() string {
	return s.Current().Version
}

// OnReplace registers fn to run after every successful swap
func (s *Store) OnReplace(fn func(*Configuration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Replace validates cfg and swaps it in. On failure the active snapshot is untouched.
func (s *Store) Replace(cfg *Configuration) error {
	if cfg == nil {
		return apperrors.ConfigInvalid("configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		s.log.Warn("rejected configuration", zap.String("version", cfg.Version), zap.Error(err))
		return err
	}

	s.mu.Lock()
	previous := s.current.Swap(cfg)
	hooks := append([]func(*Configuration){}, s.hooks...)
	s.mu.Unlock()

	s.log.Info("configuration replaced",
		zap.String("previous", previous.Version),
		zap.String("version", cfg.Version),
	)
	for _, fn := range hooks {
		fn(cfg)
	}
	return nil
}

// ApplyTemplate applies patch lines to a copy of the active snapshot and swaps
// the copy in when at least one row changed and the result still validates.
func (s *Store) ApplyTemplate(content string, now time.Time) (ApplyStats, error) {
	s.mu.Lock()
	next := s.current.Load().Clone()
	stats := ApplyTemplate(next, content, now)
	if !stats.Changed() {
		s.mu.Unlock()
		s.log.Info("template applied without changes",
			zap.Int("skipped", stats.Skipped),
			zap.Int("errored", stats.Errored),
		)
		return stats, nil
	}
	if err := next.Validate(); err != nil {
		stats.Version = s.current.Load().Version
		s.mu.Unlock()
		return stats, err
	}
	s.current.Store(next)
	hooks := append([]func(*Configuration){}, s.hooks...)
	s.mu.Unlock()

	s.log.Info("template applied",
		zap.String("version", stats.Version),
		zap.Int("updated", stats.Updated),
		zap.Int("added", stats.Added),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errored", stats.Errored),
	)
	for _, fn := range hooks {
		fn(next)
	}
	return stats, nil
}
