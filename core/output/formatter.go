// Package output renders estimates for people and machines.
package output

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"import-cost/core/estimate"
	apperrors "import-cost/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable terminal table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatMarkdown is a markdown table
	FormatMarkdown Format = "markdown"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given report
	Render(w io.Writer, report *Report) error
}

// Report is one rendered estimate
type Report struct {
	Result   *estimate.Result `json:"result"`
	Metadata Metadata         `json:"metadata"`
}

// Metadata contains execution context
type Metadata struct {
	// EstimateID correlates the report with log lines
	EstimateID string `json:"estimate_id"`

	// Timestamp is when the estimation was performed
	Timestamp string `json:"timestamp"`

	// Duration is how long the estimation took
	Duration string `json:"duration"`

	// ConfigSource names the provider the tariff came from
	ConfigSource string `json:"config_source,omitempty"`

	// Version is the tool version
	Version string `json:"version"`
}

// NewReport wraps result with fresh metadata
func NewReport(result *estimate.Result, started time.Time, source, version string) *Report {
	return &Report{
		Result: result,
		Metadata: Metadata{
			EstimateID:   uuid.NewString(),
			Timestamp:    started.UTC().Format(time.RFC3339),
			Duration:     time.Since(started).String(),
			ConfigSource: source,
			Version:      version,
		},
	}
}

// Registry manages formatter registration
type Registry struct {
	mu         sync.RWMutex
	formatters map[Format]Formatter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{formatters: make(map[Format]Formatter)}
}

// Register adds a formatter. A second formatter for the same format is rejected.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.formatters[f.Format()]; exists {
		return apperrors.Newf(apperrors.TypeInput, "formatter %q already registered", f.Format())
	}
	r.formatters[f.Format()] = f
	return nil
}

// Get returns the formatter for format
func (r *Registry) Get(format Format) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formatters[format]
	if !ok {
		return nil, apperrors.Newf(apperrors.TypeInput, "unknown output format %q", format)
	}
	return f, nil
}

// Formats lists registered formats in name order
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.formatters))
	for f := range r.formatters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry holding the built-in formatters
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		_ = defaultRegistry.Register(&CLIFormatter{})
		_ = defaultRegistry.Register(JSONFormatter{Indent: "  "})
		_ = defaultRegistry.Register(MarkdownFormatter{})
	})
	return defaultRegistry
}
