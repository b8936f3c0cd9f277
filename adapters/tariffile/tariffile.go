// Package tariffile reads and writes tariff configuration files in JSON, YAML
// or HCL. Every load re-validates the document, even one this package wrote.
package tariffile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
)

// Format is a configuration file serialization
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", apperrors.Newf(apperrors.TypeInput, "cannot infer configuration format from %q", path)
	}
}

// ParseFormat normalizes a format name; empty means infer from the path
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "hcl":
		return FormatHCL, nil
	default:
		return "", apperrors.Newf(apperrors.TypeInput, "unknown configuration format %q", s)
	}
}

// Provider loads configuration from a file
type Provider struct {
	Path string

	// Format overrides extension-based detection when set
	Format Format
}

// NewProvider creates a file provider
func NewProvider(path string, format Format) *Provider {
	return &Provider{Path: path, Format: format}
}

// Name identifies the provider
func (p *Provider) Name() string {
	return "file:" + p.Path
}

// Load reads and validates the file
func (p *Provider) Load(ctx context.Context) (*tariff.Configuration, error) {
	return LoadFormat(p.Path, p.Format)
}

// Load reads a configuration file, detecting the format from its extension
func Load(path string) (*tariff.Configuration, error) {
	return LoadFormat(path, "")
}

// LoadFormat reads a configuration file in an explicit format
func LoadFormat(path string, format Format) (*tariff.Configuration, error) {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("configuration file", path)
		}
		return nil, apperrors.Wrapf(apperrors.TypeInternal, err, "failed to read %s", path)
	}
	return Parse(data, format, path)
}

// Parse decodes and validates configuration data
func Parse(data []byte, format Format, filename string) (*tariff.Configuration, error) {
	doc, err := Decode(data, format, filename)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}

// Decode turns raw data into a document without validating it
func Decode(data []byte, format Format, filename string) (*tariff.Document, error) {
	var doc tariff.Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, apperrors.Wrapf(apperrors.TypeConfigInvalid, err, "invalid JSON in %s", filename)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, apperrors.Wrapf(apperrors.TypeConfigInvalid, err, "invalid YAML in %s", filename)
		}
	case FormatHCL:
		return decodeHCL(data, filename)
	default:
		return nil, apperrors.Newf(apperrors.TypeInput, "unsupported format %q", format)
	}
	return &doc, nil
}

// Encode renders cfg in a writable format
func Encode(cfg *tariff.Configuration, format Format) ([]byte, error) {
	doc := tariff.DocumentFrom(cfg)
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, apperrors.Internal("failed to encode JSON", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, apperrors.Internal("failed to encode YAML", err)
		}
		if err := enc.Close(); err != nil {
			return nil, apperrors.Internal("failed to encode YAML", err)
		}
		return buf.Bytes(), nil
	case FormatHCL:
		return nil, apperrors.Input("HCL configuration files are read-only; save as JSON or YAML")
	default:
		return nil, apperrors.Newf(apperrors.TypeInput, "unsupported format %q", format)
	}
}

// Save writes cfg to path, picking the format from the extension
func Save(path string, cfg *tariff.Configuration) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(cfg, format)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.Wrapf(apperrors.TypeInternal, err, "failed to create %s", dir)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return apperrors.Wrapf(apperrors.TypeInternal, err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperrors.Wrapf(apperrors.TypeInternal, err, "failed to replace %s", path)
	}
	return nil
}

// String returns the format name
func (f Format) String() string {
	return string(f)
}

var _ tariff.Provider = (*Provider)(nil)
