package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestBuildWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	logger, err := Build(Config{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	logger.Named("lookup").Warn("displacement clamped")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"displacement clamped"`) {
		t.Errorf("expected JSON message in log, got %s", out)
	}
	if !strings.Contains(out, `"logger":"lookup"`) {
		t.Errorf("expected logger name in log, got %s", out)
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil, "estimate") == nil {
		t.Fatal("OrDefault returned nil logger")
	}

	own, err := Build(DefaultConfig())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if OrDefault(own, "estimate") != own {
		t.Error("OrDefault must keep an explicit logger")
	}
}

func TestBuildUnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := Build(Config{Level: "loud", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug must be disabled when level falls back to info")
	}
}
