package config

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/canister-runtime/engine"
	"github.com/wippyai/canister-runtime/errors"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	return Load(NewFlagSet("test"), args)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != DefaultPath {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.MemoryPages != engine.DefaultHostMemoryPages {
		t.Errorf("MemoryPages = %d", cfg.MemoryPages)
	}
	if cfg.Argument != nil || cfg.Caller != nil || cfg.Canister != nil {
		t.Error("hex fields should default to nil")
	}
	if cfg.Updates || cfg.Upgrade || cfg.Interactive {
		t.Error("bool flags should default to false")
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "console" {
		t.Errorf("log = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := load(t,
		"--arg-hex", "44 49 44 4c 00 00",
		"--caller-hex", "0x0102",
		"--ledger-limit", "50",
		"--call-timeout", "2s",
		"--updates",
		"-i",
		"actor.wasm",
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(cfg.Argument, []byte("DIDL\x00\x00")) {
		t.Errorf("Argument = %x", cfg.Argument)
	}
	if !bytes.Equal(cfg.Caller, []byte{1, 2}) {
		t.Errorf("Caller = %x", cfg.Caller)
	}
	if cfg.LedgerLimit != 50 || cfg.CallTimeout != 2*time.Second {
		t.Errorf("LedgerLimit = %d, CallTimeout = %s", cfg.LedgerLimit, cfg.CallTimeout)
	}
	if !cfg.Updates || !cfg.Interactive {
		t.Error("bool flags not applied")
	}
	if cfg.Path != "actor.wasm" {
		t.Errorf("Path = %q", cfg.Path)
	}
	if !cfg.EngineConfig().Interruptible {
		t.Error("call timeout should make the engine interruptible")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CANISTER_RUN_LEDGER_LIMIT", "7")
	t.Setenv("CANISTER_RUN_UPGRADE", "true")

	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LedgerLimit != 7 || !cfg.Upgrade {
		t.Errorf("LedgerLimit = %d, Upgrade = %v", cfg.LedgerLimit, cfg.Upgrade)
	}

	cfg, err = load(t, "--ledger-limit", "9")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LedgerLimit != 9 {
		t.Errorf("flag should win over env, got %d", cfg.LedgerLimit)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := "memory-pages: 16\nstable-capacity-pages: 8\nlog-format: json\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(t, "--config", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MemoryPages != 16 || cfg.StableCapacityPages != 8 {
		t.Errorf("MemoryPages = %d, StableCapacityPages = %d", cfg.MemoryPages, cfg.StableCapacityPages)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad hex", []string{"--arg-hex", "zz"}},
		{"odd hex", []string{"--canister-hex", "abc"}},
		{"negative ledger", []string{"--ledger-limit", "-1"}},
		{"bad level", []string{"--log-level", "loud"}},
		{"bad format", []string{"--log-format", "xml"}},
		{"unknown flag", []string{"--nope"}},
		{"missing file", []string{"--config", "/does/not/exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Phase != errors.PhaseConfig {
				t.Errorf("error = %v, want config phase", err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		cfg := &Config{LogLevel: "debug", LogFormat: format}
		l, err := cfg.NewLogger()
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("%s: debug not enabled", format)
		}
	}
}
