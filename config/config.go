package config

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/canister-runtime/engine"
	"github.com/wippyai/canister-runtime/errors"
)

// DefaultPath is the module run when no path argument is given.
const DefaultPath = "wasm/quick-test-actor.wasm"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "CANISTER_RUN"

const (
	configKey              = "config"
	argHexKey              = "arg-hex"
	callerHexKey           = "caller-hex"
	canisterHexKey         = "canister-hex"
	stableCapacityPagesKey = "stable-capacity-pages"
	memoryPagesKey         = "memory-pages"
	memoryLimitPagesKey    = "memory-limit-pages"
	ledgerLimitKey         = "ledger-limit"
	updatesKey             = "updates"
	upgradeKey             = "upgrade"
	callTimeoutKey         = "call-timeout"
	logLevelKey            = "log-level"
	logFormatKey           = "log-format"
	interactiveKey         = "interactive"
)

// Config is the resolved run configuration.
type Config struct {
	Path string

	// Argument, Caller and Canister are decoded from hex; nil selects the
	// runtime defaults.
	Argument []byte
	Caller   []byte
	Canister []byte

	StableCapacityPages uint64
	MemoryPages         uint32
	MemoryLimitPages    uint32
	LedgerLimit         int
	CallTimeout         time.Duration

	LogLevel  string
	LogFormat string

	Updates     bool
	Upgrade     bool
	Interactive bool
}

// NewFlagSet declares every canister-run flag.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.String(configKey, "", "Config file (yaml, toml or json)")
	fs.String(argHexKey, "", "Message argument as hex (default: empty Candid DIDL\\x00\\x00)")
	fs.String(callerHexKey, "", "Caller principal as hex (default: mock principal)")
	fs.String(canisterHexKey, "", "Canister principal as hex (default: mock principal)")
	fs.Uint64(stableCapacityPagesKey, 0, "Stable memory capacity in 64KiB pages (0 = 1024)")
	fs.Uint32(memoryPagesKey, engine.DefaultHostMemoryPages, "Initial pages of a host-provided memory")
	fs.Uint32(memoryLimitPagesKey, 0, "Maximum guest memory in pages (0 = engine default)")
	fs.Int(ledgerLimitKey, 0, "Keep only the last N ic0 calls per invocation (0 = all)")
	fs.Bool(updatesKey, false, "Also invoke canister_update entry points")
	fs.Bool(upgradeKey, false, "Run canister_pre_upgrade and canister_post_upgrade after the queries")
	fs.Duration(callTimeoutKey, 0, "Abort an entry point after this long (0 = no limit)")
	fs.String(logLevelKey, "warn", "Log level (debug, info, warn, error)")
	fs.String(logFormatKey, "console", "Log format (console, json)")
	fs.BoolP(interactiveKey, "i", false, "Interactive mode with TUI")

	return fs
}

// Load parses args against fs and resolves the configuration.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse flags")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "bind flags")
	}

	if file := v.GetString(configKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "read "+file)
		}
	}

	cfg := &Config{
		Path:                DefaultPath,
		StableCapacityPages: v.GetUint64(stableCapacityPagesKey),
		MemoryPages:         v.GetUint32(memoryPagesKey),
		MemoryLimitPages:    v.GetUint32(memoryLimitPagesKey),
		LedgerLimit:         v.GetInt(ledgerLimitKey),
		CallTimeout:         v.GetDuration(callTimeoutKey),
		LogLevel:            v.GetString(logLevelKey),
		LogFormat:           v.GetString(logFormatKey),
		Updates:             v.GetBool(updatesKey),
		Upgrade:             v.GetBool(upgradeKey),
		Interactive:         v.GetBool(interactiveKey),
	}
	if fs.NArg() > 0 {
		cfg.Path = fs.Arg(0)
	}

	var err error
	if cfg.Argument, err = decodeHex(argHexKey, v.GetString(argHexKey)); err != nil {
		return nil, err
	}
	if cfg.Caller, err = decodeHex(callerHexKey, v.GetString(callerHexKey)); err != nil {
		return nil, err
	}
	if cfg.Canister, err = decodeHex(canisterHexKey, v.GetString(canisterHexKey)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flag parsing alone cannot.
func (c *Config) Validate() error {
	if c.LedgerLimit < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("%s must not be negative", ledgerLimitKey).Value(c.LedgerLimit).Build()
	}
	if c.CallTimeout < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("%s must not be negative", callTimeoutKey).Value(c.CallTimeout).Build()
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, logLevelKey)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("%s must be console or json", logFormatKey).Value(c.LogFormat).Build()
	}
	return nil
}

// EngineConfig maps the memory settings onto an engine configuration.
// A call timeout needs an interruptible engine.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MemoryLimitPages: c.MemoryLimitPages,
		HostMemoryPages:  c.MemoryPages,
		Interruptible:    c.CallTimeout > 0,
	}
}

// NewLogger builds the process logger. Output goes to stderr so it never
// interleaves with the report on stdout.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, logLevelKey)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	return zc.Build()
}

// ParseHex decodes hex with optional spaces and a 0x prefix. Empty input
// yields nil.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), "0x")
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func decodeHex(key, s string) ([]byte, error) {
	b, err := ParseHex(s)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, key)
	}
	return b, nil
}
