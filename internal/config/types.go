package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level service configuration.
//
// It is loaded from one JSON or YAML file and decoded strictly, so unknown
// keys are rejected at load/reload time rather than silently ignored.
type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Registry points at the target catalog file (YAML).
	Registry RegistryConfig `json:"registry"`

	// Credentials configures the credential store consulted by the gate
	// and by adapters during Authenticate.
	Credentials CredentialsConfig `json:"credentials,omitempty"`

	Dispatch DispatchConfig `json:"dispatch"`
	Verify   VerifyConfig   `json:"verify"`
	Browser  BrowserConfig  `json:"browser,omitempty"`

	Storage  *StorageConfig  `json:"storage,omitempty"`
	Report   *ReportConfig   `json:"report,omitempty"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RegistryConfig locates the target catalog.
//
// Watch enables fsnotify-based hot reload of the catalog file; without it
// the catalog is loaded once at start and only changes via an explicit
// reload (or restart).
type RegistryConfig struct {
	Path  string `json:"path"`
	Watch bool   `json:"watch,omitempty"`
}

// CredentialsConfig feeds the credential store.
//
// Static entries are merged over process environment lookups. Values are
// secrets: they are never logged and never appear in results.
type CredentialsConfig struct {
	// Static maps credential key -> secret value.
	Static map[string]string `json:"static,omitempty"`
	// Env enables fallback lookups against process environment variables.
	Env bool `json:"env,omitempty"`
}

// DispatchConfig controls the publish orchestrator.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - max_concurrency: 8
//   - attempt_timeout: "45s"
type DispatchConfig struct {
	MaxConcurrency int `json:"max_concurrency,omitempty"`

	// AttemptTimeout wraps Authenticate+Publish per target.
	// Use "0s" for the built-in default.
	AttemptTimeout string `json:"attempt_timeout,omitempty"`

	// RatePerSec is a default per-target outbound rate; individual targets
	// may override it in the catalog. 0 disables rate limiting.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

// VerifyConfig controls the verification reconciler.
//
// Defaults:
//   - delay: "2m" (platform-side propagation/moderation lag)
//   - check_timeout: "20s"
//   - sweep_schedule: "" (no recurring sweeps)
type VerifyConfig struct {
	Delay        string `json:"delay,omitempty"`
	CheckTimeout string `json:"check_timeout,omitempty"`

	// SweepSchedule is a cron spec (robfig/cron) for recurring re-verification
	// of the most recent run. Empty disables sweeps.
	SweepSchedule string `json:"sweep_schedule,omitempty"`
}

// BrowserConfig controls the shared browser automation backend.
type BrowserConfig struct {
	// Bin is the Chrome/Chromium binary; empty lets the launcher decide.
	Bin      string `json:"bin,omitempty"`
	Headless bool   `json:"headless,omitempty"`

	// StepTimeout bounds each script step; LocatorProbe bounds each locator
	// candidate within a step. Go duration strings.
	StepTimeout  string `json:"step_timeout,omitempty"`
	LocatorProbe string `json:"locator_probe,omitempty"`
}

// StorageConfig controls the optional run-record store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./crosspost.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ReportConfig controls the polling read-model HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8480").
//   - The server is read-only but still exposes run outcomes.
type ReportConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8480"

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// NotifierConfig controls operator notifications (Telegram).
//
// If the token is empty the notifier stays disabled regardless of Enabled.
type NotifierConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// ParseDurationField parses one of the duration-string fields above.
// Empty means unset and parses to 0; negative durations are rejected.
// path names the field in error messages ("verify.delay").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def substituted for
// unset (or explicit "0s") values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
