package app

import (
	"fmt"
	"strings"
	"time"

	"crosspost/internal/config"
	"crosspost/internal/dispatch"
	"crosspost/internal/notifier"
	"crosspost/internal/report"
	"crosspost/internal/runstore"
	"crosspost/internal/verify"
)

// Config mapping helpers. Each one validates its section, so the config
// manager's validator can reuse them to reject bad hot-reloads up front.

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	if cfg.Dispatch.MaxConcurrency < 0 {
		return dispatch.Config{}, fmt.Errorf("dispatch.max_concurrency must be >= 0")
	}
	timeout, err := config.ParseDurationOrDefault("dispatch.attempt_timeout", cfg.Dispatch.AttemptTimeout, 45*time.Second)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
		AttemptTimeout: timeout,
		RatePerSec:     cfg.Dispatch.RatePerSec,
	}, nil
}

func mapVerifyConfig(cfg *config.Config) (verify.Config, error) {
	delay, err := config.ParseDurationOrDefault("verify.delay", cfg.Verify.Delay, 2*time.Minute)
	if err != nil {
		return verify.Config{}, err
	}
	checkTimeout, err := config.ParseDurationOrDefault("verify.check_timeout", cfg.Verify.CheckTimeout, 20*time.Second)
	if err != nil {
		return verify.Config{}, err
	}
	return verify.Config{Delay: delay, CheckTimeout: checkTimeout}, nil
}

func mapBrowserTimeouts(cfg *config.Config) (step, probe time.Duration, err error) {
	step, err = config.ParseDurationOrDefault("browser.step_timeout", cfg.Browser.StepTimeout, 0)
	if err != nil {
		return 0, 0, err
	}
	probe, err = config.ParseDurationOrDefault("browser.locator_probe", cfg.Browser.LocatorProbe, 0)
	if err != nil {
		return 0, 0, err
	}
	return step, probe, nil
}

func mapStorageConfig(cfg *config.Config) (runstore.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return runstore.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return runstore.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			return runstore.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return runstore.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return runstore.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return runstore.Config{}, false, err
		}
		return runstore.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return runstore.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapReportConfig(cfg *config.Config) (report.Config, bool, error) {
	if cfg == nil || cfg.Report == nil || !cfg.Report.Enabled {
		return report.Config{}, false, nil
	}
	rc := cfg.Report
	read, err := config.ParseDurationOrDefault("report.read_timeout", rc.ReadTimeout, 0)
	if err != nil {
		return report.Config{}, false, err
	}
	write, err := config.ParseDurationOrDefault("report.write_timeout", rc.WriteTimeout, 0)
	if err != nil {
		return report.Config{}, false, err
	}
	idle, err := config.ParseDurationOrDefault("report.idle_timeout", rc.IdleTimeout, 0)
	if err != nil {
		return report.Config{}, false, err
	}
	return report.Config{
		Addr:         rc.Addr,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, true, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{}
	}
	nc := cfg.Notifier
	return notifier.Config{
		Enabled:    nc.Enabled,
		Token:      nc.Token,
		ChatID:     nc.ChatID,
		QueueSize:  nc.QueueSize,
		RatePerSec: float64(nc.RatePerSec),
	}
}
