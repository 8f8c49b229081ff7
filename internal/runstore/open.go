package runstore

import (
	"context"
	"errors"
	"strings"

	"crosspost/internal/dispatch"
	"crosspost/internal/verify"
	"crosspost/pkg/logx"
)

// Store persists runs so verification sweeps and the report server can see
// them after the fact.
type Store interface {
	SaveBatch(ctx context.Context, batch *dispatch.Batch) error
	SaveChecks(ctx context.Context, checks verify.CheckSet) error
	GetRun(ctx context.Context, runID string) (Record, error)
	LatestRunID(ctx context.Context) (string, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if persistence is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown runstore driver: " + driver)
	}
}
