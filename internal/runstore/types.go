package runstore

import (
	"errors"
	"time"

	"crosspost/internal/dispatch"
	"crosspost/internal/verify"
)

var (
	ErrDisabled = errors.New("run store disabled")
	ErrNotFound = errors.New("run not found")
)

// Config configures run persistence.
//
// Driver values:
//   - "file": dependency-free backend, one JSON document per run
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", persistence is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one persisted run: the publish batch plus whatever
// verification observations exist so far. Checks is nil until the first
// verification pass lands.
type Record struct {
	Batch  *dispatch.Batch  `json:"batch"`
	Checks *verify.CheckSet `json:"checks,omitempty"`
}
