// Package registry owns the target catalog and the credential gate.
//
// The catalog is loaded once at process start and treated as read-only
// during a dispatch run. Changes arrive only through Reload (explicit or
// fsnotify-triggered), which swaps an immutable snapshot pointer, so
// concurrent readers never observe a partially updated catalog.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"crosspost/internal/config"
	"crosspost/internal/eventbus"
	"crosspost/pkg/logx"
)

// ErrEmptyCatalog is the catastrophic-configuration case: a distribution
// engine with nothing to distribute to refuses to start.
var ErrEmptyCatalog = errors.New("registry: target catalog is empty")

type catalogFile struct {
	Targets []Target `json:"targets"`
}

// Registry holds the current target snapshot.
type Registry struct {
	path string
	log  logx.Logger
	bus  eventbus.Bus

	snap atomic.Pointer[snapshot]

	// reloadMu serializes Reload; readers never take it.
	reloadMu sync.Mutex
}

type snapshot struct {
	targets []Target
	byID    map[string]Target
	loaded  time.Time
}

func New(path string, log logx.Logger, bus eventbus.Bus) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{path: path, log: log, bus: bus}
}

// Load reads the catalog for the first time. It fails on an empty or
// invalid catalog.
func (r *Registry) Load() error {
	return r.Reload()
}

// Reload re-reads the catalog file and swaps the snapshot on success.
// On any error the previous snapshot stays active.
func (r *Registry) Reload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	targets, err := parseCatalog(r.path)
	if err != nil {
		return err
	}

	byID := make(map[string]Target, len(targets))
	for _, t := range targets {
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("registry: duplicate target id %q", t.ID)
		}
		byID[t.ID] = t
	}

	r.snap.Store(&snapshot{targets: targets, byID: byID, loaded: time.Now()})
	r.log.Info("target catalog loaded", logx.String("path", r.path), logx.Int("targets", len(targets)))
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeRegistryReload, Data: len(targets)})
	}
	return nil
}

func parseCatalog(path string) ([]Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read catalog: %w", err)
	}
	jb, _, err := config.CoerceToJSONBytes(path, b)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	var f catalogFile
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("registry: decode catalog: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("registry: invalid catalog: trailing data")
		}
		return nil, err
	}

	if len(f.Targets) == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, t := range f.Targets {
		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
	}
	return f.Targets, nil
}

// Targets returns the current snapshot's target list. The returned slice
// must be treated as read-only.
func (r *Registry) Targets() []Target {
	s := r.snap.Load()
	if s == nil {
		return nil
	}
	return s.targets
}

// Get looks up one target by id in the current snapshot.
func (r *Registry) Get(id string) (Target, bool) {
	s := r.snap.Load()
	if s == nil {
		return Target{}, false
	}
	t, ok := s.byID[id]
	return t, ok
}

// Watch reloads the catalog when its file changes. Failed reloads keep the
// old snapshot and log; they never take the registry down.
//
// The debounce mirrors the config manager: editors produce bursts of write
// events and partial files.
func (r *Registry) Watch(ctx context.Context) error {
	dir := filepath.Dir(r.path)
	file := filepath.Base(r.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: watch init: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("registry: watch %s: %w", dir, err)
	}
	r.log.Debug("registry watcher started", logx.String("dir", dir), logx.String("file", file))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if err := r.Reload(); err != nil {
				r.log.Warn("catalog reload failed; keeping previous snapshot", logx.String("path", r.path), logx.Any("err", err))
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("registry: watcher closed")
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) {
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("registry: watcher closed")
			}
			if err != nil {
				r.log.Warn("registry watch error", logx.Any("err", err))
			}
		}
	}
}
