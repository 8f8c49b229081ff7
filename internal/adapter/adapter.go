// Package adapter defines the per-target publishing capability set.
//
// One Adapter knows how to publish to and verify against exactly one
// target. Adapters try once and report precisely; retries, timeouts beyond
// the call's ctx, and result accounting all belong to the orchestrator.
package adapter

import (
	"context"
	"fmt"
	"time"

	"crosspost/internal/browserauto"
	"crosspost/internal/content"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

// Session is the output of Authenticate. For stateless API targets it may
// be a bearer token; browser targets authenticate inside their script and
// return a zero Session.
type Session struct {
	Token string
}

// Ref identifies published content on the target side.
type Ref struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

func (r Ref) IsZero() bool { return r.ID == "" && r.URL == "" }

// Adapter is the capability set exposed by every target implementation.
//
// Authenticate is idempotent. Verify must be an independent observation of
// live state, never a replay of the publish-time result. A zero Ref asks
// for a target-level presence check (used to catch false negatives after a
// failed publish).
type Adapter interface {
	TargetID() string
	Authenticate(ctx context.Context) (Session, error)
	Publish(ctx context.Context, s Session, item content.Item) (Ref, error)
	Verify(ctx context.Context, ref Ref) (bool, error)
	CanVerify() bool
}

// Deps carries the shared backends adapters draw on.
type Deps struct {
	Creds   registry.CredentialStore
	Browser *browserauto.Backend
	Scripts *browserauto.ScriptSet
	Log     logx.Logger

	// Zero values fall back to the driver defaults.
	StepTimeout  time.Duration
	ProbeTimeout time.Duration
}

// New builds the adapter for a catalog target.
func New(t registry.Target, deps Deps) (Adapter, error) {
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	switch t.Capability {
	case registry.CapabilityAPI:
		return newAPIAdapter(t, deps.Creds, log), nil
	case registry.CapabilityBrowser:
		if deps.Browser == nil {
			return nil, fmt.Errorf("adapter: target %q needs a browser backend", t.ID)
		}
		return newBrowserAdapter(t, deps, log)
	default:
		return nil, fmt.Errorf("adapter: target %q has unknown capability %q", t.ID, t.Capability)
	}
}

// Factory binds Deps once so the orchestrator can build adapters per target.
func Factory(deps Deps) func(registry.Target) (Adapter, error) {
	return func(t registry.Target) (Adapter, error) { return New(t, deps) }
}
