// Package verify performs independent post-publish observations and
// reconciles them with publish-time results.
package verify

import (
	"context"
	"time"

	"crosspost/internal/adapter"
	"crosspost/internal/dispatch"
	"crosspost/internal/eventbus"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

// Check is one observation of live state on a target. Only definitive
// observations become checks; an errored or unsupported check leaves no
// entry at all.
type Check struct {
	TargetID     string    `json:"target_id"`
	ObservedLive bool      `json:"observed_live"`
	ObservedURL  string    `json:"observed_url,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// CheckSet holds all observations for one run.
type CheckSet struct {
	RunID  string           `json:"run_id"`
	Checks map[string]Check `json:"checks"`
}

// Status is the reconciled per-target verdict.
type Status string

const (
	// StatusConfirmed: publish succeeded and the content was observed live.
	StatusConfirmed Status = "confirmed"
	// StatusDisputed: publish and observation disagree, either direction.
	StatusDisputed Status = "disputed"
	// StatusUnconfirmed: publish failed and nothing was observed live.
	StatusUnconfirmed Status = "unconfirmed"
	// StatusNotAttempted: no definitive observation exists.
	StatusNotAttempted Status = "not_attempted"
)

// Merge reconciles publish results against observations. It is pure and
// idempotent: merging the same inputs twice yields the same verdicts, and
// it never mutates either input.
func Merge(batch *dispatch.Batch, checks CheckSet) map[string]Status {
	out := make(map[string]Status, len(batch.Results))
	for id, res := range batch.Results {
		check, ok := checks.Checks[id]
		switch {
		case !ok:
			out[id] = StatusNotAttempted
		case res.Succeeded && check.ObservedLive:
			out[id] = StatusConfirmed
		case !res.Succeeded && !check.ObservedLive:
			out[id] = StatusUnconfirmed
		default:
			out[id] = StatusDisputed
		}
	}
	return out
}

// Config tunes the reconciler.
type Config struct {
	// Delay is how long after a run finishes checks begin, giving targets
	// time to propagate. <=0 checks immediately.
	Delay time.Duration
	// CheckTimeout bounds one observation; <=0 uses 20s.
	CheckTimeout time.Duration
}

const defaultCheckTimeout = 20 * time.Second

// Reconciler runs observation passes over completed batches.
type Reconciler struct {
	cfg     Config
	factory func(registry.Target) (adapter.Adapter, error)
	log     logx.Logger
	bus     eventbus.Bus
}

func NewReconciler(cfg Config, factory func(registry.Target) (adapter.Adapter, error), log logx.Logger, bus eventbus.Bus) *Reconciler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{cfg: cfg, factory: factory, log: log, bus: bus}
}

// Run waits the configured delay, then observes every target in the batch
// that supports verification. Failed publishes are checked too: content
// that went live despite a reported failure must surface as disputed, not
// stay hidden.
//
// The returned CheckSet is complete as far as the context allowed; a
// cancelled run returns the checks gathered so far with the ctx error.
func (r *Reconciler) Run(ctx context.Context, batch *dispatch.Batch, targets []registry.Target) (CheckSet, error) {
	set := CheckSet{RunID: batch.RunID, Checks: make(map[string]Check)}
	if r.cfg.Delay > 0 {
		timer := time.NewTimer(r.cfg.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return set, ctx.Err()
		}
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		res, ok := batch.Results[t.ID]
		if !ok {
			continue
		}
		ad, err := r.factory(t)
		if err != nil {
			r.log.Warn("verify skipped, adapter build failed",
				logx.String("run_id", batch.RunID),
				logx.String("target", t.ID),
				logx.Err(err))
			continue
		}
		if !ad.CanVerify() {
			continue
		}
		check, ok := r.observe(ctx, ad, res)
		if !ok {
			continue
		}
		set.Checks[t.ID] = check
	}

	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TypeVerifyCompleted, Data: eventbus.RunEvent{
			RunID: batch.RunID, Targets: len(set.Checks),
		}})
	}
	r.log.Info("verification pass finished",
		logx.String("run_id", batch.RunID),
		logx.Int("checks", len(set.Checks)))
	return set, nil
}

func (r *Reconciler) observe(ctx context.Context, ad adapter.Adapter, res dispatch.Result) (Check, bool) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.CheckTimeout)
	defer cancel()

	// Failed publishes get a presence check against a zero ref.
	ref := adapter.Ref{}
	if res.Succeeded {
		ref = res.Ref
	}
	live, err := ad.Verify(cctx, ref)
	if err != nil {
		r.log.Debug("verify inconclusive",
			logx.String("target", ad.TargetID()),
			logx.Err(err))
		return Check{}, false
	}
	check := Check{
		TargetID:     ad.TargetID(),
		ObservedLive: live,
		CheckedAt:    time.Now(),
	}
	if live {
		check.ObservedURL = res.PublishedURL
	}
	return check, true
}
