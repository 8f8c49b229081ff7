// Package dispatch fans one content item out to many targets under a
// bounded worker pool and reports exactly one result per target, always.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"crosspost/internal/adapter"
	"crosspost/internal/browserauto"
	"crosspost/internal/content"
	"crosspost/internal/eventbus"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRejected    ErrorKind = "rejected_by_platform"
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindFault       ErrorKind = "adapter_fault"
	KindStepFailed  ErrorKind = "automation_step_failed"
	KindCancelled   ErrorKind = "cancelled"
)

// Result is the outcome of one target's attempt. Exactly one exists per
// selected target after Dispatch returns, whatever happened in between.
type Result struct {
	TargetID     string      `json:"target_id"`
	Succeeded    bool        `json:"succeeded"`
	Ref          adapter.Ref `json:"ref,omitempty"`
	PublishedURL string      `json:"published_url,omitempty"`
	ErrKind      ErrorKind   `json:"err_kind,omitempty"`
	Err          string      `json:"err,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	LatencyMS    int64       `json:"latency_ms"`
}

// Batch is one complete fan-out run.
type Batch struct {
	RunID      string            `json:"run_id"`
	Item       content.Item      `json:"item"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    map[string]Result `json:"results"`
}

var ErrNoTargets = errors.New("dispatch: no targets selected")

// Config tunes the fan-out.
type Config struct {
	// MaxConcurrency caps in-flight attempts; <=0 uses 8.
	MaxConcurrency int
	// AttemptTimeout bounds one authenticate+publish; <=0 uses 45s.
	AttemptTimeout time.Duration
	// RatePerSec is the default per-target rate; targets may override.
	// <=0 disables limiting.
	RatePerSec float64
}

const (
	defaultMaxConcurrency = 8
	defaultAttemptTimeout = 45 * time.Second
)

// Orchestrator runs batches. Build one and reuse it; limiter state is kept
// per target across runs so bursts against the same platform stay bounded.
type Orchestrator struct {
	cfg     Config
	factory func(registry.Target) (adapter.Adapter, error)
	log     logx.Logger
	bus     eventbus.Bus

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewOrchestrator(cfg Config, factory func(registry.Target) (adapter.Adapter, error), log logx.Logger, bus eventbus.Bus) *Orchestrator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		cfg:      cfg,
		factory:  factory,
		log:      log,
		bus:      bus,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Dispatch publishes item to every target and returns the completed batch.
//
// Cancellation is graceful: attempts already started keep their own attempt
// deadline, targets not yet started are backfilled with a cancelled result,
// and the returned error is the context's error. The batch itself is always
// complete and safe to persist.
func (o *Orchestrator) Dispatch(ctx context.Context, item content.Item, targets []registry.Target) (*Batch, error) {
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	batch := &Batch{
		RunID:     uuid.NewString(),
		Item:      item,
		StartedAt: time.Now(),
		Results:   make(map[string]Result, len(targets)),
	}
	o.log.Info("run started",
		logx.String("run_id", batch.RunID),
		logx.Int("targets", len(targets)))
	o.publish(eventbus.TypeRunStarted, eventbus.RunEvent{RunID: batch.RunID, Targets: len(targets)})

	slots := make([]Result, len(targets))
	idxCh := make(chan int)
	workers := o.cfg.MaxConcurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range idxCh {
				slots[idx] = o.attempt(ctx, batch.RunID, item, targets[idx])
			}
		}()
	}
	for i := range targets {
		idxCh <- i
	}
	close(idxCh)
	wg.Wait()

	batch.FinishedAt = time.Now()
	var succeeded, failed int
	for _, r := range slots {
		batch.Results[r.TargetID] = r
		if r.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	o.publish(eventbus.TypeRunCompleted, eventbus.RunEvent{
		RunID: batch.RunID, Targets: len(targets), Succeeded: succeeded, Failed: failed,
	})
	o.log.Info("run completed",
		logx.String("run_id", batch.RunID),
		logx.Int("succeeded", succeeded),
		logx.Int("failed", failed))
	return batch, ctx.Err()
}

// attempt performs one target's authenticate+publish. It never panics out:
// an adapter panic becomes an adapter_fault result so the batch stays
// complete.
func (o *Orchestrator) attempt(ctx context.Context, runID string, item content.Item, t registry.Target) (res Result) {
	res = Result{TargetID: t.ID, StartedAt: time.Now()}
	defer func() {
		res.LatencyMS = time.Since(res.StartedAt).Milliseconds()
		if r := recover(); r != nil {
			res.Succeeded = false
			res.ErrKind = KindFault
			res.Err = fmt.Sprintf("adapter panic: %v", r)
			o.log.Error("adapter panicked",
				logx.String("run_id", runID),
				logx.String("target", t.ID),
				logx.Any("panic", r))
		}
		o.publish(eventbus.TypeAttemptFinished, eventbus.AttemptEvent{
			RunID: runID, TargetID: t.ID, Succeeded: res.Succeeded,
			ErrKind: string(res.ErrKind), Latency: time.Duration(res.LatencyMS) * time.Millisecond,
		})
	}()

	// Cancellation before the attempt starts is a cancelled result; once
	// started, the attempt runs on a detached context so it keeps its own
	// deadline as the grace period.
	if err := ctx.Err(); err != nil {
		res.ErrKind = KindCancelled
		res.Err = err.Error()
		return res
	}
	if lim := o.limiter(t); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			res.ErrKind = KindCancelled
			res.Err = err.Error()
			return res
		}
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.AttemptTimeout)
	defer cancel()

	ad, err := o.factory(t)
	if err != nil {
		res.ErrKind = KindFault
		res.Err = err.Error()
		return res
	}
	sess, err := ad.Authenticate(actx)
	if err != nil {
		res.ErrKind, res.Err = classify(err)
		return res
	}
	ref, err := ad.Publish(actx, sess, item)
	if err != nil {
		res.ErrKind, res.Err = classify(err)
		return res
	}
	res.Succeeded = true
	res.Ref = ref
	res.PublishedURL = ref.URL
	return res
}

// classify maps an adapter error onto the attempt's error kind. Unknown
// errors count as adapter faults so nothing silently disappears.
func classify(err error) (ErrorKind, string) {
	var authErr *adapter.AuthError
	if errors.As(err, &authErr) {
		return KindAuth, authErr.Error()
	}
	var pubErr *adapter.PublishError
	if errors.As(err, &pubErr) {
		switch pubErr.Kind {
		case adapter.PublishRejected:
			return KindRejected, pubErr.Error()
		case adapter.PublishRateLimited:
			return KindRateLimited, pubErr.Error()
		case adapter.PublishTimeout:
			return KindTimeout, pubErr.Error()
		default:
			return KindFault, pubErr.Error()
		}
	}
	var stepErr *browserauto.StepError
	if errors.As(err, &stepErr) {
		return KindStepFailed, stepErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, err.Error()
	}
	return KindFault, err.Error()
}

func (o *Orchestrator) limiter(t registry.Target) *rate.Limiter {
	per := t.RatePerSec
	if per <= 0 {
		per = o.cfg.RatePerSec
	}
	if per <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	lim, ok := o.limiters[t.ID]
	if !ok || lim.Limit() != rate.Limit(per) {
		lim = rate.NewLimiter(rate.Limit(per), 1)
		o.limiters[t.ID] = lim
	}
	return lim
}

func (o *Orchestrator) publish(typ string, payload any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(eventbus.Event{Type: typ, Data: payload})
}
