package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"crosspost/internal/adapter"
	"crosspost/internal/browserauto"
	"crosspost/internal/content"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

func testItem() content.Item {
	return content.Item{SourceURL: "https://cdn.example/v.mp4", Title: "clip"}
}

func targetsNamed(ids ...string) []registry.Target {
	out := make([]registry.Target, len(ids))
	for i, id := range ids {
		out[i] = registry.Target{ID: id, Tier: registry.TierOpen, Capability: registry.CapabilityAPI}
	}
	return out
}

func scriptedFactory(byID map[string]*adapter.Scripted) func(registry.Target) (adapter.Adapter, error) {
	return func(t registry.Target) (adapter.Adapter, error) {
		if ad, ok := byID[t.ID]; ok {
			return ad, nil
		}
		return &adapter.Scripted{ID: t.ID}, nil
	}
}

func TestDispatchOneResultPerTarget(t *testing.T) {
	t.Parallel()
	adapters := map[string]*adapter.Scripted{
		"ok-1": {ID: "ok-1"},
		"ok-2": {ID: "ok-2"},
		"reject": {ID: "reject", PublishFn: func(context.Context, adapter.Session, content.Item) (adapter.Ref, error) {
			return adapter.Ref{}, &adapter.PublishError{Kind: adapter.PublishRejected, Status: 422, Message: "nope"}
		}},
		"badauth": {ID: "badauth", AuthFn: func(context.Context) (adapter.Session, error) {
			return adapter.Session{}, &adapter.AuthError{TargetID: "badauth", Reason: "expired"}
		}},
	}
	o := NewOrchestrator(Config{MaxConcurrency: 2}, scriptedFactory(adapters), logx.Nop(), nil)

	batch, err := o.Dispatch(context.Background(), testItem(), targetsNamed("ok-1", "ok-2", "reject", "badauth"))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if batch.RunID == "" {
		t.Fatal("empty run id")
	}
	if len(batch.Results) != 4 {
		t.Fatalf("Results = %d entries, want 4", len(batch.Results))
	}
	if !batch.Results["ok-1"].Succeeded || !batch.Results["ok-2"].Succeeded {
		t.Fatalf("expected successes: %+v", batch.Results)
	}
	if got := batch.Results["reject"].ErrKind; got != KindRejected {
		t.Fatalf("reject ErrKind = %s", got)
	}
	if got := batch.Results["badauth"].ErrKind; got != KindAuth {
		t.Fatalf("badauth ErrKind = %s", got)
	}
}

func TestDispatchPanicBecomesAdapterFault(t *testing.T) {
	t.Parallel()
	adapters := map[string]*adapter.Scripted{
		"panicky": {ID: "panicky", PublishFn: func(context.Context, adapter.Session, content.Item) (adapter.Ref, error) {
			panic("exploded")
		}},
	}
	o := NewOrchestrator(Config{}, scriptedFactory(adapters), logx.Nop(), nil)

	batch, err := o.Dispatch(context.Background(), testItem(), targetsNamed("panicky", "ok"))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	res := batch.Results["panicky"]
	if res.Succeeded || res.ErrKind != KindFault {
		t.Fatalf("panicky result = %+v", res)
	}
	if !batch.Results["ok"].Succeeded {
		t.Fatal("healthy target was dragged down by the panic")
	}
}

func TestDispatchCancellationBackfills(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	var publishes atomic.Int32
	slowPublish := func(ctx context.Context, _ adapter.Session, _ content.Item) (adapter.Ref, error) {
		if publishes.Add(1) == 1 {
			close(started)
		}
		<-release
		return adapter.Ref{ID: "slow"}, nil
	}
	adapters := map[string]*adapter.Scripted{}
	ids := make([]string, 6)
	for i := range ids {
		id := fmt.Sprintf("t-%d", i)
		ids[i] = id
		adapters[id] = &adapter.Scripted{ID: id, PublishFn: slowPublish}
	}

	o := NewOrchestrator(Config{MaxConcurrency: 1}, scriptedFactory(adapters), logx.Nop(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var batch *Batch
	var derr error
	go func() {
		batch, derr = o.Dispatch(ctx, testItem(), targetsNamed(ids...))
		close(done)
	}()

	<-started
	cancel()
	close(release)
	<-done

	if !errors.Is(derr, context.Canceled) {
		t.Fatalf("Dispatch() error = %v, want context.Canceled", derr)
	}
	if len(batch.Results) != len(ids) {
		t.Fatalf("Results = %d entries, want %d", len(batch.Results), len(ids))
	}
	// The in-flight attempt finished with its deadline grace; unstarted
	// ones were backfilled as cancelled.
	var cancelled, finished int
	for _, res := range batch.Results {
		switch {
		case res.Succeeded:
			finished++
		case res.ErrKind == KindCancelled:
			cancelled++
		default:
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if finished == 0 {
		t.Fatal("in-flight attempt was not allowed to finish")
	}
	if cancelled == 0 {
		t.Fatal("no cancelled backfills recorded")
	}
}

func TestDispatchAttemptTimeout(t *testing.T) {
	t.Parallel()
	adapters := map[string]*adapter.Scripted{
		"hang": {ID: "hang", PublishFn: func(ctx context.Context, _ adapter.Session, _ content.Item) (adapter.Ref, error) {
			<-ctx.Done()
			return adapter.Ref{}, ctx.Err()
		}},
	}
	o := NewOrchestrator(Config{AttemptTimeout: 30 * time.Millisecond}, scriptedFactory(adapters), logx.Nop(), nil)

	batch, err := o.Dispatch(context.Background(), testItem(), targetsNamed("hang"))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if got := batch.Results["hang"].ErrKind; got != KindTimeout {
		t.Fatalf("ErrKind = %s, want %s", got, KindTimeout)
	}
}

func TestDispatchInputValidation(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(Config{}, scriptedFactory(nil), logx.Nop(), nil)

	if _, err := o.Dispatch(context.Background(), content.Item{}, targetsNamed("x")); err == nil {
		t.Fatal("expected error for invalid item")
	}
	if _, err := o.Dispatch(context.Background(), testItem(), nil); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("error = %v, want ErrNoTargets", err)
	}
}

func TestClassifyStepFailure(t *testing.T) {
	t.Parallel()
	adapters := map[string]*adapter.Scripted{
		"flaky-ui": {ID: "flaky-ui", PublishFn: func(context.Context, adapter.Session, content.Item) (adapter.Ref, error) {
			return adapter.Ref{}, &browserauto.StepError{Step: "submit", Reason: browserauto.ReasonNoLocatorMatched}
		}},
	}
	o := NewOrchestrator(Config{}, scriptedFactory(adapters), logx.Nop(), nil)
	batch, err := o.Dispatch(context.Background(), testItem(), targetsNamed("flaky-ui"))
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if got := batch.Results["flaky-ui"].ErrKind; got != KindStepFailed {
		t.Fatalf("ErrKind = %s, want %s", got, KindStepFailed)
	}
}
