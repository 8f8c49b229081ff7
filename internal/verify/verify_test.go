package verify

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"crosspost/internal/adapter"
	"crosspost/internal/dispatch"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

func batchWith(results map[string]dispatch.Result) *dispatch.Batch {
	return &dispatch.Batch{RunID: "run-1", Results: results}
}

func TestMergeTable(t *testing.T) {
	t.Parallel()
	batch := batchWith(map[string]dispatch.Result{
		"ok-live":     {TargetID: "ok-live", Succeeded: true},
		"ok-missing":  {TargetID: "ok-missing", Succeeded: true},
		"fail-live":   {TargetID: "fail-live"},
		"fail-gone":   {TargetID: "fail-gone"},
		"not-checked": {TargetID: "not-checked", Succeeded: true},
	})
	checks := CheckSet{RunID: "run-1", Checks: map[string]Check{
		"ok-live":    {TargetID: "ok-live", ObservedLive: true},
		"ok-missing": {TargetID: "ok-missing", ObservedLive: false},
		"fail-live":  {TargetID: "fail-live", ObservedLive: true},
		"fail-gone":  {TargetID: "fail-gone", ObservedLive: false},
	}}

	got := Merge(batch, checks)
	want := map[string]Status{
		"ok-live":     StatusConfirmed,
		"ok-missing":  StatusDisputed,
		"fail-live":   StatusDisputed,
		"fail-gone":   StatusUnconfirmed,
		"not-checked": StatusNotAttempted,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge() = %v, want %v", got, want)
	}
}

func TestMergeIdempotent(t *testing.T) {
	t.Parallel()
	batch := batchWith(map[string]dispatch.Result{
		"a": {TargetID: "a", Succeeded: true},
		"b": {TargetID: "b"},
	})
	checks := CheckSet{RunID: "run-1", Checks: map[string]Check{
		"a": {TargetID: "a", ObservedLive: true},
	}}

	first := Merge(batch, checks)
	second := Merge(batch, checks)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Merge not idempotent: %v vs %v", first, second)
	}
	if len(checks.Checks) != 1 || len(batch.Results) != 2 {
		t.Fatal("Merge mutated its inputs")
	}
}

func factoryFor(byID map[string]*adapter.Scripted) func(registry.Target) (adapter.Adapter, error) {
	return func(t registry.Target) (adapter.Adapter, error) {
		if ad, ok := byID[t.ID]; ok {
			return ad, nil
		}
		return nil, errors.New("unknown target " + t.ID)
	}
}

func TestReconcilerRun(t *testing.T) {
	t.Parallel()
	var failRefSeen adapter.Ref
	adapters := map[string]*adapter.Scripted{
		"live": {ID: "live", Verifiable: true, VerifyFn: func(_ context.Context, ref adapter.Ref) (bool, error) {
			return true, nil
		}},
		"errcheck": {ID: "errcheck", Verifiable: true, VerifyFn: func(context.Context, adapter.Ref) (bool, error) {
			return false, &adapter.VerifyError{Kind: adapter.VerifyInconclusive, Message: "flaky"}
		}},
		"nocap": {ID: "nocap", Verifiable: false},
		"failed-pub": {ID: "failed-pub", Verifiable: true, VerifyFn: func(_ context.Context, ref adapter.Ref) (bool, error) {
			failRefSeen = ref
			return true, nil
		}},
	}
	batch := batchWith(map[string]dispatch.Result{
		"live":       {TargetID: "live", Succeeded: true, Ref: adapter.Ref{ID: "p1"}},
		"errcheck":   {TargetID: "errcheck", Succeeded: true, Ref: adapter.Ref{ID: "p2"}},
		"nocap":      {TargetID: "nocap", Succeeded: true},
		"failed-pub": {TargetID: "failed-pub", Ref: adapter.Ref{ID: "stale"}},
	})
	targets := []registry.Target{
		{ID: "live"}, {ID: "errcheck"}, {ID: "nocap"}, {ID: "failed-pub"},
	}

	r := NewReconciler(Config{}, factoryFor(adapters), logx.Nop(), nil)
	set, err := r.Run(context.Background(), batch, targets)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if _, ok := set.Checks["live"]; !ok {
		t.Fatal("live target has no check")
	}
	// Errored and unsupported checks leave no entry, so Merge lands them
	// on not_attempted.
	if _, ok := set.Checks["errcheck"]; ok {
		t.Fatal("errored check recorded an observation")
	}
	if _, ok := set.Checks["nocap"]; ok {
		t.Fatal("unverifiable target recorded an observation")
	}
	// Failed publishes are checked with a zero ref (target-level probe).
	if !failRefSeen.IsZero() {
		t.Fatalf("failed publish verified with stale ref %+v", failRefSeen)
	}
	if got := Merge(batch, set)["failed-pub"]; got != StatusDisputed {
		t.Fatalf("failed-but-live = %s, want %s", got, StatusDisputed)
	}
}

func TestReconcilerDelayHonoursContext(t *testing.T) {
	t.Parallel()
	r := NewReconciler(Config{Delay: time.Hour}, factoryFor(nil), logx.Nop(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, batchWith(nil), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("delay wait ignored the context")
	}
}
