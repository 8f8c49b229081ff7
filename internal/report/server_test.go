package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crosspost/internal/dispatch"
	"crosspost/internal/runstore"
	"crosspost/internal/verify"
	"crosspost/pkg/logx"
)

type memSource struct {
	recs   map[string]runstore.Record
	latest string
}

func (m *memSource) GetRun(_ context.Context, runID string) (runstore.Record, error) {
	rec, ok := m.recs[runID]
	if !ok {
		return runstore.Record{}, runstore.ErrNotFound
	}
	return rec, nil
}

func (m *memSource) LatestRunID(context.Context) (string, error) {
	if m.latest == "" {
		return "", runstore.ErrNotFound
	}
	return m.latest, nil
}

func testSource() *memSource {
	batch := &dispatch.Batch{
		RunID: "run-1",
		Results: map[string]dispatch.Result{
			"a": {TargetID: "a", Succeeded: true},
			"b": {TargetID: "b", ErrKind: "timeout"},
		},
	}
	checks := &verify.CheckSet{RunID: "run-1", Checks: map[string]verify.Check{
		"a": {TargetID: "a", ObservedLive: true},
	}}
	return &memSource{
		recs:   map[string]runstore.Record{"run-1": {Batch: batch, Checks: checks}},
		latest: "run-1",
	}
}

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	return New(Config{}, testSource(), logx.Nop()).http.Handler
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if out != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rr.Code
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	if code := get(t, testHandler(t), "/healthz", nil); code != http.StatusOK {
		t.Fatalf("/healthz = %d", code)
	}
}

func TestRunEndpoints(t *testing.T) {
	t.Parallel()
	h := testHandler(t)

	var rec runstore.Record
	if code := get(t, h, "/runs/run-1", &rec); code != http.StatusOK {
		t.Fatalf("/runs/run-1 = %d", code)
	}
	if rec.Batch.RunID != "run-1" {
		t.Fatalf("record = %+v", rec)
	}
	if code := get(t, h, "/runs/latest", &rec); code != http.StatusOK {
		t.Fatalf("/runs/latest = %d", code)
	}

	var statuses map[string]verify.Status
	if code := get(t, h, "/runs/run-1/status", &statuses); code != http.StatusOK {
		t.Fatalf("/runs/run-1/status = %d", code)
	}
	if statuses["a"] != verify.StatusConfirmed || statuses["b"] != verify.StatusNotAttempted {
		t.Fatalf("statuses = %v", statuses)
	}

	var st struct {
		Attempted      int     `json:"attempted"`
		SuccessRatePct float64 `json:"success_rate_pct"`
	}
	if code := get(t, h, "/runs/run-1/stats", &st); code != http.StatusOK {
		t.Fatalf("/runs/run-1/stats = %d", code)
	}
	if st.Attempted != 2 || st.SuccessRatePct != 50 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()
	if code := get(t, testHandler(t), "/runs/missing", nil); code != http.StatusNotFound {
		t.Fatalf("/runs/missing = %d", code)
	}
}
