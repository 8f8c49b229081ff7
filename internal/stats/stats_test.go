package stats

import (
	"fmt"
	"testing"

	"crosspost/internal/dispatch"
	"crosspost/internal/verify"
)

func TestSummarize(t *testing.T) {
	t.Parallel()
	results := make(map[string]dispatch.Result, 10)
	verdicts := make(map[string]verify.Status, 10)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t-%d", i)
		results[id] = dispatch.Result{TargetID: id, Succeeded: i < 7}
	}
	verdicts["t-0"] = verify.StatusConfirmed
	verdicts["t-1"] = verify.StatusConfirmed
	verdicts["t-2"] = verify.StatusDisputed
	verdicts["t-7"] = verify.StatusUnconfirmed
	// t-3..t-6, t-8, t-9 have no verdict.

	st := Summarize(&dispatch.Batch{RunID: "r", Results: results}, verdicts)
	if st.Attempted != 10 || st.Succeeded != 7 || st.Failed != 3 {
		t.Fatalf("tallies = %+v", st)
	}
	if st.SuccessRatePct != 70 {
		t.Fatalf("SuccessRatePct = %v, want 70", st.SuccessRatePct)
	}
	if st.Confirmed != 2 || st.Disputed != 1 || st.Unconfirmed != 1 || st.NotAttempted != 6 {
		t.Fatalf("verdict tallies = %+v", st)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()
	st := Summarize(nil, nil)
	if st.Attempted != 0 || st.SuccessRatePct != 0 {
		t.Fatalf("empty stats = %+v", st)
	}
	st = Summarize(&dispatch.Batch{Results: map[string]dispatch.Result{}}, nil)
	if st.SuccessRatePct != 0 {
		t.Fatalf("zero attempts rate = %v", st.SuccessRatePct)
	}
}
