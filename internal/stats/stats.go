// Package stats derives summary figures from a completed run.
package stats

import (
	"crosspost/internal/dispatch"
	"crosspost/internal/verify"
)

// Stats summarizes one run: publish-time tallies plus reconciled verdicts.
type Stats struct {
	Attempted      int     `json:"attempted"`
	Succeeded      int     `json:"succeeded"`
	Failed         int     `json:"failed"`
	SuccessRatePct float64 `json:"success_rate_pct"`

	Confirmed    int `json:"confirmed"`
	Disputed     int `json:"disputed"`
	Unconfirmed  int `json:"unconfirmed"`
	NotAttempted int `json:"not_attempted"`
}

// Summarize is pure: the same batch and verdicts always yield the same
// figures. A nil reconciled map counts every target as not attempted.
func Summarize(batch *dispatch.Batch, reconciled map[string]verify.Status) Stats {
	st := Stats{}
	if batch == nil {
		return st
	}
	for id, res := range batch.Results {
		st.Attempted++
		if res.Succeeded {
			st.Succeeded++
		} else {
			st.Failed++
		}
		switch reconciled[id] {
		case verify.StatusConfirmed:
			st.Confirmed++
		case verify.StatusDisputed:
			st.Disputed++
		case verify.StatusUnconfirmed:
			st.Unconfirmed++
		default:
			st.NotAttempted++
		}
	}
	if st.Attempted > 0 {
		st.SuccessRatePct = float64(st.Succeeded) * 100 / float64(st.Attempted)
	}
	return st
}
