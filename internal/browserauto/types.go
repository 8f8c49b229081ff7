package browserauto

import (
	"fmt"
	"time"
)

// State tracks progress through one scripted interaction.
type State string

const (
	StateIdle          State = "idle"
	StateNavigated     State = "navigated"
	StateAuthenticated State = "authenticated"
	StateLocated       State = "located"
	StateActed         State = "acted"
	StateConfirmed     State = "confirmed"
	StateFailed        State = "failed"
)

// StepKind is the action a step performs. Every interaction a script can
// express (publish a post, follow, comment, share, verify presence) is an
// ordered sequence of these same five kinds.
type StepKind string

const (
	StepNavigate     StepKind = "navigate"
	StepAuthenticate StepKind = "authenticate"
	StepLocate       StepKind = "locate"
	StepAct          StepKind = "act"
	StepConfirm      StepKind = "confirm"
)

// Locator is one candidate selector for a UI control. Scripts list several
// per step because platform markup drifts; the first one that resolves wins.
type Locator struct {
	Selector string `json:"selector"`
	// Desc is for logs only.
	Desc string `json:"desc,omitempty"`
}

// Step is one transition of the machine.
//
// Input is expanded against the run's vars; an empty Input means click, a
// non-empty one means fill. Timeout bounds the whole step including the
// locator fallback walk; zero inherits the driver default.
type Step struct {
	Name     string        `json:"name"`
	Kind     StepKind      `json:"kind"`
	URL      string        `json:"url,omitempty"` // navigate only
	Locators []Locator     `json:"locators,omitempty"`
	Input    string        `json:"input,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// Script is a named, ordered step sequence.
type Script struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Failure reasons carried by StepError.
const (
	ReasonNoLocatorMatched = "no_locator_matched"
	ReasonNavigateFailed   = "navigate_failed"
	ReasonActFailed        = "act_failed"
	ReasonReadFailed       = "read_failed"
	ReasonBadScript        = "bad_script"
)

// StepError reports which step failed and why. Any step failure aborts the
// run: a script that fails at confirm is not treated as succeeded, because
// no partial side effect may be assumed.
type StepError struct {
	Step   string
	Reason string
	Detail string
}

func (e *StepError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("step %q failed (%s): %s", e.Step, e.Reason, e.Detail)
	}
	return fmt.Sprintf("step %q failed (%s)", e.Step, e.Reason)
}

// Outcome is the terminal result of a script run.
type Outcome struct {
	State State
	// Confirmation holds the confirm step's captured text (often a
	// permalink or a visible post id).
	Confirmation string
	// FinalURL is the page URL after the last step, when the resolver
	// exposes one.
	FinalURL string
}
