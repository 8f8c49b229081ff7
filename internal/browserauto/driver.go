package browserauto

import (
	"context"
	"strings"
	"time"

	"crosspost/pkg/logx"
)

// Resolver abstracts the live page. The rod backend provides the real one;
// tests substitute a fake to exercise the machine without a browser.
type Resolver interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// Probe reports whether the selector resolves to an element right now.
	Probe(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	// Text reads the visible text of the element behind the selector.
	Text(ctx context.Context, selector string) (string, error)
	// URL returns the current page URL, or "" when unknown.
	URL() string
}

// Driver runs scripts against a Resolver, advancing the interaction state
// machine one step at a time.
type Driver struct {
	stepTimeout time.Duration
	probe       time.Duration
	log         logx.Logger
}

const (
	defaultStepTimeout  = 15 * time.Second
	defaultProbeTimeout = 2 * time.Second
)

func NewDriver(stepTimeout, probeTimeout time.Duration, log logx.Logger) *Driver {
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Driver{stepTimeout: stepTimeout, probe: probeTimeout, log: log}
}

// Run executes the script top to bottom. Vars are substituted into step URLs
// and inputs via ${name} placeholders. The first failing step aborts the run
// with a *StepError and the machine lands in StateFailed.
func (d *Driver) Run(ctx context.Context, res Resolver, script Script, vars map[string]string) (Outcome, error) {
	out := Outcome{State: StateIdle}
	if len(script.Steps) == 0 {
		out.State = StateFailed
		return out, &StepError{Step: script.Name, Reason: ReasonBadScript, Detail: "script has no steps"}
	}
	for _, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			out.State = StateFailed
			return out, err
		}
		next, capture, err := d.runStep(ctx, res, step, vars)
		if err != nil {
			out.State = StateFailed
			out.FinalURL = res.URL()
			d.log.Warn("browser step failed",
				logx.String("script", script.Name),
				logx.String("step", step.Name),
				logx.Err(err))
			return out, err
		}
		out.State = next
		if capture != "" {
			out.Confirmation = capture
		}
		d.log.Debug("browser step done",
			logx.String("script", script.Name),
			logx.String("step", step.Name),
			logx.String("state", string(next)))
	}
	out.FinalURL = res.URL()
	return out, nil
}

func (d *Driver) runStep(ctx context.Context, res Resolver, step Step, vars map[string]string) (State, string, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = d.stepTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch step.Kind {
	case StepNavigate:
		url := Expand(step.URL, vars)
		if url == "" {
			return StateFailed, "", &StepError{Step: step.Name, Reason: ReasonBadScript, Detail: "navigate step has no url"}
		}
		if err := res.Navigate(sctx, url); err != nil {
			return StateFailed, "", &StepError{Step: step.Name, Reason: ReasonNavigateFailed, Detail: err.Error()}
		}
		return StateNavigated, "", nil

	case StepAuthenticate, StepLocate, StepAct, StepConfirm:
		sel, err := d.resolve(sctx, res, step)
		if err != nil {
			return StateFailed, "", err
		}
		switch step.Kind {
		case StepLocate:
			return StateLocated, "", nil
		case StepConfirm:
			text, err := res.Text(sctx, sel)
			if err != nil {
				return StateFailed, "", &StepError{Step: step.Name, Reason: ReasonReadFailed, Detail: err.Error()}
			}
			return StateConfirmed, strings.TrimSpace(text), nil
		default: // authenticate, act
			if err := d.perform(sctx, res, sel, step, vars); err != nil {
				return StateFailed, "", err
			}
			if step.Kind == StepAuthenticate {
				return StateAuthenticated, "", nil
			}
			return StateActed, "", nil
		}

	default:
		return StateFailed, "", &StepError{Step: step.Name, Reason: ReasonBadScript, Detail: "unknown step kind " + string(step.Kind)}
	}
}

// resolve walks the locator chain in order and returns the first selector
// that probes successfully. Each candidate gets its own probe budget so one
// dead selector cannot eat the whole step.
func (d *Driver) resolve(ctx context.Context, res Resolver, step Step) (string, error) {
	if len(step.Locators) == 0 {
		return "", &StepError{Step: step.Name, Reason: ReasonBadScript, Detail: "step has no locators"}
	}
	for _, loc := range step.Locators {
		if err := ctx.Err(); err != nil {
			break
		}
		pctx, cancel := context.WithTimeout(ctx, d.probe)
		ok, err := res.Probe(pctx, loc.Selector)
		cancel()
		if err == nil && ok {
			return loc.Selector, nil
		}
	}
	return "", &StepError{Step: step.Name, Reason: ReasonNoLocatorMatched}
}

func (d *Driver) perform(ctx context.Context, res Resolver, sel string, step Step, vars map[string]string) error {
	input := Expand(step.Input, vars)
	var err error
	if input != "" {
		err = res.Fill(ctx, sel, input)
	} else {
		err = res.Click(ctx, sel)
	}
	if err != nil {
		return &StepError{Step: step.Name, Reason: ReasonActFailed, Detail: err.Error()}
	}
	return nil
}

// Expand substitutes ${name} placeholders from vars. Unknown names expand
// to the empty string.
func Expand(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.Index(s[i:], "}")
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(vars[s[i+2:i+j]])
		s = s[i+j+1:]
	}
}
