package browserauto

import (
	"context"
	"errors"
	"testing"

	"crosspost/pkg/logx"
)

// fakeResolver is an in-memory page: present selectors resolve, everything
// else misses. Actions are recorded in order.
type fakeResolver struct {
	present map[string]bool
	text    map[string]string
	navErr  error
	actions []string
	url     string
}

func (f *fakeResolver) Navigate(_ context.Context, url string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.url = url
	f.actions = append(f.actions, "nav:"+url)
	return nil
}

func (f *fakeResolver) Probe(_ context.Context, sel string) (bool, error) {
	return f.present[sel], nil
}

func (f *fakeResolver) Click(_ context.Context, sel string) error {
	f.actions = append(f.actions, "click:"+sel)
	return nil
}

func (f *fakeResolver) Fill(_ context.Context, sel, text string) error {
	f.actions = append(f.actions, "fill:"+sel+"="+text)
	return nil
}

func (f *fakeResolver) Text(_ context.Context, sel string) (string, error) {
	if v, ok := f.text[sel]; ok {
		return v, nil
	}
	return "", errors.New("no text")
}

func (f *fakeResolver) URL() string { return f.url }

func postScript() Script {
	return Script{
		Name: "test-post",
		Steps: []Step{
			{Name: "open", Kind: StepNavigate, URL: "${publish_url}"},
			{Name: "compose", Kind: StepAct, Input: "${title}", Locators: []Locator{
				{Selector: "#composer-old"},
				{Selector: "#composer-new"},
			}},
			{Name: "submit", Kind: StepAct, Locators: []Locator{
				{Selector: "button.submit"},
			}},
			{Name: "permalink", Kind: StepConfirm, Locators: []Locator{
				{Selector: "a.permalink"},
			}},
		},
	}
}

func TestDriverRunsFullScript(t *testing.T) {
	t.Parallel()
	res := &fakeResolver{
		present: map[string]bool{
			"#composer-new": true,
			"button.submit": true,
			"a.permalink":   true,
		},
		text: map[string]string{"a.permalink": " https://site.example/p/42 "},
	}
	d := NewDriver(0, 0, logx.Nop())
	vars := map[string]string{"publish_url": "https://site.example/compose", "title": "hello"}

	out, err := d.Run(context.Background(), res, postScript(), vars)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.State != StateConfirmed {
		t.Fatalf("State = %s, want %s", out.State, StateConfirmed)
	}
	if out.Confirmation != "https://site.example/p/42" {
		t.Fatalf("Confirmation = %q", out.Confirmation)
	}

	// The fallback chain skipped the dead first selector.
	want := []string{
		"nav:https://site.example/compose",
		"fill:#composer-new=hello",
		"click:button.submit",
	}
	if len(res.actions) != len(want) {
		t.Fatalf("actions = %v", res.actions)
	}
	for i := range want {
		if res.actions[i] != want[i] {
			t.Fatalf("actions[%d] = %q, want %q", i, res.actions[i], want[i])
		}
	}
}

func TestDriverNoLocatorMatched(t *testing.T) {
	t.Parallel()
	res := &fakeResolver{present: map[string]bool{}}
	d := NewDriver(0, 0, logx.Nop())

	out, err := d.Run(context.Background(), res, postScript(), map[string]string{"publish_url": "https://x.example"})
	if out.State != StateFailed {
		t.Fatalf("State = %s, want %s", out.State, StateFailed)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error = %v, want *StepError", err)
	}
	if stepErr.Step != "compose" || stepErr.Reason != ReasonNoLocatorMatched {
		t.Fatalf("StepError = %+v", stepErr)
	}
}

func TestDriverFailedConfirmFailsRun(t *testing.T) {
	t.Parallel()
	res := &fakeResolver{
		present: map[string]bool{
			"#composer-new": true,
			"button.submit": true,
			// a.permalink never appears
		},
	}
	d := NewDriver(0, 0, logx.Nop())
	out, err := d.Run(context.Background(), res, postScript(), map[string]string{"publish_url": "https://x.example"})
	if err == nil {
		t.Fatal("expected confirm failure")
	}
	if out.State != StateFailed {
		t.Fatalf("State = %s, want %s", out.State, StateFailed)
	}
}

func TestDriverEmptyScript(t *testing.T) {
	t.Parallel()
	d := NewDriver(0, 0, logx.Nop())
	_, err := d.Run(context.Background(), &fakeResolver{}, Script{Name: "empty"}, nil)
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Reason != ReasonBadScript {
		t.Fatalf("error = %v, want bad_script StepError", err)
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()
	vars := map[string]string{"a": "1", "b": "2"}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"${a}", "1"},
		{"x${a}y${b}z", "x1y2z"},
		{"${missing}", ""},
		{"${unterminated", "${unterminated"},
	}
	for _, tt := range tests {
		if got := Expand(tt.in, vars); got != tt.want {
			t.Fatalf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
