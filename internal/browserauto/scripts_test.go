package browserauto

import "testing"

func TestScriptSetBuiltins(t *testing.T) {
	t.Parallel()
	s := NewScriptSet()
	if _, ok := s.Get("generic-post"); !ok {
		t.Fatal("generic-post missing")
	}
	if _, ok := s.VerifyScript("generic-post"); !ok {
		t.Fatal("generic-post verify companion missing")
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	s := NewScriptSet()
	tests := []struct {
		name   string
		script Script
	}{
		{"no name", Script{Steps: []Step{{Name: "s", Kind: StepNavigate, URL: "https://x"}}}},
		{"no steps", Script{Name: "x"}},
		{"navigate without url", Script{Name: "x", Steps: []Step{{Name: "s", Kind: StepNavigate}}}},
		{"act without locators", Script{Name: "x", Steps: []Step{{Name: "s", Kind: StepAct}}}},
		{"unknown kind", Script{Name: "x", Steps: []Step{{Name: "s", Kind: "teleport"}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Register(tt.script); err == nil {
				t.Fatalf("Register accepted %+v", tt.script)
			}
		})
	}

	ok := Script{Name: "custom", Steps: []Step{
		{Name: "open", Kind: StepNavigate, URL: "https://x.example"},
		{Name: "done", Kind: StepConfirm, Locators: []Locator{{Selector: "#ok"}}},
	}}
	if err := s.Register(ok); err != nil {
		t.Fatalf("Register(valid) error: %v", err)
	}
	if _, found := s.Get("custom"); !found {
		t.Fatal("registered script not retrievable")
	}
}
