package browserauto

import (
	"fmt"
	"sort"
	"sync"
)

// VerifySuffix names the companion script a publish script may carry.
// A target whose publish script is "forum-post" is verified with
// "forum-post.verify" when that script exists.
const VerifySuffix = ".verify"

// ScriptSet is a registry of named scripts. The zero value is unusable;
// construct with NewScriptSet, which seeds the built-in generic scripts.
type ScriptSet struct {
	mu      sync.RWMutex
	scripts map[string]Script
}

func NewScriptSet() *ScriptSet {
	s := &ScriptSet{scripts: make(map[string]Script)}
	for _, sc := range builtinScripts() {
		s.scripts[sc.Name] = sc
	}
	return s
}

// Register adds or replaces a script. Steps are validated up front so a
// broken catalog surfaces at load time rather than mid-run.
func (s *ScriptSet) Register(sc Script) error {
	if sc.Name == "" {
		return fmt.Errorf("script has no name")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("script %q has no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		switch st.Kind {
		case StepNavigate:
			if st.URL == "" {
				return fmt.Errorf("script %q step %d (%s): navigate without url", sc.Name, i, st.Name)
			}
		case StepAuthenticate, StepLocate, StepAct, StepConfirm:
			if len(st.Locators) == 0 {
				return fmt.Errorf("script %q step %d (%s): no locators", sc.Name, i, st.Name)
			}
		default:
			return fmt.Errorf("script %q step %d (%s): unknown kind %q", sc.Name, i, st.Name, st.Kind)
		}
	}
	s.mu.Lock()
	s.scripts[sc.Name] = sc
	s.mu.Unlock()
	return nil
}

func (s *ScriptSet) Get(name string) (Script, bool) {
	s.mu.RLock()
	sc, ok := s.scripts[name]
	s.mu.RUnlock()
	return sc, ok
}

// VerifyScript returns the verify companion of the named publish script.
func (s *ScriptSet) VerifyScript(name string) (Script, bool) {
	return s.Get(name + VerifySuffix)
}

func (s *ScriptSet) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.scripts))
	for n := range s.scripts {
		names = append(names, n)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// builtinScripts covers the common "log in, paste, submit, read permalink"
// shape most posting targets share. Targets with unusual flows register
// their own scripts on top.
func builtinScripts() []Script {
	return []Script{
		{
			Name: "generic-post",
			Steps: []Step{
				{Name: "open-composer", Kind: StepNavigate, URL: "${publish_url}"},
				{Name: "sign-in", Kind: StepAuthenticate, Input: "${cred:session}", Locators: []Locator{
					{Selector: `input[name="session"]`, Desc: "session field"},
					{Selector: `#session-token`, Desc: "legacy session field"},
				}},
				{Name: "find-composer", Kind: StepLocate, Locators: []Locator{
					{Selector: `textarea[name="body"]`, Desc: "composer textarea"},
					{Selector: `[contenteditable="true"]`, Desc: "rich composer"},
				}},
				{Name: "write-body", Kind: StepAct, Input: "${title}\n\n${description}\n${hashtags}", Locators: []Locator{
					{Selector: `textarea[name="body"]`},
					{Selector: `[contenteditable="true"]`},
				}},
				{Name: "attach-source", Kind: StepAct, Input: "${source_url}", Locators: []Locator{
					{Selector: `input[name="link"]`, Desc: "link field"},
					{Selector: `input[type="url"]`},
				}},
				{Name: "submit", Kind: StepAct, Locators: []Locator{
					{Selector: `button[type="submit"]`},
					{Selector: `button.post-submit`},
				}},
				{Name: "read-permalink", Kind: StepConfirm, Locators: []Locator{
					{Selector: `a.permalink`, Desc: "permalink anchor"},
					{Selector: `[data-post-url]`},
				}},
			},
		},
		{
			Name: "generic-post" + VerifySuffix,
			Steps: []Step{
				{Name: "open-profile", Kind: StepNavigate, URL: "${verify_url}"},
				{Name: "find-post", Kind: StepConfirm, Locators: []Locator{
					{Selector: `a.permalink`},
					{Selector: `[data-post-url]`},
				}},
			},
		},
	}
}
