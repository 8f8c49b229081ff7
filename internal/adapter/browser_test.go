package adapter

import (
	"testing"

	"crosspost/internal/browserauto"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

func browserDeps() Deps {
	return Deps{
		Creds:   registry.StaticCredentials{},
		Scripts: browserauto.NewScriptSet(),
		Log:     logx.Nop(),
	}
}

func TestBrowserAdapterFallsBackToGenericScript(t *testing.T) {
	t.Parallel()
	tgt := registry.Target{
		ID:         "wall-test",
		Tier:       registry.TierOpen,
		Capability: registry.CapabilityBrowser,
		PublishURL: "https://wall.example/compose",
	}
	a, err := newBrowserAdapter(tgt, browserDeps(), logx.Nop())
	if err != nil {
		t.Fatalf("newBrowserAdapter() error: %v", err)
	}
	ba, ok := a.(*browserAdapter)
	if !ok {
		t.Fatalf("unexpected adapter type %T", a)
	}
	if got := ba.scriptName(); got != defaultScriptName {
		t.Fatalf("scriptName() = %q, want %q", got, defaultScriptName)
	}
}

func TestBrowserAdapterRejectsUnknownScript(t *testing.T) {
	t.Parallel()
	tgt := registry.Target{
		ID:         "wall-test",
		Tier:       registry.TierOpen,
		Capability: registry.CapabilityBrowser,
		Script:     "no-such-script",
	}
	if _, err := newBrowserAdapter(tgt, browserDeps(), logx.Nop()); err == nil {
		t.Fatal("expected error for unregistered script")
	}
}
