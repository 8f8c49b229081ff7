package registry

import (
	"os"
	"path/filepath"
	"testing"

	"crosspost/pkg/logx"
)

const catalogYAML = `
targets:
  - id: forum-a
    tier: open
    capability: api
    publish_url: https://forum-a.example/api/posts
    verify_url: https://forum-a.example/api/posts
  - id: wall-b
    tier: gated
    capability: browser
    required_credential_keys: [wall_b_session]
    publish_url: https://wall-b.example/compose
`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	reg := New(writeCatalog(t, catalogYAML), logx.Nop(), nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := len(reg.Targets()); got != 2 {
		t.Fatalf("Targets() = %d entries, want 2", got)
	}
	tgt, ok := reg.Get("wall-b")
	if !ok {
		t.Fatal("Get(wall-b) not found")
	}
	if tgt.Tier != TierGated || tgt.Capability != CapabilityBrowser {
		t.Fatalf("unexpected target: %+v", tgt)
	}
}

func TestBrowserTargetScriptOptional(t *testing.T) {
	t.Parallel()
	// wall-b carries no script and still loads; the generic script takes
	// over as long as there is a publish_url to navigate to.
	reg := New(writeCatalog(t, catalogYAML), logx.Nop(), nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	tgt, ok := reg.Get("wall-b")
	if !ok {
		t.Fatal("Get(wall-b) not found")
	}
	if tgt.Script != "" {
		t.Fatalf("Script = %q, want empty", tgt.Script)
	}

	bare := `
targets:
  - id: wall-c
    tier: open
    capability: browser
`
	reg = New(writeCatalog(t, bare), logx.Nop(), nil)
	if err := reg.Load(); err == nil {
		t.Fatal("expected error for browser target without script or publish_url")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()
	dup := `
targets:
  - id: forum-a
    tier: open
    capability: api
    publish_url: https://forum-a.example/api/posts
  - id: forum-a
    tier: open
    capability: api
    publish_url: https://forum-a.example/api/posts
`
	reg := New(writeCatalog(t, dup), logx.Nop(), nil)
	if err := reg.Load(); err == nil {
		t.Fatal("expected error for duplicate target ids")
	}
}

func TestReloadKeepsOldSnapshotOnError(t *testing.T) {
	t.Parallel()
	path := writeCatalog(t, catalogYAML)
	reg := New(path, logx.Nop(), nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := os.WriteFile(path, []byte("targets: []\n"), 0o600); err != nil {
		t.Fatalf("rewrite catalog: %v", err)
	}
	if err := reg.Reload(); err == nil {
		t.Fatal("expected reload error for empty catalog")
	}
	if got := len(reg.Targets()); got != 2 {
		t.Fatalf("old snapshot lost: %d targets", got)
	}
}

func TestCanVerify(t *testing.T) {
	t.Parallel()
	api := Target{Capability: CapabilityAPI}
	if api.CanVerify() {
		t.Fatal("api target without verify_url should not verify")
	}
	api.VerifyURL = "https://x.example/check"
	if !api.CanVerify() {
		t.Fatal("api target with verify_url should verify")
	}
	if !(Target{Capability: CapabilityBrowser}).CanVerify() {
		t.Fatal("browser target should always verify")
	}
}
