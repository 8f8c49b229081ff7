package registry

import (
	"testing"

	"crosspost/pkg/logx"
)

func gateFixture(t *testing.T, creds CredentialStore) *Gate {
	t.Helper()
	catalog := `
targets:
  - id: open-forum
    tier: open
    capability: api
    publish_url: https://open.example/api
  - id: gated-full
    tier: gated
    capability: api
    required_credential_keys: [token_a, token_b]
    publish_url: https://gated.example/api
  - id: gated-partial
    tier: gated
    capability: api
    required_credential_keys: [token_a, token_missing]
    publish_url: https://partial.example/api
`
	reg := New(writeCatalog(t, catalog), logx.Nop(), nil)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return NewGate(reg, creds)
}

func TestSelectTargetsOpenTier(t *testing.T) {
	t.Parallel()
	gate := gateFixture(t, StaticCredentials{})
	got := gate.SelectTargets(TierOpen)
	if len(got) != 1 || got[0].ID != "open-forum" {
		t.Fatalf("open tier = %v", ids(got))
	}
}

func TestSelectTargetsGatedFailsClosed(t *testing.T) {
	t.Parallel()
	creds := StaticCredentials{"token_a": "aaa", "token_b": "bbb"}
	gate := gateFixture(t, creds)

	got := gate.SelectTargets(TierGated)
	// Open targets ride along; the partially-credentialed gated target
	// must be excluded, never half-attempted.
	want := map[string]bool{"open-forum": true, "gated-full": true}
	if len(got) != len(want) {
		t.Fatalf("gated tier = %v", ids(got))
	}
	for _, tgt := range got {
		if !want[tgt.ID] {
			t.Fatalf("unexpected target %q in %v", tgt.ID, ids(got))
		}
	}
}

func TestSelectTargetsNoCredentials(t *testing.T) {
	t.Parallel()
	gate := gateFixture(t, StaticCredentials{})
	got := gate.SelectTargets(TierGated)
	if len(got) != 1 || got[0].ID != "open-forum" {
		t.Fatalf("gated tier without creds = %v", ids(got))
	}
}

func ids(targets []Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.ID)
	}
	return out
}
