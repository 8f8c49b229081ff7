package registry

// Gate filters the catalog down to targets that are actually attemptable
// with the credentials on hand.
//
// It is a pure read over static state: no caching, no side effects, safe to
// call concurrently with dispatch runs.
type Gate struct {
	reg   *Registry
	creds CredentialStore
}

func NewGate(reg *Registry, creds CredentialStore) *Gate {
	return &Gate{reg: reg, creds: creds}
}

// SelectTargets returns the targets eligible for the requested tier.
//
// TierOpen selects open targets only. TierGated selects open targets plus
// every gated target whose required keys all resolve. Gating fails closed:
// a single missing key excludes the target rather than attempting it with
// partial credentials.
func (g *Gate) SelectTargets(tier Tier) []Target {
	all := g.reg.Targets()
	out := make([]Target, 0, len(all))
	for _, t := range all {
		switch t.Tier {
		case TierOpen:
			out = append(out, t)
		case TierGated:
			if tier != TierGated {
				continue
			}
			if g.hasAllKeys(t) {
				out = append(out, t)
			}
		}
	}
	return out
}

func (g *Gate) hasAllKeys(t Target) bool {
	if g.creds == nil {
		return false
	}
	for _, k := range t.RequiredCredentialKeys {
		if _, ok := g.creds.Lookup(k); !ok {
			return false
		}
	}
	return true
}
