package registry

import (
	"fmt"
	"strings"
)

// Tier classifies a target by credential requirements.
type Tier string

const (
	// TierOpen targets publish without stored credentials.
	TierOpen Tier = "open"
	// TierGated targets require every key in RequiredCredentialKeys.
	TierGated Tier = "gated"
)

// Capability says how a target is driven.
type Capability string

const (
	// CapabilityAPI targets are published to with one REST call.
	CapabilityAPI Capability = "api"
	// CapabilityBrowser targets have no API and are driven through the
	// browser automation scripts.
	CapabilityBrowser Capability = "browser"
)

// Target is one external publishing destination. Catalog entries are static
// configuration: the registry swaps whole immutable snapshots, individual
// Target values are never mutated at runtime.
type Target struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name,omitempty"`
	Tier        Tier       `json:"tier"`
	Capability  Capability `json:"capability"`

	// RequiredCredentialKeys must all resolve in the credential store for a
	// gated target to be selectable.
	RequiredCredentialKeys []string `json:"required_credential_keys,omitempty"`

	// API capability settings.
	PublishURL string `json:"publish_url,omitempty"`
	VerifyURL  string `json:"verify_url,omitempty"`
	// AuthKey names the credential used as a bearer token; empty means
	// unauthenticated calls.
	AuthKey string `json:"auth_key,omitempty"`

	// Browser capability settings.
	// Script names the step sequence registered with the automation driver.
	// Empty falls back to the generic post script.
	Script string `json:"script,omitempty"`

	// RatePerSec overrides the dispatch default outbound rate. 0 inherits.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

func (t Target) validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("target id is required")
	}
	switch t.Tier {
	case TierOpen, TierGated:
	case "":
		return fmt.Errorf("target %q: tier is required", t.ID)
	default:
		return fmt.Errorf("target %q: unknown tier %q", t.ID, t.Tier)
	}
	switch t.Capability {
	case CapabilityAPI:
		if strings.TrimSpace(t.PublishURL) == "" {
			return fmt.Errorf("target %q: publish_url is required for api targets", t.ID)
		}
	case CapabilityBrowser:
		// Script is optional: targets without one run the generic script,
		// which needs a publish_url to navigate to.
		if strings.TrimSpace(t.Script) == "" && strings.TrimSpace(t.PublishURL) == "" {
			return fmt.Errorf("target %q: browser targets need a script or a publish_url", t.ID)
		}
	case "":
		return fmt.Errorf("target %q: capability is required", t.ID)
	default:
		return fmt.Errorf("target %q: unknown capability %q", t.ID, t.Capability)
	}
	if t.Tier == TierGated && len(t.RequiredCredentialKeys) == 0 {
		return fmt.Errorf("target %q: gated targets must list required_credential_keys", t.ID)
	}
	return nil
}

// CanVerify reports whether the target supports an independent live check.
func (t Target) CanVerify() bool {
	switch t.Capability {
	case CapabilityAPI:
		return strings.TrimSpace(t.VerifyURL) != ""
	case CapabilityBrowser:
		// Browser scripts always carry a confirm step sequence for verify.
		return true
	}
	return false
}
