package adapter

import "fmt"

// PublishErrKind labels why a publish call failed.
type PublishErrKind string

const (
	PublishRejected    PublishErrKind = "rejected_by_platform"
	PublishRateLimited PublishErrKind = "rate_limited"
	PublishTimeout     PublishErrKind = "timeout"
	PublishFault       PublishErrKind = "adapter_fault"
)

// VerifyErrKind labels why a verification call failed.
type VerifyErrKind string

const (
	VerifyNotSupported VerifyErrKind = "not_supported"
	VerifyInconclusive VerifyErrKind = "inconclusive"
	VerifyTimeout      VerifyErrKind = "timeout"
)

// AuthError means credentials were invalid, expired, or missing at call time.
type AuthError struct {
	TargetID string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed for %s: %s", e.TargetID, e.Reason)
}

// PublishError carries the platform's rejection precisely; adapters report
// it once and never retry (retry policy lives above the adapter).
type PublishError struct {
	Kind    PublishErrKind
	Status  int // HTTP status for API targets, 0 otherwise
	Message string
}

func (e *PublishError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publish %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("publish %s: %s", e.Kind, e.Message)
}

// VerifyError means the live-state check itself could not be performed; it
// is distinct from an observed "not live".
type VerifyError struct {
	Kind    VerifyErrKind
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify %s: %s", e.Kind, e.Message)
}
