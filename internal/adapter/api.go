package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"crosspost/internal/content"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

// apiAdapter publishes with one outbound HTTP request per call.
//
// Success is a 2xx with a parseable reference id; anything else becomes a
// typed error, never a crash. The http.Client carries no timeout of its
// own: the per-attempt deadline arrives via ctx.
type apiAdapter struct {
	target registry.Target
	creds  registry.CredentialStore
	http   *http.Client
	log    logx.Logger
}

func newAPIAdapter(t registry.Target, creds registry.CredentialStore, log logx.Logger) *apiAdapter {
	return &apiAdapter{
		target: t,
		creds:  creds,
		http:   &http.Client{},
		log:    log.With(logx.String("target", t.ID)),
	}
}

func (a *apiAdapter) TargetID() string { return a.target.ID }

func (a *apiAdapter) CanVerify() bool { return a.target.CanVerify() }

// Authenticate resolves the bearer credential. It is a no-op for open
// targets with no auth key.
func (a *apiAdapter) Authenticate(ctx context.Context) (Session, error) {
	key := strings.TrimSpace(a.target.AuthKey)
	if key == "" {
		return Session{}, nil
	}
	if a.creds == nil {
		return Session{}, &AuthError{TargetID: a.target.ID, Reason: "no credential store configured"}
	}
	tok, ok := a.creds.Lookup(key)
	if !ok {
		return Session{}, &AuthError{TargetID: a.target.ID, Reason: "credential " + key + " not found"}
	}
	return Session{Token: tok}, nil
}

type publishRequest struct {
	SourceURL   string   `json:"source_url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
}

type publishResponse struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

func (a *apiAdapter) Publish(ctx context.Context, s Session, item content.Item) (Ref, error) {
	body, err := json.Marshal(publishRequest{
		SourceURL:   item.SourceURL,
		Title:       item.Title,
		Description: item.Description,
		Hashtags:    item.Hashtags,
	})
	if err != nil {
		return Ref{}, &PublishError{Kind: PublishFault, Message: "marshal payload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.target.PublishURL, bytes.NewReader(body))
	if err != nil {
		return Ref{}, &PublishError{Kind: PublishFault, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Ref{}, &PublishError{Kind: PublishTimeout, Message: "publish request timed out"}
		}
		return Ref{}, &PublishError{Kind: PublishFault, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Ref{}, &PublishError{Kind: PublishFault, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return Ref{}, &PublishError{Kind: PublishRateLimited, Status: resp.StatusCode, Message: snippet(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Ref{}, &PublishError{Kind: PublishRejected, Status: resp.StatusCode, Message: snippet(raw)}
	}

	var pr publishResponse
	if err := json.Unmarshal(raw, &pr); err != nil || strings.TrimSpace(pr.ID) == "" {
		return Ref{}, &PublishError{Kind: PublishRejected, Status: resp.StatusCode, Message: "2xx without a parseable reference id"}
	}
	return Ref{ID: pr.ID, URL: pr.URL}, nil
}

type verifyResponse struct {
	Live bool   `json:"live"`
	URL  string `json:"url,omitempty"`
}

// Verify issues the documented presence request. A zero ref performs a
// target-level check against the bare verify URL.
func (a *apiAdapter) Verify(ctx context.Context, ref Ref) (bool, error) {
	if !a.CanVerify() {
		return false, &VerifyError{Kind: VerifyNotSupported, Message: "target has no verify endpoint"}
	}

	u := a.target.VerifyURL
	if ref.ID != "" {
		parsed, err := url.Parse(u)
		if err != nil {
			return false, &VerifyError{Kind: VerifyInconclusive, Message: "bad verify url: " + err.Error()}
		}
		q := parsed.Query()
		q.Set("ref", ref.ID)
		parsed.RawQuery = q.Encode()
		u = parsed.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, &VerifyError{Kind: VerifyInconclusive, Message: err.Error()}
	}

	resp, err := a.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, &VerifyError{Kind: VerifyTimeout, Message: "verify request timed out"}
		}
		return false, &VerifyError{Kind: VerifyInconclusive, Message: err.Error()}
	}
	defer resp.Body.Close()

	// 404 is a definitive "not live", not an error.
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, &VerifyError{Kind: VerifyInconclusive, Message: fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(raw))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, &VerifyError{Kind: VerifyInconclusive, Message: "read response: " + err.Error()}
	}
	var vr verifyResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		return false, &VerifyError{Kind: VerifyInconclusive, Message: "unparseable verify body"}
	}
	return vr.Live, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:297] + "..."
	}
	return s
}
