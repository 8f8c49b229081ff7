package adapter

import (
	"context"
	"errors"
	"strings"

	"crosspost/internal/browserauto"
	"crosspost/internal/content"
	"crosspost/internal/registry"
	"crosspost/pkg/logx"
)

const defaultScriptName = "generic-post"

// browserAdapter drives a UI script against a target that has no usable
// write API. Authentication happens inside the script, so Authenticate is
// a no-op and Publish gets a zero Session.
type browserAdapter struct {
	target  registry.Target
	backend *browserauto.Backend
	scripts *browserauto.ScriptSet
	creds   registry.CredentialStore
	driver  *browserauto.Driver
	log     logx.Logger
}

func newBrowserAdapter(t registry.Target, deps Deps, log logx.Logger) (Adapter, error) {
	name := t.Script
	if name == "" {
		name = defaultScriptName
	}
	if _, ok := deps.Scripts.Get(name); !ok {
		return nil, &PublishError{Kind: PublishFault, Message: "unknown script " + name + " for target " + t.ID}
	}
	return &browserAdapter{
		target:  t,
		backend: deps.Browser,
		scripts: deps.Scripts,
		creds:   deps.Creds,
		driver:  browserauto.NewDriver(deps.StepTimeout, deps.ProbeTimeout, log),
		log:     log,
	}, nil
}

func (a *browserAdapter) TargetID() string { return a.target.ID }

func (a *browserAdapter) Authenticate(ctx context.Context) (Session, error) {
	// Credentials are injected as script vars; missing ones fail here so
	// the attempt is reported as an auth failure, not a step failure.
	for _, key := range a.target.RequiredCredentialKeys {
		if _, ok := a.creds.Lookup(key); !ok {
			return Session{}, &AuthError{TargetID: a.target.ID, Reason: "missing credential " + key}
		}
	}
	return Session{}, nil
}

func (a *browserAdapter) scriptName() string {
	if a.target.Script != "" {
		return a.target.Script
	}
	return defaultScriptName
}

func (a *browserAdapter) vars(item content.Item, ref Ref) map[string]string {
	vars := map[string]string{
		"publish_url": a.target.PublishURL,
		"verify_url":  a.target.VerifyURL,
		"source_url":  item.SourceURL,
		"title":       item.Title,
		"description": item.Description,
		"hashtags":    item.HashtagLine(),
		"ref_id":      ref.ID,
		"ref_url":     ref.URL,
	}
	for _, key := range a.target.RequiredCredentialKeys {
		if v, ok := a.creds.Lookup(key); ok {
			vars["cred:"+key] = v
		}
	}
	return vars
}

func (a *browserAdapter) Publish(ctx context.Context, _ Session, item content.Item) (Ref, error) {
	script, _ := a.scripts.Get(a.scriptName())
	res, closePage, err := a.backend.NewPage(ctx)
	if err != nil {
		return Ref{}, &PublishError{Kind: PublishFault, Message: "open page: " + err.Error()}
	}
	defer closePage()

	out, err := a.driver.Run(ctx, res, script, a.vars(item, Ref{}))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Ref{}, &PublishError{Kind: PublishTimeout, Message: "script deadline exceeded"}
		}
		return Ref{}, err
	}
	return refFromOutcome(out), nil
}

// refFromOutcome builds the published-content reference from the confirm
// step's capture. A capture that looks like a link becomes the URL,
// anything else is kept as an opaque id; the page's final URL fills the
// gap when the capture gave no link.
func refFromOutcome(out browserauto.Outcome) Ref {
	ref := Ref{}
	if strings.HasPrefix(out.Confirmation, "http://") || strings.HasPrefix(out.Confirmation, "https://") {
		ref.URL = out.Confirmation
	} else {
		ref.ID = out.Confirmation
	}
	if ref.URL == "" {
		ref.URL = out.FinalURL
	}
	return ref
}

func (a *browserAdapter) CanVerify() bool { return a.target.CanVerify() }

// Verify runs the publish script's companion verify script. A confirm step
// that finds nothing is a definitive not-live observation; navigation or
// read failures are inconclusive and produce no observation.
func (a *browserAdapter) Verify(ctx context.Context, ref Ref) (bool, error) {
	script, ok := a.scripts.VerifyScript(a.scriptName())
	if !ok {
		return false, &VerifyError{Kind: VerifyNotSupported, Message: "no verify script for " + a.scriptName()}
	}
	res, closePage, err := a.backend.NewPage(ctx)
	if err != nil {
		return false, &VerifyError{Kind: VerifyInconclusive, Message: "open page: " + err.Error()}
	}
	defer closePage()

	_, err = a.driver.Run(ctx, res, script, a.vars(content.Item{}, ref))
	if err != nil {
		var stepErr *browserauto.StepError
		if errors.As(err, &stepErr) && stepErr.Reason == browserauto.ReasonNoLocatorMatched {
			return false, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return false, &VerifyError{Kind: VerifyTimeout, Message: "verify script deadline exceeded"}
		}
		return false, &VerifyError{Kind: VerifyInconclusive, Message: err.Error()}
	}
	return true, nil
}
