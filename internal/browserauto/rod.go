package browserauto

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"crosspost/pkg/logx"
)

// Options configures the shared browser process.
type Options struct {
	// Bin is the chrome/chromium binary; empty lets the launcher find one.
	Bin      string
	Headless bool
}

// Backend owns one browser process shared by all attempts. The browser is
// launched lazily on first use; each attempt gets its own incognito page so
// cookies and storage never leak between targets.
type Backend struct {
	opts Options
	log  logx.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

func NewBackend(opts Options, log logx.Logger) *Backend {
	return &Backend{opts: opts, log: log}
}

func (b *Backend) connect(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	launch := launcher.New().Headless(b.opts.Headless)
	if b.opts.Bin != "" {
		launch = launch.Bin(b.opts.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.log.Info("browser connected", logx.Bool("headless", b.opts.Headless))
	b.browser = browser
	return browser, nil
}

// NewPage opens a fresh incognito page and returns a Resolver bound to it.
// The returned close func must be called when the attempt ends.
func (b *Backend) NewPage(ctx context.Context) (Resolver, func(), error) {
	browser, err := b.connect(context.WithoutCancel(ctx))
	if err != nil {
		return nil, nil, err
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, fmt.Errorf("open page: %w", err)
	}
	closeFn := func() { _ = page.Close() }
	return &rodResolver{page: page}, closeFn, nil
}

// Close shuts the browser process down. Safe to call when never started.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

type rodResolver struct {
	page *rod.Page
}

func (r *rodResolver) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (r *rodResolver) Probe(ctx context.Context, selector string) (bool, error) {
	has, _, err := r.page.Context(ctx).Has(selector)
	if err != nil {
		// A cancelled probe is a miss, not a hard failure.
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	return has, nil
}

func (r *rodResolver) Click(ctx context.Context, selector string) error {
	el, err := r.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (r *rodResolver) Fill(ctx context.Context, selector, text string) error {
	el, err := r.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(text)
}

func (r *rodResolver) Text(ctx context.Context, selector string) (string, error) {
	el, err := r.page.Context(ctx).Element(selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (r *rodResolver) URL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
