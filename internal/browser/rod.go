package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
)

type LaunchOptions struct {
	Headless bool
	// Bin is an explicit Chrome binary; empty lets the launcher find or fetch one.
	Bin string
}

// RodBrowser is a Chrome instance controlled over CDP.
type RodBrowser struct {
	rod *rod.Browser
	log *zap.Logger
}

func Launch(ctx context.Context, opts LaunchOptions, log *zap.Logger) (*RodBrowser, error) {
	log = logging.Module(log, "browser")
	// leakless is off to avoid AV false positives on Windows
	l := launcher.New().Leakless(false).Headless(opts.Headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}
	rb := rod.New().ControlURL(u).Context(ctx)
	if err := rb.Connect(); err != nil {
		return nil, eris.Wrap(err, "browser: connect")
	}
	log.Info("browser launched", zap.Bool("headless", opts.Headless))
	return &RodBrowser{rod: rb, log: log}, nil
}

func (b *RodBrowser) Close() error {
	if b.rod == nil {
		return nil
	}
	return b.rod.Close()
}

// NewContext opens an incognito context carrying the identity's session.
func (b *RodBrowser) NewContext(_ context.Context, id models.Identity, opts ContextOptions) (Context, error) {
	inc, err := b.rod.Incognito()
	if err != nil {
		return nil, eris.Wrap(err, "browser: incognito context")
	}
	rc := &rodContext{browser: inc, id: id, opts: opts}
	if id.Session != nil {
		if params := cookieParams(id.Session.Cookies); len(params) > 0 {
			if err := inc.SetCookies(params); err != nil {
				_ = inc.Close()
				return nil, eris.Wrap(err, "browser: set cookies")
			}
		}
		rc.storageScript = localStorageScript(id.Session.Origins)
	}
	return rc, nil
}

func cookieParams(cookies []models.Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if c.SameSite != "" {
			p.SameSite = proto.NetworkCookieSameSite(c.SameSite)
		}
		out = append(out, p)
	}
	return out
}

// localStorageScript seeds localStorage for the document's origin on every load.
func localStorageScript(origins []models.Origin) string {
	if len(origins) == 0 {
		return ""
	}
	data := map[string]map[string]string{}
	for _, o := range origins {
		m := map[string]string{}
		for _, kv := range o.LocalStorage {
			m[kv.Name] = kv.Value
		}
		data[o.Origin] = m
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return `(() => {
	const entries = (` + string(b) + `)[location.origin];
	if (!entries) return;
	for (const [k, v] of Object.entries(entries)) {
		try { if (localStorage.getItem(k) === null) localStorage.setItem(k, v); } catch (e) {}
	}
})()`
}

type rodContext struct {
	browser       *rod.Browser
	id            models.Identity
	opts          ContextOptions
	storageScript string
}

func (c *rodContext) Identity() models.Identity { return c.id }

func (c *rodContext) Close() error { return c.browser.Close() }

func (c *rodContext) NewPage(_ context.Context) (Page, error) {
	p, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, eris.Wrap(err, "browser: new page")
	}
	if err := c.emulate(p); err != nil {
		_ = p.Close()
		return nil, err
	}
	timeout := c.opts.PageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &rodPage{page: p, timeout: timeout}, nil
}

func (c *rodContext) emulate(p *rod.Page) error {
	o := c.opts
	if c.id.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      c.id.UserAgent,
			AcceptLanguage: o.Locale,
		}); err != nil {
			return eris.Wrap(err, "browser: user agent")
		}
	}
	if o.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: o.Locale}).Call(p); err != nil {
			return eris.Wrap(err, "browser: locale")
		}
	}
	if o.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: o.Timezone}).Call(p); err != nil {
			return eris.Wrap(err, "browser: timezone")
		}
	}
	if o.ViewportWidth > 0 && o.ViewportHeight > 0 {
		if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             o.ViewportWidth,
			Height:            o.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return eris.Wrap(err, "browser: viewport")
		}
	}
	if o.Referer != "" {
		if _, err := p.SetExtraHeaders([]string{"Referer", o.Referer}); err != nil {
			return eris.Wrap(err, "browser: headers")
		}
	}
	if c.storageScript != "" {
		if _, err := p.EvalOnNewDocument(c.storageScript); err != nil {
			return eris.Wrap(err, "browser: storage script")
		}
	}
	return nil
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) Navigate(url string, timeout time.Duration) error {
	pg := p.page.Timeout(timeout)
	defer pg.CancelTimeout()
	if err := pg.Navigate(url); err != nil {
		return eris.Wrapf(err, "navigate %s", url)
	}
	// body present is the equivalent of DOMContentLoaded for our purposes
	if _, err := pg.Element("body"); err != nil {
		return eris.Wrapf(err, "wait load %s", url)
	}
	return nil
}

func (p *rodPage) URL() string {
	pg := p.bounded()
	defer pg.CancelTimeout()
	info, err := pg.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML() (string, error) {
	pg := p.bounded()
	defer pg.CancelTimeout()
	return pg.HTML()
}

// bounded returns the page under the default timeout. Callers cancel it.
func (p *rodPage) bounded() *rod.Page {
	return p.page.Timeout(p.timeout)
}

func find(pg *rod.Page, loc Locator) (*rod.Element, error) {
	switch loc.Strategy {
	case ByCSS:
		return pg.Element(loc.Selector)
	case ByText:
		return pg.ElementR(loc.Selector, loc.Pattern)
	case ByRole:
		return pg.ElementR(roleSelector(loc.Selector), loc.Pattern)
	}
	return nil, eris.Errorf("browser: unknown strategy %q", loc.Strategy)
}

// with resolves loc within timeout and runs fn on the element under the same deadline.
func (p *rodPage) with(loc Locator, timeout time.Duration, fn func(el *rod.Element) error) error {
	pg := p.page.Timeout(timeout)
	defer pg.CancelTimeout()
	el, err := find(pg, loc)
	if err != nil {
		return eris.Wrapf(err, "find %s", loc)
	}
	return fn(el)
}

func (p *rodPage) Has(loc Locator) bool {
	var (
		ok  bool
		err error
	)
	switch loc.Strategy {
	case ByCSS:
		ok, _, err = p.page.Has(loc.Selector)
	case ByText:
		ok, _, err = p.page.HasR(loc.Selector, loc.Pattern)
	case ByRole:
		ok, _, err = p.page.HasR(roleSelector(loc.Selector), loc.Pattern)
	}
	return err == nil && ok
}

func (p *rodPage) WaitVisible(loc Locator, timeout time.Duration) error {
	return p.with(loc, timeout, func(el *rod.Element) error { return el.WaitVisible() })
}

func (p *rodPage) ScrollIntoView(loc Locator, timeout time.Duration) error {
	return p.with(loc, timeout, func(el *rod.Element) error { return el.ScrollIntoView() })
}

func (p *rodPage) Click(loc Locator, timeout time.Duration) error {
	return p.with(loc, timeout, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (p *rodPage) ClickJS(loc Locator, timeout time.Duration) error {
	return p.with(loc, timeout, func(el *rod.Element) error {
		_, err := el.Eval(`() => this.click()`)
		return err
	})
}

func (p *rodPage) Fill(loc Locator, text string, timeout time.Duration) error {
	return p.with(loc, timeout, func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(text)
	})
}

func (p *rodPage) Text(loc Locator, timeout time.Duration) (string, error) {
	var s string
	err := p.with(loc, timeout, func(el *rod.Element) error {
		var err error
		s, err = el.Text()
		return err
	})
	return s, err
}

func (p *rodPage) Type(text string) error {
	pg := p.bounded()
	defer pg.CancelTimeout()
	return pg.InsertText(text)
}

func (p *rodPage) PressEnter() error {
	pg := p.bounded()
	defer pg.CancelTimeout()
	return pg.Keyboard.Type(input.Enter)
}

func (p *rodPage) Scroll(dy float64) error {
	pg := p.bounded()
	defer pg.CancelTimeout()
	return pg.Mouse.Scroll(0, dy, 4)
}

func (p *rodPage) Screenshot() ([]byte, error) {
	pg := p.bounded()
	defer pg.CancelTimeout()
	return pg.Screenshot(true, &proto.PageCaptureScreenshot{})
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
