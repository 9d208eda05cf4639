// Package browsertest provides an in-memory Browser for flow tests. Sites are
// keyed by URL; each declares its HTML and which locators are visible,
// clickable, or only clickable through a direct JS click.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/models"
)

var ErrNotFound = errors.New("browsertest: element not found")

// Site is the scripted behaviour of one URL.
type Site struct {
	// HTML is returned by Page.HTML. When Scrolls is non-empty, the n-th
	// Scroll call switches HTML to Scrolls[n] (clamped to the last entry).
	HTML    string
	Scrolls []string

	// Visible lists locators (by Locator.String) that resolve and are visible.
	Visible map[string]bool
	// Blocked locators are visible but their normal click fails.
	Blocked map[string]bool
	// JSOnly locators are found but never visible; only ClickJS works.
	JSOnly map[string]bool
	// Texts are returned by Page.Text.
	Texts map[string]string
	// NavigateErr makes Navigate to this URL fail.
	NavigateErr error
}

// Set builds a locator set.
func Set(locs ...browser.Locator) map[string]bool {
	m := make(map[string]bool, len(locs))
	for _, l := range locs {
		m[l.String()] = true
	}
	return m
}

// Event records one interaction.
type Event struct {
	Identity string
	URL      string
	Action   string
	Target   string
}

type Browser struct {
	mu    sync.Mutex
	Sites map[string]*Site
	// LoginURL is where denied identities are redirected on any navigation.
	LoginURL string
	Denied   map[string]bool

	Events        []Event
	ContextsOpen  int
	ContextsTotal int
	PagesOpen     int
	closed        bool
}

func New() *Browser {
	return &Browser{
		Sites:    map[string]*Site{},
		Denied:   map[string]bool{},
		LoginURL: "https://www.linkedin.com/uas/login?session_redirect=feed",
	}
}

func (b *Browser) record(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, e)
}

// Actions returns the recorded events matching action, optionally filtered by URL.
func (b *Browser) Actions(action, url string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.Events {
		if e.Action == action && (url == "" || e.URL == url) {
			out = append(out, e)
		}
	}
	return out
}

func (b *Browser) NewContext(_ context.Context, id models.Identity, _ browser.ContextOptions) (browser.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("browsertest: browser closed")
	}
	b.ContextsOpen++
	b.ContextsTotal++
	return &Context{b: b, id: id}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

type Context struct {
	b      *Browser
	id     models.Identity
	closed bool
}

func (c *Context) Identity() models.Identity { return c.id }

func (c *Context) NewPage(context.Context) (browser.Page, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.PagesOpen++
	return &Page{b: c.b, id: c.id.ID, url: "about:blank"}, nil
}

func (c *Context) Close() error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.b.ContextsOpen--
	}
	return nil
}

type Page struct {
	b       *Browser
	id      string
	url     string
	scrolls int
	typed   strings.Builder
	closed  bool
}

func (p *Page) site() *Site {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if s, ok := p.b.Sites[p.url]; ok {
		return s
	}
	return &Site{}
}

func (p *Page) ev(action, target string) {
	p.b.record(Event{Identity: p.id, URL: p.url, Action: action, Target: target})
}

func (p *Page) Navigate(url string, _ time.Duration) error {
	p.b.mu.Lock()
	denied := p.b.Denied[p.id]
	site := p.b.Sites[url]
	p.b.mu.Unlock()

	p.url = url
	p.scrolls = 0
	p.ev("navigate", url)
	if denied {
		p.url = p.b.LoginURL
		return nil
	}
	if site != nil && site.NavigateErr != nil {
		return site.NavigateErr
	}
	return nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) HTML() (string, error) {
	s := p.site()
	if len(s.Scrolls) > 0 && p.scrolls > 0 {
		i := p.scrolls - 1
		if i >= len(s.Scrolls) {
			i = len(s.Scrolls) - 1
		}
		return s.Scrolls[i], nil
	}
	return s.HTML, nil
}

func (p *Page) found(loc browser.Locator) bool {
	s := p.site()
	k := loc.String()
	return s.Visible[k] || s.JSOnly[k]
}

func (p *Page) visible(loc browser.Locator) bool {
	return p.site().Visible[loc.String()]
}

func (p *Page) Has(loc browser.Locator) bool { return p.found(loc) }

func (p *Page) WaitVisible(loc browser.Locator, _ time.Duration) error {
	if !p.visible(loc) {
		return ErrNotFound
	}
	return nil
}

func (p *Page) ScrollIntoView(loc browser.Locator, _ time.Duration) error {
	if !p.found(loc) {
		return ErrNotFound
	}
	return nil
}

func (p *Page) Click(loc browser.Locator, _ time.Duration) error {
	if !p.visible(loc) || p.site().Blocked[loc.String()] {
		return ErrNotFound
	}
	p.ev("click", loc.String())
	return nil
}

func (p *Page) ClickJS(loc browser.Locator, _ time.Duration) error {
	if !p.found(loc) {
		return ErrNotFound
	}
	p.ev("jsclick", loc.String())
	return nil
}

func (p *Page) Fill(loc browser.Locator, text string, _ time.Duration) error {
	if !p.visible(loc) {
		return ErrNotFound
	}
	p.ev("fill", text)
	return nil
}

func (p *Page) Text(loc browser.Locator, _ time.Duration) (string, error) {
	s := p.site()
	if t, ok := s.Texts[loc.String()]; ok {
		return t, nil
	}
	return "", ErrNotFound
}

func (p *Page) Type(text string) error {
	p.typed.WriteString(text)
	p.ev("type", text)
	return nil
}

func (p *Page) PressEnter() error {
	p.ev("enter", "")
	return nil
}

func (p *Page) Scroll(float64) error {
	p.scrolls++
	p.ev("scroll", "")
	return nil
}

func (p *Page) Screenshot() ([]byte, error) { return []byte("png"), nil }

func (p *Page) Close() error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.b.PagesOpen--
	}
	return nil
}
