package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/browser/browsertest"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
)

const pageURL = "https://www.linkedin.com/in/ana"

var (
	ariaBtn = browser.CSS("button[aria-label='More actions']")
	textBtn = browser.Text("button", "^More$")
	roleBtn = browser.Role("button", "More")
)

func newActor(t *testing.T, site *browsertest.Site) (*Actor, *browsertest.Browser) {
	t.Helper()
	b := browsertest.New()
	b.Sites[pageURL] = site
	bc, err := b.NewContext(context.Background(), models.Identity{ID: "a"}, browser.ContextOptions{})
	require.NoError(t, err)
	p, err := bc.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Navigate(pageURL, time.Second))
	return New(p, pacing.Off(), nil), b
}

func TestClickAny_FirstVisibleWins(t *testing.T) {
	a, b := newActor(t, &browsertest.Site{Visible: browsertest.Set(textBtn, roleBtn)})

	assert.True(t, a.ClickAny([]browser.Locator{ariaBtn, textBtn, roleBtn}, time.Second))

	clicks := b.Actions("click", pageURL)
	require.Len(t, clicks, 1)
	assert.Equal(t, textBtn.String(), clicks[0].Target)
}

func TestClickAny_FallsBackToJSClick(t *testing.T) {
	a, b := newActor(t, &browsertest.Site{
		Visible: browsertest.Set(ariaBtn),
		Blocked: browsertest.Set(ariaBtn),
	})

	assert.True(t, a.ClickAny([]browser.Locator{ariaBtn, textBtn}, time.Second))
	assert.Empty(t, b.Actions("click", pageURL))
	require.Len(t, b.Actions("jsclick", pageURL), 1)
}

func TestClickAny_HiddenElementUsesJSClick(t *testing.T) {
	a, b := newActor(t, &browsertest.Site{JSOnly: browsertest.Set(roleBtn)})

	assert.True(t, a.ClickAny([]browser.Locator{ariaBtn, roleBtn}, time.Second))
	jc := b.Actions("jsclick", pageURL)
	require.Len(t, jc, 1)
	assert.Equal(t, roleBtn.String(), jc[0].Target)
}

func TestClickAny_AllFail(t *testing.T) {
	a, b := newActor(t, &browsertest.Site{})
	assert.False(t, a.ClickAny([]browser.Locator{ariaBtn, textBtn, roleBtn}, time.Second))
	assert.Empty(t, b.Actions("click", ""))
	assert.Empty(t, b.Actions("jsclick", ""))
}

func TestWaitAnyAndFillAny(t *testing.T) {
	ta := browser.CSS("textarea#custom-message")
	a, b := newActor(t, &browsertest.Site{Visible: browsertest.Set(ta)})

	hit, ok := a.WaitAny([]browser.Locator{ariaBtn, ta}, time.Second)
	assert.True(t, ok)
	assert.Equal(t, ta, hit)

	assert.True(t, a.FillAny([]browser.Locator{ta}, "hello", time.Second))
	fills := b.Actions("fill", pageURL)
	require.Len(t, fills, 1)
	assert.Equal(t, "hello", fills[0].Target)

	assert.False(t, a.FillAny([]browser.Locator{ariaBtn}, "x", time.Second))
}

func TestTextAny(t *testing.T) {
	h1 := browser.CSS("main h1")
	a, _ := newActor(t, &browsertest.Site{Texts: map[string]string{h1.String(): "Ana Silva"}})
	assert.Equal(t, "Ana Silva", a.TextAny([]browser.Locator{ariaBtn, h1}, time.Second))
	assert.Equal(t, "", a.TextAny([]browser.Locator{ariaBtn}, time.Second))
}

func TestResolve_Order(t *testing.T) {
	var tried []string
	hit, err := Resolve([]browser.Locator{ariaBtn, textBtn, roleBtn}, func(l browser.Locator) error {
		tried = append(tried, l.String())
		if l == textBtn {
			return nil
		}
		return ErrNoMatch
	})
	require.NoError(t, err)
	assert.Equal(t, textBtn, hit)
	assert.Equal(t, []string{ariaBtn.String(), textBtn.String()}, tried)
}
