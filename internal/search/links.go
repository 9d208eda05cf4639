package search

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/example/prospector/internal/prospect"
)

// linkStrategy pulls candidate hrefs from a results document.
type linkStrategy struct {
	name string
	find func(doc *goquery.Document) []string
}

func hrefs(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, a *goquery.Selection) {
		if h, ok := a.Attr("href"); ok {
			out = append(out, h)
		}
	})
	return out
}

func cssStrategy(name, sel string) linkStrategy {
	return linkStrategy{name: name, find: func(doc *goquery.Document) []string {
		return hrefs(doc.Find(sel))
	}}
}

// strategies are tried in order; the first that yields any link wins.
var strategies = []linkStrategy{
	cssStrategy("app-aware-link", `a[data-test-app-aware-link][href*="/in/"]`),
	cssStrategy("results-container", `.search-results-container a[href*="/in/"]`),
	{name: "list-items", find: func(doc *goquery.Document) []string {
		var out []string
		doc.Find(`ul[role="list"] li`).Each(func(_ int, li *goquery.Selection) {
			out = append(out, hrefs(li.Find(`a[href*="/in/"]`).First())...)
		})
		return out
	}},
	cssStrategy("any-profile-link", `a[href*="/in/"]`),
}

// ExtractProfileLinks returns the normalized, de-duplicated profile URLs in
// document order, and the name of the strategy that found them.
func ExtractProfileLinks(html, base string) ([]string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", eris.Wrap(err, "search: parse results page")
	}
	for _, st := range strategies {
		raw := st.find(doc)
		if len(raw) == 0 {
			continue
		}
		seen := map[string]bool{}
		var out []string
		for _, h := range raw {
			u := prospect.NormalizeURL(h, base)
			if !prospect.IsProfileURL(u) || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
		return out, st.name, nil
	}
	return nil, "", nil
}
