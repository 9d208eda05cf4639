package browser

import "fmt"

// Strategy is how a Locator finds an element.
type Strategy string

const (
	// ByCSS matches Selector as a CSS selector.
	ByCSS Strategy = "css"
	// ByText matches elements under Selector whose text matches Pattern (JS regex).
	ByText Strategy = "text"
	// ByRole matches elements with the ARIA role in Selector whose accessible
	// text matches Pattern.
	ByRole Strategy = "role"
)

// Locator is one (strategy, locator) pair. Flows keep ordered lists of them
// for controls the target site renders in several equivalent ways.
type Locator struct {
	Strategy Strategy
	Selector string
	Pattern  string
}

func CSS(sel string) Locator { return Locator{Strategy: ByCSS, Selector: sel} }

func Text(sel, pattern string) Locator {
	return Locator{Strategy: ByText, Selector: sel, Pattern: pattern}
}

func Role(role, pattern string) Locator {
	return Locator{Strategy: ByRole, Selector: role, Pattern: pattern}
}

func (l Locator) String() string {
	if l.Pattern == "" {
		return fmt.Sprintf("%s:%s", l.Strategy, l.Selector)
	}
	return fmt.Sprintf("%s:%s|%s", l.Strategy, l.Selector, l.Pattern)
}

// implicitRoles maps roles to the elements that carry them without an explicit attribute.
var implicitRoles = map[string]string{
	"button":   "button",
	"link":     "a[href]",
	"textbox":  "textarea, input[type='text']",
	"menuitem": "li[role='menuitem']",
}

// roleSelector expands a role into a CSS selector list.
func roleSelector(role string) string {
	sel := fmt.Sprintf("[role=%q]", role)
	if extra, ok := implicitRoles[role]; ok {
		sel += ", " + extra
	}
	return sel
}
