// Package selectors lists the ordered locator alternatives for every control
// the flows touch on the target site. Patterns are JS regex literals.
//
// Keep each list ordered from most to least specific. Markup changes on the
// site should only ever require edits here.
package selectors

import "github.com/example/prospector/internal/browser"

type List = []browser.Locator

var (
	// Profile header.
	NameHeading = List{browser.CSS("main h1")}

	MoreButtons = List{
		browser.CSS("main button[aria-label='More actions']"),
		browser.CSS("main .pv-top-card button[aria-label='More actions']"),
		browser.Text("main button", `/^\s*More\s*$/i`),
		browser.Text("main .pv-top-card button", `/More/i`),
		browser.CSS("main .pv-top-card button[data-view-name='profile-overflow-button']"),
	}

	VisibleDropdown = List{
		browser.CSS("div.artdeco-dropdown__content[aria-hidden='false'], div[role='menu']:not([aria-hidden='true'])"),
	}

	DropdownConnect = List{
		browser.Text("div.artdeco-dropdown__content [aria-label^='Invite'][role='button']", `/Connect/i`),
		browser.Text("div[role='menu'] div[role='button']", `/^\s*Connect\s*$/i`),
		browser.Role("menuitem", `/^\s*Connect\s*$/i`),
	}

	SendWithoutNote = List{
		browser.CSS("button[aria-label='Send without a note']"),
		browser.Text("button", `/Send without a note/i`),
	}

	AddNote = List{
		browser.CSS("button[aria-label='Add a note']"),
		browser.Text("button", `/Add a note/i`),
	}

	NoteTextarea = List{browser.CSS("textarea#custom-message, textarea[name='message']")}

	SendInvite = List{
		browser.CSS("button[aria-label='Send invitation']"),
		browser.Text("button", `/^\s*Send\s*$/i`),
	}

	// MessageRole and MessageText are the two ways the profile renders its
	// Message control. Both are checked separately since the flows wait a
	// different time for each.
	MessageRole = List{browser.Role("button", `/Message/i`)}
	MessageText = List{browser.Text("button", `/Message/i`)}

	PendingLabel = List{browser.Text("button, span", `/^\s*Pending\s*$/i`)}

	Composer = List{
		browser.CSS("div[contenteditable='true']"),
		browser.CSS("div.msg-form__contenteditable"),
	}
)
