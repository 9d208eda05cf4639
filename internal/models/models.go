package models

import "time"

// Status is the outreach state of a prospect.
type Status string

const (
	StatusNew       Status = "new"
	StatusInvited   Status = "invited"
	StatusConnected Status = "connected"
	StatusMessaged  Status = "messaged"
)

// Rank orders statuses along the outreach progression. Unknown values rank below new.
func (s Status) Rank() int {
	switch s {
	case StatusNew:
		return 1
	case StatusInvited:
		return 2
	case StatusConnected:
		return 3
	case StatusMessaged:
		return 4
	}
	return 0
}

func (s Status) Valid() bool { return s.Rank() > 0 }

// IdentityRecord is a sender row as the store returns it. SessionState is the
// raw stored form and may be a JSON object, a JSON-encoded string, or empty.
type IdentityRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	UserAgent    string `json:"user_agent,omitempty"`
	SessionState []byte `json:"-"`
}

// Identity is an automation persona with its decoded session.
type Identity struct {
	ID        string
	Name      string
	Enabled   bool
	UserAgent string
	// Session is nil when the stored blob was absent or corrupt.
	Session *SessionState
}

func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return "(no name)"
}

// SessionState mirrors the storage-state export format: cookies plus
// per-origin localStorage entries.
type SessionState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

type Origin struct {
	Origin       string      `json:"origin"`
	LocalStorage []NameValue `json:"localStorage"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Prospect is one profile tracked through the outreach lifecycle. ProfileURL is
// the normalized natural key.
type Prospect struct {
	ProfileURL     string     `json:"profile_url"`
	FullName       string     `json:"full_name,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	Status         Status     `json:"status"`
	AssignedSender string     `json:"assigned_sender,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	InvitedAt      *time.Time `json:"invited_at,omitempty"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	MessageSentAt  *time.Time `json:"message_sent_at,omitempty"`
	NoteSent       bool       `json:"note_sent"`
	NoteText       string     `json:"note_text,omitempty"`
	DMText         string     `json:"dm_text,omitempty"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	ListID         string     `json:"list_id,omitempty"`
}

// ProspectFilter selects prospects for verification and messaging.
type ProspectFilter struct {
	Status         Status
	AssignedSender string
}

// ProspectPatch is a partial update. Nil fields are left untouched.
type ProspectPatch struct {
	// FromStatus, when set, restricts the write to rows currently in that status.
	FromStatus Status

	Status        *Status
	ConnectedAt   *time.Time
	MessageSentAt *time.Time
	LastChecked   *time.Time
	DMText        *string
	LastError     *string
	ClearError    bool
}

// Fields returns the column assignments of the patch. A cleared error maps to nil.
func (p ProspectPatch) Fields() map[string]any {
	f := map[string]any{}
	if p.Status != nil {
		f["status"] = string(*p.Status)
	}
	if p.ConnectedAt != nil {
		f["connected_at"] = *p.ConnectedAt
	}
	if p.MessageSentAt != nil {
		f["message_sent_at"] = *p.MessageSentAt
	}
	if p.LastChecked != nil {
		f["last_checked"] = *p.LastChecked
	}
	if p.DMText != nil {
		f["dm_text"] = *p.DMText
	}
	if p.ClearError {
		f["last_error"] = nil
	} else if p.LastError != nil {
		f["last_error"] = *p.LastError
	}
	return f
}

// List is a quota container for a collection run.
type List struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SearchURL    string `json:"search_url"`
	ProfileLimit int    `json:"profile_limit"`
	ProfileCount int    `json:"profile_count"`
	CollectOnly  bool   `json:"collect_only"`
	SendNote     bool   `json:"send_note"`
	NoteText     string `json:"note_text"`
}

type ListPatch struct {
	ProfileCount *int
}

func (p ListPatch) Fields() map[string]any {
	f := map[string]any{}
	if p.ProfileCount != nil {
		f["profile_count"] = *p.ProfileCount
	}
	return f
}
