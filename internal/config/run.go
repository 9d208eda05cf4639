package config

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/example/prospector/internal/identity"
	"github.com/example/prospector/internal/models"
)

// ErrMissingSearchURL is fatal for a discovery run.
var ErrMissingSearchURL = eris.New("config: search target URL is required")

// Setting keys read from the store's settings table.
const (
	SettingLocale     = "LOCALE"
	SettingTimezone   = "TIMEZONE_ID"
	SettingDefaultDM  = "DEFAULT_DM"
	SettingConnectMsg = "CONNECT_NOTE"
)

type RunKind string

const (
	RunDiscovery    RunKind = "discovery"
	RunVerification RunKind = "verification"
	RunMessaging    RunKind = "messaging"
)

// RunConfig is the immutable snapshot a run works from. It is resolved once
// at the start of a command and passed by value to every component.
type RunConfig struct {
	Kind RunKind

	SiteBase     string
	HomeURL      string
	LoginMarkers []string

	SearchURL   string
	Quota       int
	ListID      string
	CollectOnly bool
	SendNote    bool
	NoteText    string
	DefaultDM   string

	Locale         string
	Timezone       string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration

	Rotation  identity.Rotation
	SenderIDs []string

	// Limit caps rows per identity for verification and rows in total for messaging.
	Limit             int
	MaxScrollAttempts int
	PacingScale       float64
	ArtifactsDir      string
}

// Overrides are command-line values; nil means "not given".
type Overrides struct {
	SearchURL   *string
	Limit       *int
	ListID      string
	CollectOnly *bool
	SendNote    *bool
	NoteText    *string
	DefaultDM   *string
	Rotation    *string
	SenderIDs   []string
}

// RunStore is the slice of the store Resolve reads from.
type RunStore interface {
	GetSetting(ctx context.Context, key, def string) (string, error)
	GetList(ctx context.Context, id string) (*models.List, error)
}

// Resolve builds the snapshot for one run. Precedence, lowest first:
// config file and environment, store settings, the quota list row, flags.
func Resolve(ctx context.Context, cfg *Config, kind RunKind, st RunStore, o Overrides) (RunConfig, error) {
	rc := RunConfig{
		Kind:              kind,
		SiteBase:          cfg.Site.BaseURL,
		HomeURL:           cfg.HomeURL(),
		LoginMarkers:      append([]string(nil), cfg.Site.LoginMarkers...),
		SearchURL:         cfg.Run.SearchURL,
		Quota:             cfg.Run.ProfileLimit,
		CollectOnly:       cfg.Run.CollectOnly,
		SendNote:          cfg.Run.SendNote,
		NoteText:          cfg.Run.NoteText,
		DefaultDM:         cfg.Run.DefaultDM,
		Locale:            cfg.Browser.Locale,
		Timezone:          cfg.Browser.Timezone,
		Headless:          cfg.Browser.Headless,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		NavTimeout:        time.Duration(cfg.Browser.NavTimeoutSecs) * time.Second,
		SenderIDs:         append([]string(nil), cfg.Run.SenderIDs...),
		MaxScrollAttempts: cfg.Run.MaxScrollAttempts,
		PacingScale:       cfg.Pacing.Scale,
		ArtifactsDir:      cfg.Debug.ArtifactsDir,
	}
	rotation := cfg.Run.Rotation

	switch kind {
	case RunVerification:
		rc.Limit = cfg.Run.VerifyLimit
	case RunMessaging:
		rc.Limit = cfg.Run.MessageLimit
	}

	if st != nil {
		rc.Locale = setting(ctx, st, SettingLocale, rc.Locale)
		rc.Timezone = setting(ctx, st, SettingTimezone, rc.Timezone)
		rc.DefaultDM = setting(ctx, st, SettingDefaultDM, rc.DefaultDM)
		rc.NoteText = setting(ctx, st, SettingConnectMsg, rc.NoteText)
	}

	if o.ListID != "" {
		if st == nil {
			return RunConfig{}, eris.New("config: a quota list needs a store")
		}
		l, err := st.GetList(ctx, o.ListID)
		if err != nil {
			return RunConfig{}, eris.Wrapf(err, "config: load list %s", o.ListID)
		}
		rc.ListID = l.ID
		if l.SearchURL != "" {
			rc.SearchURL = l.SearchURL
		}
		if l.ProfileLimit > 0 {
			rc.Quota = l.ProfileLimit
		}
		rc.CollectOnly = l.CollectOnly
		rc.SendNote = l.SendNote
		if l.NoteText != "" {
			rc.NoteText = l.NoteText
		}
	}

	if o.SearchURL != nil {
		rc.SearchURL = *o.SearchURL
	}
	if o.Limit != nil {
		if kind == RunDiscovery {
			rc.Quota = *o.Limit
		} else {
			rc.Limit = *o.Limit
		}
	}
	if o.CollectOnly != nil {
		rc.CollectOnly = *o.CollectOnly
	}
	if o.SendNote != nil {
		rc.SendNote = *o.SendNote
	}
	if o.NoteText != nil {
		rc.NoteText = *o.NoteText
	}
	if o.DefaultDM != nil {
		rc.DefaultDM = *o.DefaultDM
	}
	if o.Rotation != nil {
		rotation = *o.Rotation
	}
	if len(o.SenderIDs) > 0 {
		rc.SenderIDs = append([]string(nil), o.SenderIDs...)
	}

	r, err := identity.ParseRotation(rotation)
	if err != nil {
		return RunConfig{}, err
	}
	rc.Rotation = r

	if kind == RunDiscovery {
		rc.SearchURL = strings.TrimSpace(rc.SearchURL)
		if rc.SearchURL == "" {
			return RunConfig{}, ErrMissingSearchURL
		}
		if rc.Quota <= 0 {
			return RunConfig{}, eris.New("config: quota must be > 0")
		}
	} else if rc.Limit <= 0 {
		return RunConfig{}, eris.New("config: limit must be > 0")
	}
	return rc, nil
}

// setting falls back to def when the store cannot be read.
func setting(ctx context.Context, st RunStore, key, def string) string {
	v, err := st.GetSetting(ctx, key, def)
	if err != nil || v == "" {
		return def
	}
	return v
}
