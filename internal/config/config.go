package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/example/prospector/internal/pacing"
)

const envPrefix = "PROSPECTOR"

type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Store   StoreConfig   `mapstructure:"store"`
	Browser BrowserConfig `mapstructure:"browser"`
	Pacing  PacingConfig  `mapstructure:"pacing"`
	Run     RunDefaults   `mapstructure:"run"`
	Debug   DebugConfig   `mapstructure:"debug"`
	Log     LogConfig     `mapstructure:"log"`
}

// SiteConfig describes the target site surface.
type SiteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	HomePath string `mapstructure:"home_path"`
	// LoginMarkers are URL substrings that mean the session was bounced to a
	// login or challenge page.
	LoginMarkers []string `mapstructure:"login_markers"`
}

type StoreConfig struct {
	Driver     string          `mapstructure:"driver"`
	SQLitePath string          `mapstructure:"sqlite_path"`
	PostgREST  PostgRESTConfig `mapstructure:"postgrest"`
}

type PostgRESTConfig struct {
	URL               string  `mapstructure:"url"`
	Key               string  `mapstructure:"key"`
	ProspectsTable    string  `mapstructure:"prospects_table"`
	SendersTable      string  `mapstructure:"senders_table"`
	ListsTable        string  `mapstructure:"lists_table"`
	SettingsTable     string  `mapstructure:"settings_table"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	TimeoutSecs       int     `mapstructure:"timeout_secs"`
}

type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless"`
	Bin            string `mapstructure:"bin"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	Locale         string `mapstructure:"locale"`
	Timezone       string `mapstructure:"timezone"`
	NavTimeoutSecs int    `mapstructure:"nav_timeout_secs"`
}

// PacingConfig scales every jitter range. 1.0 keeps the built-in ranges.
// ActiveStart and ActiveEnd ("15:04", local time) bound the operating window.
type PacingConfig struct {
	Scale       float64 `mapstructure:"scale"`
	ActiveStart string  `mapstructure:"active_start"`
	ActiveEnd   string  `mapstructure:"active_end"`
}

func (p PacingConfig) Window() pacing.Window {
	return pacing.Window{Start: p.ActiveStart, End: p.ActiveEnd}
}

// RunDefaults are the per-run settings used when neither the store nor a
// command flag supplies a value.
type RunDefaults struct {
	SearchURL         string   `mapstructure:"search_url"`
	ProfileLimit      int      `mapstructure:"profile_limit"`
	CollectOnly       bool     `mapstructure:"collect_only"`
	SendNote          bool     `mapstructure:"send_note"`
	NoteText          string   `mapstructure:"note_text"`
	DefaultDM         string   `mapstructure:"default_dm"`
	Rotation          string   `mapstructure:"rotation"`
	SenderIDs         []string `mapstructure:"sender_ids"`
	VerifyLimit       int      `mapstructure:"verify_limit"`
	MessageLimit      int      `mapstructure:"message_limit"`
	MaxScrollAttempts int      `mapstructure:"max_scroll_attempts"`
}

type DebugConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.linkedin.com/")
	v.SetDefault("site.home_path", "feed/")
	v.SetDefault("site.login_markers", []string{"login", "challenge", "uas/login", "checkpoint", "authwall"})

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "prospector.db")
	v.SetDefault("store.postgrest.url", "")
	v.SetDefault("store.postgrest.key", "")
	v.SetDefault("store.postgrest.prospects_table", "li_prospects")
	v.SetDefault("store.postgrest.senders_table", "li_senders")
	v.SetDefault("store.postgrest.lists_table", "li_lists")
	v.SetDefault("store.postgrest.settings_table", "li_settings")
	v.SetDefault("store.postgrest.requests_per_second", 5.0)
	v.SetDefault("store.postgrest.timeout_secs", 15)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.viewport_width", 1400)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.locale", "en-US")
	v.SetDefault("browser.timezone", "UTC")
	v.SetDefault("browser.nav_timeout_secs", 45)

	v.SetDefault("pacing.scale", 1.0)
	v.SetDefault("pacing.active_start", "")
	v.SetDefault("pacing.active_end", "")

	v.SetDefault("run.search_url", "")
	v.SetDefault("run.profile_limit", 20)
	v.SetDefault("run.collect_only", false)
	v.SetDefault("run.send_note", false)
	v.SetDefault("run.note_text", "")
	v.SetDefault("run.default_dm", "Hi {{first_name}}, thanks for connecting!")
	v.SetDefault("run.rotation", "round_robin")
	v.SetDefault("run.sender_ids", []string{})
	v.SetDefault("run.verify_limit", 50)
	v.SetDefault("run.message_limit", 20)
	v.SetDefault("run.max_scroll_attempts", 5)

	v.SetDefault("debug.artifacts_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads path, a .env file when present, and PROSPECTOR_* environment
// overrides. An empty path means an optional ./config.yaml; a named path must exist.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, eris.Wrapf(err, "config: %s", path)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, eris.Wrap(err, "config: read file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Site.BaseURL == "" {
		return eris.New("config: site.base_url is required")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return eris.New("config: store.sqlite_path is required for the sqlite driver")
		}
	case "postgrest":
		if c.Store.PostgREST.URL == "" || c.Store.PostgREST.Key == "" {
			return eris.New("config: store.postgrest.url and store.postgrest.key are required for the postgrest driver")
		}
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Pacing.Scale < 0 {
		return eris.New("config: pacing.scale must be >= 0")
	}
	if (c.Pacing.ActiveStart == "") != (c.Pacing.ActiveEnd == "") {
		return eris.New("config: pacing.active_start and pacing.active_end go together")
	}
	if err := c.Pacing.Window().Validate(); err != nil {
		return eris.Wrap(err, "config")
	}
	if c.Run.ProfileLimit <= 0 || c.Run.VerifyLimit <= 0 || c.Run.MessageLimit <= 0 {
		return eris.New("config: run limits must be > 0")
	}
	if c.Run.MaxScrollAttempts <= 0 {
		return eris.New("config: run.max_scroll_attempts must be > 0")
	}
	return nil
}

// HomeURL is the authenticated landing page used by the session guard.
func (c *Config) HomeURL() string {
	return strings.TrimRight(c.Site.BaseURL, "/") + "/" + strings.TrimLeft(c.Site.HomePath, "/")
}
