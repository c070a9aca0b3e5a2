package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/d3v1l1989/embywatch/internal/domain"
)

const envPrefix = "EMBYWATCH"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Sections  SectionsConfig  `mapstructure:"sections"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Polling   PollingConfig   `mapstructure:"polling"`
	State     StateConfig     `mapstructure:"state"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-"`
}

// ServerConfig holds media server configuration
type ServerConfig struct {
	Type           domain.ServerType `mapstructure:"type"` // "emby", "jellyfin" or empty to auto-detect
	URL            string            `mapstructure:"url"`
	APIKey         string            `mapstructure:"api_key"`
	Username       string            `mapstructure:"username"`
	Password       string            `mapstructure:"password"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// DiscordConfig holds the bot token and dashboard channel
type DiscordConfig struct {
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// DashboardConfig overrides dashboard branding. Empty values fall back to
// the backend's defaults.
type DashboardConfig struct {
	Name          string `mapstructure:"name"`
	Description   string `mapstructure:"description"`
	IconURL       string `mapstructure:"icon_url"`
	FooterIconURL string `mapstructure:"footer_icon_url"`
	Color         string `mapstructure:"color"` // "#RRGGBB"
	MaxStreams    int    `mapstructure:"max_streams"`
}

// SectionsConfig selects and decorates the libraries on the dashboard
type SectionsConfig struct {
	ShowAll  bool                     `mapstructure:"show_all"`
	Sections map[string]SectionConfig `mapstructure:"sections"`
}

// SectionConfig is the per-library override, keyed by library ID (Emby)
// or library name (Jellyfin)
type SectionConfig struct {
	DisplayName  string `mapstructure:"display_name"`
	Emoji        string `mapstructure:"emoji"`
	ShowEpisodes bool   `mapstructure:"show_episodes"`
	Color        string `mapstructure:"color"`
}

// Lookup finds the override for a library, by ID first and then by name.
// Keys are compared lowercase since viper lowercases map keys.
func (s SectionsConfig) Lookup(id, name string) (SectionConfig, bool) {
	if sc, ok := s.Sections[strings.ToLower(id)]; ok && id != "" {
		return sc, true
	}
	if sc, ok := s.Sections[strings.ToLower(name)]; ok && name != "" {
		return sc, true
	}
	return SectionConfig{}, false
}

// WithEpisodes returns a copy with show_episodes set on every section
func (s SectionsConfig) WithEpisodes(on bool) SectionsConfig {
	out := SectionsConfig{ShowAll: s.ShowAll, Sections: make(map[string]SectionConfig, len(s.Sections))}
	for key, sc := range s.Sections {
		sc.ShowEpisodes = on
		out.Sections[key] = sc
	}
	return out
}

// Fingerprint identifies the settings a library snapshot was built under.
// Map keys are marshalled in sorted order, so equal configs hash equally.
func (s SectionsConfig) Fingerprint() string {
	sections := make(map[string]SectionConfig, len(s.Sections))
	for key, sc := range s.Sections {
		sections[strings.ToLower(key)] = sc
	}
	data, err := json.Marshal(struct {
		ShowAll  bool
		Sections map[string]SectionConfig
	}{s.ShowAll, sections})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// PresenceConfig holds the bot status templates.
// StreamText understands {count} and {s}.
type PresenceConfig struct {
	OfflineText string `mapstructure:"offline_text"`
	StreamText  string `mapstructure:"stream_text"`
}

// CacheConfig controls library stats caching
type CacheConfig struct {
	LibraryUpdateInterval int `mapstructure:"library_update_interval"` // seconds
}

// TTL returns the library cache lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.LibraryUpdateInterval) * time.Second
}

// PollingConfig holds the two timer intervals
type PollingConfig struct {
	StatusInterval    time.Duration `mapstructure:"status_interval"`
	DashboardInterval time.Duration `mapstructure:"dashboard_interval"`
}

// StateConfig locates persisted state
type StateConfig struct {
	Path                string `mapstructure:"path"` // BoltDB file; empty keeps state in memory
	LegacyMessageIDFile string `mapstructure:"legacy_message_id_file"`
}

// MetricsConfig controls the health and metrics listener
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty disables the listener
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"` // empty logs to stderr
	Level      string `mapstructure:"level"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			RequestTimeout: 30 * time.Second,
		},
		Dashboard: DashboardConfig{
			Description: "Real-time server status and statistics",
			MaxStreams:  5,
		},
		Sections: SectionsConfig{
			ShowAll:  true,
			Sections: map[string]SectionConfig{},
		},
		Presence: PresenceConfig{
			OfflineText: "🔴 Server Offline!",
			StreamText:  "{count} active Stream{s} 🟢",
		},
		Cache: CacheConfig{
			LibraryUpdateInterval: 900,
		},
		Polling: PollingConfig{
			StatusInterval:    30 * time.Second,
			DashboardInterval: 60 * time.Second,
		},
		State: StateConfig{
			Path:                filepath.Join("data", "embywatch.db"),
			LegacyMessageIDFile: filepath.Join("data", "dashboard_message_id.json"),
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
	}
}

// DefaultConfigDir returns the default config directory for the current OS
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "embywatch")
	default:
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			return filepath.Join(dir, "embywatch")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "embywatch")
	}
}

// legacyEnv maps config keys to the environment variables older
// deployments set without the EMBYWATCH_ prefix
var legacyEnv = map[string][]string{
	"server.url":         {"EMBY_URL", "JELLYFIN_URL"},
	"server.api_key":     {"EMBY_API_KEY", "JELLYFIN_API_KEY"},
	"server.username":    {"EMBY_USERNAME", "JELLYFIN_USERNAME"},
	"server.password":    {"EMBY_PASSWORD", "JELLYFIN_PASSWORD"},
	"discord.token":      {"DISCORD_TOKEN"},
	"discord.channel_id": {"CHANNEL_ID"},
}

// Load reads configuration from path (or the default search locations when
// path is empty) and the environment
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath("data")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults and environment
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Server.URL = strings.TrimRight(cfg.Server.URL, "/")
	cfg.Server.Type = domain.ServerType(strings.ToLower(string(cfg.Server.Type)))
	if cfg.Sections.Sections == nil {
		cfg.Sections.Sections = map[string]SectionConfig{}
	}

	return cfg, nil
}

func newViper(defaults *Config) *viper.Viper {
	v := viper.New()

	v.SetDefault("server.type", string(defaults.Server.Type))
	v.SetDefault("server.url", defaults.Server.URL)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.request_timeout", defaults.Server.RequestTimeout)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.channel_id", "")
	v.SetDefault("dashboard.name", defaults.Dashboard.Name)
	v.SetDefault("dashboard.description", defaults.Dashboard.Description)
	v.SetDefault("dashboard.icon_url", "")
	v.SetDefault("dashboard.footer_icon_url", "")
	v.SetDefault("dashboard.color", "")
	v.SetDefault("dashboard.max_streams", defaults.Dashboard.MaxStreams)
	v.SetDefault("sections.show_all", defaults.Sections.ShowAll)
	v.SetDefault("presence.offline_text", defaults.Presence.OfflineText)
	v.SetDefault("presence.stream_text", defaults.Presence.StreamText)
	v.SetDefault("cache.library_update_interval", defaults.Cache.LibraryUpdateInterval)
	v.SetDefault("polling.status_interval", defaults.Polling.StatusInterval)
	v.SetDefault("polling.dashboard_interval", defaults.Polling.DashboardInterval)
	v.SetDefault("state.path", defaults.State.Path)
	v.SetDefault("state.legacy_message_id_file", defaults.State.LegacyMessageIDFile)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size", defaults.Logging.MaxSize)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.max_age", defaults.Logging.MaxAge)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	// Environment variable overrides, e.g. EMBYWATCH_SERVER_URL
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}

	return v
}

// Validate reports missing settings needed to reach the media server
func (c *Config) Validate() error {
	var problems []string
	if c.Server.URL == "" {
		problems = append(problems, "server.url is required")
	}
	switch c.Server.Type {
	case "", domain.ServerTypeEmby, domain.ServerTypeJellyfin:
	default:
		problems = append(problems, fmt.Sprintf("server.type %q is not one of emby, jellyfin", c.Server.Type))
	}
	if c.Server.APIKey == "" && (c.Server.Username == "" || c.Server.Password == "") {
		problems = append(problems, "server.api_key or server.username and server.password are required")
	}
	if c.Cache.LibraryUpdateInterval <= 0 {
		problems = append(problems, "cache.library_update_interval must be positive")
	}
	if c.Polling.StatusInterval <= 0 || c.Polling.DashboardInterval <= 0 {
		problems = append(problems, "polling intervals must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateBot extends Validate with the Discord settings the daemon needs
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Discord.Token == "" || c.Discord.ChannelID == "" {
		return errors.New("invalid configuration: discord.token and discord.channel_id are required")
	}
	return nil
}

// SaveSections writes the sections block back to the config file, leaving
// every other key as it is on disk
func SaveSections(cfg *Config, sections SectionsConfig) error {
	file := cfg.File
	if file == "" {
		file = filepath.Join(DefaultConfigDir(), "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	existing := viper.New()
	existing.SetConfigFile(file)
	if err := existing.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Build the block by hand to keep snake_case key names
	entries := make(map[string]any, len(sections.Sections))
	normalized := make(map[string]SectionConfig, len(sections.Sections))
	for key, sc := range sections.Sections {
		normalized[strings.ToLower(key)] = sc
		entry := map[string]any{
			"display_name":  sc.DisplayName,
			"emoji":         sc.Emoji,
			"show_episodes": sc.ShowEpisodes,
		}
		if sc.Color != "" {
			entry["color"] = sc.Color
		}
		entries[strings.ToLower(key)] = entry
	}

	// The sections block is replaced, not merged, so removed libraries disappear
	settings := existing.AllSettings()
	settings["sections"] = map[string]any{
		"show_all": sections.ShowAll,
		"sections": entries,
	}

	out := viper.New()
	if err := out.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to prepare config: %w", err)
	}
	if err := out.WriteConfigAs(file); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cfg.File = file
	cfg.Sections = SectionsConfig{ShowAll: sections.ShowAll, Sections: normalized}
	return nil
}
