package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServiceConfig describes a single configured service slot. Day and Time
// stay raw strings here; validation happens when the catalog is built.
type ServiceConfig struct {
	// ID is the single-character service identifier (A, B, C, ...).
	ID string `yaml:"id" json:"id"`
	// Name is the human-readable service label.
	Name string `yaml:"name" json:"name"`
	// Day is a weekday name, e.g. "saturday". Empty for schedule-less
	// special services.
	Day string `yaml:"day,omitempty" json:"day,omitempty"`
	// Time is a 24-hour "HH:MM" local time.
	Time string `yaml:"time,omitempty" json:"time,omitempty"`
	// Description is attached to created broadcasts.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone services are scheduled in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// CampusName prefixes broadcast titles and the expected stream names.
	CampusName string `yaml:"campus_name" json:"campus_name"`

	// ChannelID / PlaylistID identify where broadcasts are created and
	// collected. Both may be overridden from the environment.
	ChannelID  string `yaml:"channel_id" json:"channel_id"`
	PlaylistID string `yaml:"playlist_id" json:"playlist_id"`

	// OAuthCredentialsFile is the OAuth client secret JSON; TokenFile is
	// where the granted token is persisted between runs.
	OAuthCredentialsFile string `yaml:"oauth_credentials_file" json:"oauth_credentials_file"`
	TokenFile            string `yaml:"token_file" json:"token_file"`

	// PrivacyStatus is applied to every created broadcast
	// (public/unlisted/private).
	PrivacyStatus string `yaml:"privacy_status" json:"privacy_status"`
	MadeForKids   bool   `yaml:"made_for_kids" json:"made_for_kids"`

	// Broadcast behavior flags, passed through unmodified.
	AutoStart  bool `yaml:"auto_start" json:"auto_start"`
	AutoStop   bool `yaml:"auto_stop" json:"auto_stop"`
	DVREnabled bool `yaml:"dvr_enabled" json:"dvr_enabled"`
	Is360      bool `yaml:"is_360" json:"is_360"`

	// EnabledServices lists the service ids to plan, in output order.
	EnabledServices []string `yaml:"enabled_services" json:"enabled_services"`

	// Services is the full service definition table.
	Services []ServiceConfig `yaml:"services" json:"services"`

	// Watch is an optional cron expression; when set (or forced via the
	// -watch flag) the reconciliation re-runs on that schedule.
	Watch string `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:             "America/Indianapolis",
		CampusName:           "Fishers",
		OAuthCredentialsFile: "client_secret.json",
		TokenFile:            "token.json",
		PrivacyStatus:        "unlisted",
		AutoStart:            true,
		AutoStop:             true,
		DVREnabled:           true,
		EnabledServices:      []string{},
		Services:             []ServiceConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "America/Indianapolis"
	}
	if c.CampusName == "" {
		c.CampusName = "Fishers"
	}
	if c.OAuthCredentialsFile == "" {
		c.OAuthCredentialsFile = "client_secret.json"
	}
	if c.TokenFile == "" {
		c.TokenFile = "token.json"
	}
	switch c.PrivacyStatus {
	case "public", "unlisted", "private":
		// ok
	default:
		c.PrivacyStatus = "unlisted"
	}
	if c.EnabledServices == nil {
		c.EnabledServices = []string{}
	}
	if c.Services == nil {
		c.Services = []ServiceConfig{}
	}
}

// ApplyEnv overlays secrets and deployment ids from the environment. The
// variable names match the original env-file driven deployment, so an
// existing .env keeps working; godotenv loads it in main.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CHANNEL_ID"); v != "" {
		c.ChannelID = v
	}
	if v := os.Getenv("PLAYLIST_ID"); v != "" {
		c.PlaylistID = v
	}
	if v := os.Getenv("OAUTH2_CREDENTIALS_FILE"); v != "" {
		c.OAuthCredentialsFile = v
	}
	if v := os.Getenv("TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("CAMPUS_NAME"); v != "" {
		c.CampusName = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".streamsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
