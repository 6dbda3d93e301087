// Package daemon holds runtime configuration for catalogd.
// Configuration lives in TOML at ~/.catalogd/config.toml and can be
// relocated with the CATALOGD_HOME environment variable.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/magneticstudio/catalogd/internal/domain"
)

// Config is the full catalogd configuration.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Commerce CommerceConfig `toml:"commerce"`
	Images   ImagesConfig   `toml:"images"`
	API      APIConfig      `toml:"api"`
	Storage  StorageConfig  `toml:"storage"`
}

// LedgerConfig points at the records workspace holding desired state.
type LedgerConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	BaseID  string `toml:"base_id"`
	Table   string `toml:"table"`
}

// CommerceConfig points at the commerce platform.
type CommerceConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// ImagesConfig controls the image resolution fallback chain.
// Every field is optional; an unset stage is skipped.
type ImagesConfig struct {
	DriveBaseURL      string `toml:"drive_base_url"`
	DriveAPIKey       string `toml:"drive_api_key"`
	RootFolder        string `toml:"root_folder"`
	GenerationBaseURL string `toml:"generation_base_url"`
	GenerationAPIKey  string `toml:"generation_api_key"`
	StylePrompt       string `toml:"style_prompt"`
}

// APIConfig controls the HTTP orchestration surface.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StorageConfig controls the local operational store.
type StorageConfig struct {
	Path string `toml:"path"` // directory holding catalogd.db
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Ledger: LedgerConfig{
			BaseURL: "https://api.airtable.com",
			Table:   "Products",
		},
		Commerce: CommerceConfig{
			BaseURL: "https://api.stripe.com",
		},
		Images: ImagesConfig{
			DriveBaseURL:      "https://www.googleapis.com",
			GenerationBaseURL: "https://api.openai.com",
			StylePrompt:       "Soft celestial product artwork, warm gold and deep violet palette, no text:",
		},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8433,
			Metrics: true,
		},
		Storage: StorageConfig{
			Path: Home(),
		},
	}
}

// Home returns the catalogd dotdir.
func Home() string {
	if env := os.Getenv("CATALOGD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".catalogd")
}

// ConfigPath returns the expected config file location.
func ConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads a TOML config file, layering it over the defaults.
// A missing file is not an error — defaults are returned.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the credentials the engine cannot run without.
// These are configuration errors: fatal, detected before any reads.
func (c Config) Validate() error {
	if c.Ledger.APIKey == "" {
		return domain.ErrMissingLedgerKey
	}
	if c.Ledger.BaseID == "" || c.Ledger.Table == "" {
		return domain.ErrMissingLedgerTable
	}
	if c.Commerce.APIKey == "" {
		return domain.ErrMissingCommerceKey
	}
	return nil
}

// Addr returns the API listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
