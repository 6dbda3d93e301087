package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/magneticstudio/catalogd/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8433 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8433)
	}
	if !cfg.API.Metrics {
		t.Error("API.Metrics should be true by default")
	}
	if cfg.Ledger.Table != "Products" {
		t.Errorf("Ledger.Table = %q, want %q", cfg.Ledger.Table, "Products")
	}
	if cfg.Commerce.BaseURL == "" {
		t.Error("Commerce.BaseURL should have a default")
	}
	if cfg.Images.StylePrompt == "" {
		t.Error("Images.StylePrompt should have a default")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("missing file should yield defaults, got port %d", cfg.API.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[ledger]
api_key = "key_ledger"
base_id = "appXYZ"
table = "Catalog"

[commerce]
api_key = "sk_test_123"

[api]
port = 9000
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ledger.BaseID != "appXYZ" {
		t.Errorf("Ledger.BaseID = %q, want appXYZ", cfg.Ledger.BaseID)
	}
	if cfg.Ledger.Table != "Catalog" {
		t.Errorf("Ledger.Table = %q, want Catalog", cfg.Ledger.Table)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	// Untouched sections keep defaults.
	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want default", cfg.API.Host)
	}
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Ledger.APIKey = "k"
	valid.Ledger.BaseID = "app1"
	valid.Commerce.APIKey = "sk"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing ledger key", func(c *Config) { c.Ledger.APIKey = "" }, domain.ErrMissingLedgerKey},
		{"missing base", func(c *Config) { c.Ledger.BaseID = "" }, domain.ErrMissingLedgerTable},
		{"missing table", func(c *Config) { c.Ledger.Table = "" }, domain.ErrMissingLedgerTable},
		{"missing commerce key", func(c *Config) { c.Commerce.APIKey = "" }, domain.ErrMissingCommerceKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	api := APIConfig{Host: "0.0.0.0", Port: 8080}
	if api.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", api.Addr())
	}
}
