package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for CryptoGest.
//
// Fields:
//   - DataRoot: directory holding the tenant index and default tenant dirs.
//   - CloudEndpoint: base URL of the backup service.
//   - RequestTimeout: per-request timeout for cloud calls.
//   - ProgressInterval: minimum interval between progress emissions during
//     uploads and downloads.
type Config struct {
	DataRoot         string
	CloudEndpoint    string
	RequestTimeout   time.Duration
	ProgressInterval time.Duration
}

// LoadDefaults populates c with sensible defaults. The data root defaults to
// "cryptogest" under the OS user config directory, falling back to the
// current directory when that cannot be resolved.
func (c *Config) LoadDefaults() {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	c.DataRoot = filepath.Join(base, "cryptogest")
	c.CloudEndpoint = "https://backup.cryptogest.app"
	c.RequestTimeout = 30 * time.Second
	c.ProgressInterval = 250 * time.Millisecond
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
