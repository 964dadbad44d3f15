package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the credential broker.
//
// The communication key and salts are ordinary configuration constants; they
// deter casual inspection of wire traffic and vault files but are not a
// security boundary separate from the binary.
type Config struct {
	// APIBaseURL is the base URL of the authorization service.
	APIBaseURL string
	// FactoryAPIURL is the unauthenticated subscription endpoint of the
	// external consumer's service.
	FactoryAPIURL string

	// DataDir is where the encrypted vault records live.
	DataDir string
	// AuthFilePath is the external consumer's credential file. The broker
	// borrows this file: it is backed up on start and restored on exit.
	AuthFilePath string

	// CommKeyHex is the shared 256-bit communication key (64 hex chars),
	// used for request signing and wire payload encryption.
	CommKeyHex string
	// StorageSaltHex salts the at-rest key derivation.
	StorageSaltHex string
	// DeviceSaltHex salts the device fingerprint derivation.
	DeviceSaltHex string

	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration

	// Heartbeat interval bounds; each cycle sleeps a random duration within
	// [HeartbeatMin, HeartbeatMax].
	HeartbeatMin time.Duration
	HeartbeatMax time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "https://auth.atm-svc.net/api"
	c.FactoryAPIURL = "https://app.factory.ai/api/llm/subscription/info"
	c.DataDir = defaultDataDir()
	c.AuthFilePath = defaultAuthFilePath()
	c.CommKeyHex = "9c0afcb94de0c2b15b1c5cb7f9a34d6be14c7a28f30b871d2c44e09173a55e88"
	c.StorageSaltHex = "53616c7453746f726167654c6f63616c4b6579"
	c.DeviceSaltHex = "4465766963654964656e74697453616c74"
	c.RequestTimeout = 15 * time.Second
	c.ConnectTimeout = 8 * time.Second
	c.RetryAttempts = 3
	c.RetryDelay = 1 * time.Second
	c.HeartbeatMin = 30 * time.Second
	c.HeartbeatMax = 90 * time.Second
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

// CommKey decodes CommKeyHex.
func (c *Config) CommKey() ([]byte, error) {
	return hex.DecodeString(c.CommKeyHex)
}

// StorageSalt decodes StorageSaltHex.
func (c *Config) StorageSalt() ([]byte, error) {
	return hex.DecodeString(c.StorageSaltHex)
}

// DeviceSalt decodes DeviceSaltHex.
func (c *Config) DeviceSalt() ([]byte, error) {
	return hex.DecodeString(c.DeviceSaltHex)
}

func defaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "atm-client")
}

func defaultAuthFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".factory", "auth.json")
}
