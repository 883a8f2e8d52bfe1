package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var ErrConfigFileNotFound = errors.New("could not find config file in any config path")

// Config represents the entire application configuration.
type Config struct {
	Debug      Debug      `koanf:"debug"`
	Feed       Feed       `koanf:"feed"`
	Platform   Platform   `koanf:"platform"`
	Correlator Correlator `koanf:"correlator"`
	Alerts     Alerts     `koanf:"alerts"`
	Redis      Redis      `koanf:"redis"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// LogLevel sets the minimum level for log output.
	LogLevel string `koanf:"log_level"`
	// LogDir is where log files are written.
	LogDir string `koanf:"log_dir"`
}

// Feed contains push-feed connection configuration.
type Feed struct {
	// Endpoint is the platform's push endpoint URL.
	Endpoint string `koanf:"endpoint"`
	// ReconnectInterval is the fixed delay between reconnect attempts in seconds.
	ReconnectInterval int `koanf:"reconnect_interval"`
	// HandshakeTimeout bounds a single connection attempt in seconds.
	HandshakeTimeout int `koanf:"handshake_timeout"`
}

// Platform contains configuration for the platform HTTP API.
type Platform struct {
	// BaseURL is the API root.
	BaseURL string `koanf:"base_url"`
	// RequestTimeout bounds individual API calls in seconds.
	RequestTimeout int `koanf:"request_timeout"`
	// UserAgent identifies this client to the platform.
	UserAgent string `koanf:"user_agent"`
	// AuthToken is the token obtained from the platform's login
	// exchange, used for both the API and the push feed.
	AuthToken string `koanf:"auth_token"`
}

// Correlator contains moderation-context tracking configuration.
type Correlator struct {
	// RefreshInterval is how often tracked group instance listings are
	// refreshed, in seconds.
	RefreshInterval int `koanf:"refresh_interval"`
	// TrackedGroups lists the group IDs the operator moderates.
	TrackedGroups []string `koanf:"tracked_groups"`
}

// Alerts contains alert delivery configuration.
type Alerts struct {
	Overlay  Overlay  `koanf:"overlay"`
	Fallback Fallback `koanf:"fallback"`
}

// Overlay contains VR-overlay channel configuration.
type Overlay struct {
	// Endpoint is the local websocket command endpoint.
	Endpoint string `koanf:"endpoint"`
	// DatagramAddr is the UDP address for fire-and-forget notifications.
	DatagramAddr string `koanf:"datagram_addr"`
	// MaxReconnectAttempts caps overlay reconnects, unlike the feed.
	MaxReconnectAttempts int `koanf:"max_reconnect_attempts"`
	// ReconnectInterval is the fixed delay between attempts in seconds.
	ReconnectInterval int `koanf:"reconnect_interval"`
	// GPUThreshold is the usage ratio above which non-danger alerts throttle.
	GPUThreshold float64 `koanf:"gpu_threshold"`
	// ThrottleCooldown is the minimum gap between throttled alerts in seconds.
	ThrottleCooldown int `koanf:"throttle_cooldown"`
}

// Fallback contains slot-message fallback channel configuration.
type Fallback struct {
	// SlotIndex is the message slot repurposed for alert text.
	SlotIndex int `koanf:"slot_index"`
	// DrainDelay is the fixed delay between queued sends in seconds.
	DrainDelay int `koanf:"drain_delay"`
	// SlotResetDelay is the wait after a slot reset before the edit,
	// configurable because the platform's cooldown rule is undocumented.
	SlotResetDelay int `koanf:"slot_reset_delay"`
}

// Redis contains configuration for the rule-config and audit store.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// ReconnectIntervalDuration returns the feed reconnect interval,
// defaulting to 5 seconds when unset.
func (f *Feed) ReconnectIntervalDuration() time.Duration {
	if f.ReconnectInterval <= 0 {
		return 5 * time.Second
	}

	return time.Duration(f.ReconnectInterval) * time.Second
}

// RefreshIntervalDuration returns the cache refresh interval,
// defaulting to 60 seconds when unset.
func (c *Correlator) RefreshIntervalDuration() time.Duration {
	if c.RefreshInterval <= 0 {
		return 60 * time.Second
	}

	return time.Duration(c.RefreshInterval) * time.Second
}

// LoadConfig loads the configuration from the first config path that
// contains a warden.toml file.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".warden",
		homeDir + "/.warden/config",
		"/etc/warden/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/warden.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: warden.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, usedConfigPath, nil
}
