// Package config maps viper keys onto a typed configuration.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Keys read from the config file, FUNCPUSH_* environment variables and flags.
const (
	KeyManagementURL     = "management_url"
	KeySubscription      = "subscription"
	KeyResourceGroup     = "resource_group"
	KeySlot              = "slot"
	KeyAccessToken       = "access_token"
	KeyRestrictedToken   = "restricted_token"
	KeyPollInterval      = "poll.interval"
	KeyPollTimeout       = "poll.timeout"
	KeyBuildInterval     = "build.poll_interval"
	KeyBuildTimeout      = "build.timeout"
	KeySyncDelay         = "sync_delay"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	DefaultManagementURL = "https://management.azure.com"
)

// Polling bounds a wait loop.
type Polling struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Config is the effective configuration of one invocation.
type Config struct {
	ManagementURL   string
	Subscription    string
	ResourceGroup   string
	Slot            string
	AccessToken     string
	RestrictedToken string

	// Settings bounds the wait for pushed settings to reach the control plane.
	Settings Polling
	// Build bounds the wait for a server-side build.
	Build Polling
	// SyncDelay is the pause before triggers are synchronized.
	SyncDelay time.Duration

	LogLevel  string
	LogFormat string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyManagementURL, DefaultManagementURL)
	v.SetDefault(KeyPollInterval, 5*time.Second)
	v.SetDefault(KeyPollTimeout, 300*time.Second)
	v.SetDefault(KeyBuildInterval, 3*time.Second)
	v.SetDefault(KeyBuildTimeout, 30*time.Minute)
	v.SetDefault(KeySyncDelay, 5*time.Second)
	v.SetDefault(KeyLogLevel, "warn")
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		ManagementURL:   v.GetString(KeyManagementURL),
		Subscription:    v.GetString(KeySubscription),
		ResourceGroup:   v.GetString(KeyResourceGroup),
		Slot:            v.GetString(KeySlot),
		AccessToken:     v.GetString(KeyAccessToken),
		RestrictedToken: v.GetString(KeyRestrictedToken),
		Settings: Polling{
			Interval: v.GetDuration(KeyPollInterval),
			Timeout:  v.GetDuration(KeyPollTimeout),
		},
		Build: Polling{
			Interval: v.GetDuration(KeyBuildInterval),
			Timeout:  v.GetDuration(KeyBuildTimeout),
		},
		SyncDelay: v.GetDuration(KeySyncDelay),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	u, err := url.Parse(c.ManagementURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q", KeyManagementURL, c.ManagementURL)
	}
	for key, d := range map[string]time.Duration{
		KeyPollInterval:  c.Settings.Interval,
		KeyPollTimeout:   c.Settings.Timeout,
		KeyBuildInterval: c.Build.Interval,
		KeyBuildTimeout:  c.Build.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.SyncDelay < 0 {
		return fmt.Errorf("%s must not be negative, got %s", KeySyncDelay, c.SyncDelay)
	}
	if c.Settings.Interval > c.Settings.Timeout {
		return fmt.Errorf("%s (%s) exceeds %s (%s)", KeyPollInterval, c.Settings.Interval, KeyPollTimeout, c.Settings.Timeout)
	}
	return nil
}
