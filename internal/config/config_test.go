package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DefaultManagementURL, c.ManagementURL)
	assert.Equal(t, 5*time.Second, c.Settings.Interval)
	assert.Equal(t, 300*time.Second, c.Settings.Timeout)
	assert.Equal(t, 3*time.Second, c.Build.Interval)
	assert.Equal(t, 5*time.Second, c.SyncDelay)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
subscription: sub-1
resource_group: rg
poll:
  interval: 1s
  timeout: 10s
log:
  level: debug
`)))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", c.Subscription)
	assert.Equal(t, "rg", c.ResourceGroup)
	assert.Equal(t, time.Second, c.Settings.Interval)
	assert.Equal(t, 10*time.Second, c.Settings.Timeout)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	base, err := Load(v)
	require.NoError(t, err)

	bad := base
	bad.ManagementURL = "not a url"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Build.Timeout = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.Settings.Interval = time.Hour
	assert.Error(t, bad.Validate())
}
