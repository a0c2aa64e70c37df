package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
http_listen_address: ":9999"
shutdown_grace_period: 5s
enable_ballast: false
app:
  store: memory
  slot_interval: 400ms
`), 0600))

	original := *configPath
	*configPath = path
	defer func() { *configPath = original }()

	config, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "endpoint-mock", config.AppName)
	assert.Equal(t, ":9999", config.HTTPListenAddress)
	assert.Equal(t, defaultConfig.InsecureListenAddress, config.InsecureListenAddress)
	assert.Equal(t, 5*time.Second, config.ShutdownGracePeriod)
	assert.False(t, config.EnableBallast)

	var appConfig struct {
		Store        string        `mapstructure:"store"`
		SlotInterval time.Duration `mapstructure:"slot_interval"`
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &appConfig,
	})
	require.NoError(t, err)
	require.NoError(t, decoder.Decode(config.AppConfig))

	assert.Equal(t, "memory", appConfig.Store)
	assert.Equal(t, 400*time.Millisecond, appConfig.SlotInterval)
}
