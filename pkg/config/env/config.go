package env

import (
	"context"
	"os"
	"strings"

	"github.com/code-payments/endpoint-mock/pkg/config"
	"github.com/code-payments/endpoint-mock/pkg/config/wrapper"
)

// conf snapshots an environment variable at construction time. An empty
// variable is treated as unset.
type conf struct {
	val string
}

func NewConfig(key string) config.Config {
	return &conf{
		val: os.Getenv(strings.ToUpper(key)),
	}
}

// Get implements Config.Get
func (c *conf) Get(_ context.Context) (interface{}, error) {
	if len(c.val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(c.val), nil
}

// Shutdown implements Config.Shutdown
func (c *conf) Shutdown() {
}

// NewUint64Config creates a env-based uint64 config
func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

// NewFloat64Config creates a env-based float64 config
func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

// NewStringConfig creates a env-based string config
func NewStringConfig(key string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(key), defaultValue)
}
