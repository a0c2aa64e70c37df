package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/endpoint-mock/pkg/config"
)

var errInduced = errors.New("in memory config: induced error")

// Config is a mutable in memory config source. It backs manual test
// overrides and explicit values passed in code.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	failing  bool
	shutdown bool
}

// NewConfig returns a new in memory config. A nil value means no value is set.
func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

// Get implements Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.shutdown:
		return nil, config.ErrShutdown
	case c.failing:
		return nil, errInduced
	case c.value == nil:
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements Config.Shutdown
func (c *Config) Shutdown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

// SetValue sets the value returned by subsequent Get calls. Setting nil
// clears it.
func (c *Config) SetValue(value interface{}) {
	c.mu.Lock()
	c.value = value
	c.mu.Unlock()
}

// SetFailing toggles whether Get returns an error instead of the value.
func (c *Config) SetFailing(failing bool) {
	c.mu.Lock()
	c.failing = failing
	c.mu.Unlock()
}
