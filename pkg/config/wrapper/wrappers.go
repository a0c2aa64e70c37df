package wrapper

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/code-payments/endpoint-mock/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

type converter[T any] func(raw interface{}) (T, error)

// typedConfig remembers the last successfully converted value so readers
// never observe a zero value while the source is erroring.
type typedConfig[T any] struct {
	source       config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newTypedConfig[T any](source config.Config, defaultValue T, convert converter[T]) *typedConfig[T] {
	return &typedConfig[T]{
		source:       source,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe implements config.Value.GetSafe
func (c *typedConfig[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := c.source.Get(ctx)

	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()

	if err == config.ErrNoValue {
		c.store(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	newValue, err := c.convert(raw)
	if err != nil {
		return lastValue, err
	}
	c.store(newValue)
	return newValue, nil
}

// Get implements config.Value.Get
func (c *typedConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown implements config.Value.Shutdown
func (c *typedConfig[T]) Shutdown() {
	c.source.Shutdown()
}

func (c *typedConfig[T]) store(value T) {
	c.stateMu.Lock()
	c.lastValue = value
	c.stateMu.Unlock()
}

// NewUint64Config wraps source as a uint64 config. Byte values are parsed as
// base 10 integers.
func NewUint64Config(source config.Config, defaultValue uint64) config.Uint64 {
	return newTypedConfig(source, defaultValue, func(raw interface{}) (uint64, error) {
		switch v := raw.(type) {
		case []byte:
			return strconv.ParseUint(string(v), 10, 64)
		case uint64:
			return v, nil
		case uint:
			return uint64(v), nil
		case int:
			if v < 0 {
				return 0, errors.Errorf("negative value %d", v)
			}
			return uint64(v), nil
		default:
			return 0, ErrUnsuportedConversion
		}
	})
}

// NewFloat64Config wraps source as a float64 config.
func NewFloat64Config(source config.Config, defaultValue float64) config.Float64 {
	return newTypedConfig(source, defaultValue, func(raw interface{}) (float64, error) {
		switch v := raw.(type) {
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		case float64:
			return v, nil
		default:
			return 0, ErrUnsuportedConversion
		}
	})
}

// NewStringConfig wraps source as a string config.
func NewStringConfig(source config.Config, defaultValue string) config.String {
	return newTypedConfig(source, defaultValue, func(raw interface{}) (string, error) {
		switch v := raw.(type) {
		case []byte:
			return string(v), nil
		case string:
			return v, nil
		default:
			return "", ErrUnsuportedConversion
		}
	})
}
