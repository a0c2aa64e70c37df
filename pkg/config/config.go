package config

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNoValue indicates no value was set for the config
	ErrNoValue = errors.New("config: no value set")

	// ErrShutdown indicates the use of a Config after calling Shutdown
	ErrShutdown = errors.New("config: shutdown")
)

// Config is a raw configuration source. Values are untyped; wrappers convert
// them into the typed views below.
type Config interface {
	// Get returns the latest config value
	Get(ctx context.Context) (interface{}, error)

	// Shutdown signals the config to stop all underlying resources
	Shutdown()
}

// Value is a typed view over a Config.
type Value[T any] interface {
	// Get returns the latest value, falling back to the last known or default
	// value on error.
	Get(ctx context.Context) T

	// GetSafe is Get, but propagates conversion and source errors.
	GetSafe(ctx context.Context) (T, error)

	Shutdown()
}

type (
	Uint64  = Value[uint64]
	Float64 = Value[float64]
	String  = Value[string]
)
