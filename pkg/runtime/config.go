package runtime

import (
	"github.com/code-payments/endpoint-mock/pkg/config"
	"github.com/code-payments/endpoint-mock/pkg/config/env"
	"github.com/code-payments/endpoint-mock/pkg/config/memory"
	"github.com/code-payments/endpoint-mock/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RUNTIME_"

	LamportsPerByteYearConfigEnvName = envConfigPrefix + "LAMPORTS_PER_BYTE_YEAR"
	defaultLamportsPerByteYear       = 3480

	RentExemptionThresholdConfigEnvName = envConfigPrefix + "RENT_EXEMPTION_THRESHOLD"
	defaultRentExemptionThreshold       = 2.0

	MaxRecentBlockhashesConfigEnvName = envConfigPrefix + "MAX_RECENT_BLOCKHASHES"
	defaultMaxRecentBlockhashes       = 150

	StatusCacheSizeConfigEnvName = envConfigPrefix + "STATUS_CACHE_SIZE"
	defaultStatusCacheSize       = 1_000_000

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 1024
)

type conf struct {
	lamportsPerByteYear    config.Uint64
	rentExemptionThreshold config.Float64
	maxRecentBlockhashes   config.Uint64
	statusCacheSize        config.Uint64
	lockStripes            config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			lamportsPerByteYear:    env.NewUint64Config(LamportsPerByteYearConfigEnvName, defaultLamportsPerByteYear),
			rentExemptionThreshold: env.NewFloat64Config(RentExemptionThresholdConfigEnvName, defaultRentExemptionThreshold),
			maxRecentBlockhashes:   env.NewUint64Config(MaxRecentBlockhashesConfigEnvName, defaultMaxRecentBlockhashes),
			statusCacheSize:        env.NewUint64Config(StatusCacheSizeConfigEnvName, defaultStatusCacheSize),
			lockStripes:            env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
		}
	}
}

type testOverrides struct {
	maxRecentBlockhashes uint64
	statusCacheSize      uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	maxRecentBlockhashes := uint64(defaultMaxRecentBlockhashes)
	if overrides.maxRecentBlockhashes > 0 {
		maxRecentBlockhashes = overrides.maxRecentBlockhashes
	}

	statusCacheSize := uint64(defaultStatusCacheSize)
	if overrides.statusCacheSize > 0 {
		statusCacheSize = overrides.statusCacheSize
	}

	return func() *conf {
		return &conf{
			lamportsPerByteYear:    wrapper.NewUint64Config(memory.NewConfig(uint64(defaultLamportsPerByteYear)), defaultLamportsPerByteYear),
			rentExemptionThreshold: wrapper.NewFloat64Config(memory.NewConfig(defaultRentExemptionThreshold), defaultRentExemptionThreshold),
			maxRecentBlockhashes:   wrapper.NewUint64Config(memory.NewConfig(maxRecentBlockhashes), defaultMaxRecentBlockhashes),
			statusCacheSize:        wrapper.NewUint64Config(memory.NewConfig(statusCacheSize), defaultStatusCacheSize),
			lockStripes:            wrapper.NewUint64Config(memory.NewConfig(uint64(16)), defaultLockStripes),
		}
	}
}
