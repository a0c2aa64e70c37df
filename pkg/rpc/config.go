package rpc

import (
	"github.com/code-payments/endpoint-mock/pkg/config"
	"github.com/code-payments/endpoint-mock/pkg/config/env"
	"github.com/code-payments/endpoint-mock/pkg/config/memory"
	"github.com/code-payments/endpoint-mock/pkg/config/wrapper"
)

const (
	envConfigPrefix = "RPC_"

	AirdropMaxLamportsConfigEnvName = envConfigPrefix + "AIRDROP_MAX_LAMPORTS"
	defaultAirdropMaxLamports       = 10_000_000_000

	AirdropRatePerSecondConfigEnvName = envConfigPrefix + "AIRDROP_RATE_PER_SECOND"
	defaultAirdropRatePerSecond       = 1.0
)

type conf struct {
	airdropMaxLamports   config.Uint64
	airdropRatePerSecond config.Float64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			airdropMaxLamports:   env.NewUint64Config(AirdropMaxLamportsConfigEnvName, defaultAirdropMaxLamports),
			airdropRatePerSecond: env.NewFloat64Config(AirdropRatePerSecondConfigEnvName, defaultAirdropRatePerSecond),
		}
	}
}

// WithFaucetLimits returns configuration pulled from environment variables,
// with non-zero limits taking precedence.
func WithFaucetLimits(airdropMaxLamports uint64, airdropRatePerSecond float64) ConfigProvider {
	return func() *conf {
		c := WithEnvConfigs()()
		if airdropMaxLamports > 0 {
			c.airdropMaxLamports = wrapper.NewUint64Config(memory.NewConfig(airdropMaxLamports), defaultAirdropMaxLamports)
		}
		if airdropRatePerSecond > 0 {
			c.airdropRatePerSecond = wrapper.NewFloat64Config(memory.NewConfig(airdropRatePerSecond), defaultAirdropRatePerSecond)
		}
		return c
	}
}

type testOverrides struct {
	airdropMaxLamports   uint64
	airdropRatePerSecond float64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	airdropMaxLamports := uint64(defaultAirdropMaxLamports)
	if overrides.airdropMaxLamports > 0 {
		airdropMaxLamports = overrides.airdropMaxLamports
	}

	airdropRatePerSecond := defaultAirdropRatePerSecond
	if overrides.airdropRatePerSecond > 0 {
		airdropRatePerSecond = overrides.airdropRatePerSecond
	}

	return func() *conf {
		return &conf{
			airdropMaxLamports:   wrapper.NewUint64Config(memory.NewConfig(airdropMaxLamports), defaultAirdropMaxLamports),
			airdropRatePerSecond: wrapper.NewFloat64Config(memory.NewConfig(airdropRatePerSecond), defaultAirdropRatePerSecond),
		}
	}
}
