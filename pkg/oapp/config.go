package oapp

import (
	"github.com/code-payments/endpoint-mock/pkg/config"
	"github.com/code-payments/endpoint-mock/pkg/config/env"
	"github.com/code-payments/endpoint-mock/pkg/config/memory"
	"github.com/code-payments/endpoint-mock/pkg/config/wrapper"
)

const (
	envConfigPrefix = "OAPP_CLIENT_"

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "finalized"
)

type conf struct {
	commitment config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			commitment: env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
		}
	}
}

type testOverrides struct {
	commitment string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	commitment := defaultCommitment
	if overrides.commitment != "" {
		commitment = overrides.commitment
	}

	return func() *conf {
		return &conf{
			commitment: wrapper.NewStringConfig(memory.NewConfig(commitment), defaultCommitment),
		}
	}
}
