package daemon

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	pg "github.com/code-payments/endpoint-mock/pkg/database/postgres"
	"github.com/code-payments/endpoint-mock/pkg/grpc/app"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the app section of the process config.
type Config struct {
	// Store selects the account store backing the ledger: memory or postgres.
	Store string `mapstructure:"store"`

	Postgres  pg.Config `mapstructure:"postgres"`
	UseAwsIam bool      `mapstructure:"use_aws_iam"`

	SlotInterval time.Duration `mapstructure:"slot_interval"`

	// Faucet limits. Zero values fall back to the RPC_ environment config.
	AirdropMaxLamports   uint64  `mapstructure:"airdrop_max_lamports"`
	AirdropRatePerSecond float64 `mapstructure:"airdrop_rate_per_second"`
}

var defaultConfig = Config{
	Store:        StoreMemory,
	SlotInterval: 400 * time.Millisecond,
}

func decodeConfig(raw app.Config) (*Config, error) {
	config := defaultConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &config,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "invalid app config")
	}

	switch config.Store {
	case StoreMemory, StorePostgres:
	default:
		return nil, errors.Errorf("unknown store %q", config.Store)
	}

	if config.SlotInterval <= 0 {
		return nil, errors.New("slot interval must be positive")
	}

	return &config, nil
}
