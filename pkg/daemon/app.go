package daemon

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	pg "github.com/code-payments/endpoint-mock/pkg/database/postgres"
	endpointprogram "github.com/code-payments/endpoint-mock/pkg/endpoint"
	"github.com/code-payments/endpoint-mock/pkg/grpc/app"
	"github.com/code-payments/endpoint-mock/pkg/ledger/account"
	memory_account_store "github.com/code-payments/endpoint-mock/pkg/ledger/account/memory"
	postgres_account_store "github.com/code-payments/endpoint-mock/pkg/ledger/account/postgres"
	"github.com/code-payments/endpoint-mock/pkg/rpc"
	"github.com/code-payments/endpoint-mock/pkg/runtime"
	"github.com/code-payments/endpoint-mock/pkg/solana/endpoint"
)

// Overridden in tests.
var (
	newBank                    = runtime.NewBank
	newPostgresWithCredentials = pg.NewWithUsernameAndPassword
)

// App runs a bank with the endpoint program deployed behind the Solana
// JSON-RPC API.
type App struct {
	log *logrus.Entry

	db   *sql.DB
	bank *runtime.Bank
	rpc  *rpc.Server

	cancel     context.CancelFunc
	shutdownCh chan struct{}
	stopOnce   sync.Once
	closeOnce  sync.Once
}

func New() *App {
	return &App{
		log:        logrus.StandardLogger().WithField("type", "daemon/app"),
		cancel:     func() {},
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *App) Init(rawConfig app.Config, metricsProvider *newrelic.Application) error {
	config, err := decodeConfig(rawConfig)
	if err != nil {
		return err
	}

	store, err := a.newStore(context.Background(), config)
	if err != nil {
		return errors.Wrap(err, "error initializing account store")
	}

	a.bank, err = newBank(store, runtime.WithEnvConfigs())
	if err != nil {
		a.closeDB()
		return errors.Wrap(err, "error initializing bank")
	}
	a.bank.RegisterProgram(endpoint.PROGRAM_ID, endpointprogram.NewProgram(endpointprogram.NewRegistrar()))

	a.rpc = rpc.NewServer(a.bank, metricsProvider, rpc.WithFaucetLimits(config.AirdropMaxLamports, config.AirdropRatePerSecond))

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go func() {
		err := a.bank.Run(ctx, config.SlotInterval)
		if err != nil && err != context.Canceled {
			a.log.WithError(err).Warn("slot ticker stopped")
		}
		a.closeShutdownCh()
	}()

	a.log.WithFields(logrus.Fields{
		"store":         config.Store,
		"slot_interval": config.SlotInterval,
		"program":       base58.Encode(endpoint.PROGRAM_ID),
	}).Info("endpoint mock initialized")

	return nil
}

func (a *App) newStore(ctx context.Context, config *Config) (account.Store, error) {
	if config.Store == StoreMemory {
		return memory_account_store.New(), nil
	}

	var db *sql.DB
	var err error
	if config.UseAwsIam {
		awsConfig, err := external.LoadDefaultAWSConfig()
		if err != nil {
			return nil, errors.Wrap(err, "error loading aws config")
		}

		db, err = pg.NewWithAwsIam(ctx, &config.Postgres, awsConfig)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = newPostgresWithCredentials(ctx, &config.Postgres)
		if err != nil {
			return nil, err
		}
	}

	a.db = db
	return postgres_account_store.New(db), nil
}

// RegisterWithGRPC implements app.App.RegisterWithGRPC. The runner installs
// the health service, which is the only gRPC surface.
func (a *App) RegisterWithGRPC(_ *grpc.Server) {
}

// RegisterWithHTTP implements app.App.RegisterWithHTTP
func (a *App) RegisterWithHTTP(mux *http.ServeMux) {
	mux.Handle("/", a.rpc)
}

// ShutdownChan implements app.App.ShutdownChan
func (a *App) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
		a.closeShutdownCh()
		a.closeDB()
	})
}

func (a *App) closeDB() {
	if a.db == nil {
		return
	}

	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
	a.db = nil
}

func (a *App) closeShutdownCh() {
	a.closeOnce.Do(func() {
		close(a.shutdownCh)
	})
}
