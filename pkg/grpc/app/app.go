package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/code-payments/endpoint-mock/pkg/grpc/metrics"
	metrics_util "github.com/code-payments/endpoint-mock/pkg/metrics"
	"github.com/code-payments/endpoint-mock/pkg/osutil"
)

// App is a long lived application that services network requests over HTTP
// and gRPC.
//
// The lifecycle of the App is tied to the process. The app gets initialized
// before the servers run, and gets stopped after the servers have stopped
// serving.
type App interface {
	// Init initializes the application in a blocking fashion. When Init returns, it
	// is expected that the application is ready to start receiving requests (provided
	// there are gRPC handlers installed).
	//
	// todo: I'm not very happy with passing the New Relic app here. It's a temporary
	//       solution until we have something better in place.
	Init(config Config, metricsProvider *newrelic.Application) error

	// RegisterWithGRPC provides a mechanism for the application to register gRPC services
	// with the gRPC server.
	RegisterWithGRPC(server *grpc.Server)

	// RegisterWithHTTP provides a mechanism for the application to install
	// handlers on the HTTP server.
	RegisterWithHTTP(mux *http.ServeMux)

	// ShutdownChan returns a channel that is closed when the application is shutdown.
	//
	// If the channel is closed, the servers will initiate a shutdown if they have
	// not already done so.
	ShutdownChan() <-chan struct{}

	// Stop stops the service, allowing for it to clean up any resources. When Stop()
	// returns, the process exits.
	//
	// Stop should be idempotent.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

func Run(app App) error {
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "grpc/app")

	config, err := loadConfig()
	if err != nil {
		logger.WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	// todo: Better abstraction so we're not directly tied to NR
	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		nr, err := newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logrus.WithError(err).Error("error connecting to new relic")
			os.Exit(1)
		}

		metricsProvider = nr
	}

	configureLogger(config, metricsProvider)

	// We don't want to expose pprof/expvar publically, so we reset the default
	// http ServeMux, which will have those installed due to the init() function
	// in those packages. We expect clients to set up their own HTTP handlers in
	// the Init() func, which is called after this, so this is ok.
	http.DefaultServeMux = http.NewServeMux()

	debugHTTPMux := http.NewServeMux()
	if config.EnableExpvar {
		debugHTTPMux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		debugHTTPMux.HandleFunc("/debug/pprof/", pprof.Index)
		debugHTTPMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		debugHTTPMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		debugHTTPMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		debugHTTPMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if config.EnableExpvar || config.EnablePprof {
		go func() {
			for {
				if err := http.ListenAndServe(config.DebugListenAddress, debugHTTPMux); err != nil {
					logger.WithError(err).Warn("Debug HTTP server failed. Retrying in 5s...")
				}
				time.Sleep(5 * time.Second)
			}
		}()
	}

	var ballast []byte
	if config.EnableBallast {
		totalMemory := osutil.GetTotalMemory()
		ballastCapacity := config.BallastCapacity
		if ballastCapacity > 0.5 {
			ballastCapacity = 0.5
		}
		ballastSize := uint64(ballastCapacity * float32(totalMemory))
		ballast = make([]byte, ballastSize)
	}

	memoryLeakShutdownCh := make(chan struct{})
	if config.EnableMemoryLeakCron {
		cronJob := cron.New(cron.WithLocation(time.Local))
		_, err = cronJob.AddFunc(config.MemoryLeakCronSchedule, func() {
			close(memoryLeakShutdownCh)
		})
		if err != nil {
			logger.WithError(err).Error("failed to initialize memory leak cron")
			os.Exit(1)
		}
		cronJob.Start()
	}

	var secureLis, insecureLis, httpLis net.Listener
	var transportCreds credentials.TransportCredentials
	var tlsCert *tls.Certificate

	insecureLis, err = net.Listen("tcp", config.InsecureListenAddress)
	if err != nil {
		logger.WithError(err).Errorf("failed to listen on %s", config.InsecureListenAddress)
		os.Exit(1)
	}

	if config.TLSCertificate != "" {
		if config.TLSKey == "" {
			logger.Error("tls key must be provided if certificate is specified")
			os.Exit(1)
		}

		certBytes, err := LoadFile(config.TLSCertificate)
		if err != nil {
			logger.WithError(err).Error("failed to load tls certificate")
			os.Exit(1)
		}

		keyBytes, err := LoadFile(config.TLSKey)
		if err != nil {
			logger.WithError(err).Error("failed to load tls key")
			os.Exit(1)
		}

		cert, err := tls.X509KeyPair(certBytes, keyBytes)
		if err != nil {
			logger.WithError(err).Error("invalid certificate/private key")
			os.Exit(1)
		}

		tlsCert = &cert
		transportCreds = credentials.NewServerTLSFromCert(&cert)
		secureLis, err = net.Listen("tcp", config.ListenAddress)
		if err != nil {
			logger.WithError(err).Errorf("failed to listen on %s", config.ListenAddress)
			os.Exit(1)
		}
	}

	httpLis, err = net.Listen("tcp", config.HTTPListenAddress)
	if err != nil {
		logger.WithError(err).Errorf("failed to listen on %s", config.HTTPListenAddress)
		os.Exit(1)
	}

	// Metrics interceptor should be near the top of the chain, so we can
	// capture as many calls as possible. Recovery comes first so a panic
	// is still reported as an Internal status.
	unaryServerInterceptors := []grpc.UnaryServerInterceptor{
		grpc_recovery.UnaryServerInterceptor(),
		metrics.CustomNewRelicUnaryServerInterceptor(metricsProvider),
	}
	streamServerInterceptors := []grpc.StreamServerInterceptor{
		grpc_recovery.StreamServerInterceptor(),
		metrics.CustomNewRelicStreamServerInterceptor(metricsProvider),
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		logger.WithError(err).Error("failed to initialize application")
		os.Exit(1)
	}

	secureServ := grpc.NewServer(
		grpc.Creds(transportCreds),
		grpc_middleware.WithUnaryServerChain(unaryServerInterceptors...),
		grpc_middleware.WithStreamServerChain(streamServerInterceptors...),
	)
	insecureServ := grpc.NewServer(
		grpc_middleware.WithUnaryServerChain(unaryServerInterceptors...),
		grpc_middleware.WithStreamServerChain(streamServerInterceptors...),
	)
	app.RegisterWithGRPC(secureServ)
	app.RegisterWithGRPC(insecureServ)

	healthgrpc.RegisterHealthServer(secureServ, health.NewServer())
	healthgrpc.RegisterHealthServer(insecureServ, health.NewServer())

	httpMux := http.NewServeMux()
	app.RegisterWithHTTP(httpMux)
	httpServ := &http.Server{
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if transportCreds != nil {
		httpServ.TLSConfig = &tls.Config{Certificates: []tls.Certificate{*tlsCert}}
	}

	secureServShutdownCh := make(chan struct{})
	insecureServShutdownCh := make(chan struct{})
	httpServShutdownCh := make(chan struct{})

	if secureLis != nil {
		go func() {
			if err := secureServ.Serve(secureLis); err != nil {
				logger.WithError(err).Error("grpc serve stopped")
			} else {
				logger.Info("grpc server stopped")
			}

			close(secureServShutdownCh)
		}()
	}

	go func() {
		if err := insecureServ.Serve(insecureLis); err != nil {
			logger.WithError(err).Error("grpc serve stopped")
		} else {
			logger.Info("grpc server stopped")
		}

		close(insecureServShutdownCh)
	}()

	go func() {
		var err error
		if httpServ.TLSConfig != nil {
			err = httpServ.ServeTLS(httpLis, "", "")
		} else {
			err = httpServ.Serve(httpLis)
		}

		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http serve stopped")
		} else {
			logger.Info("http server stopped")
		}

		close(httpServShutdownCh)
	}()

	// Wait for the following shutdown conditions:
	//    1. OS Signal telling us to shutdown
	//    2. A gRPC or HTTP server has shutdown (for whatever reason)
	//    3. The application has shutdown (for whatever reason)
	select {
	case <-osSigCh:
		logger.Info("interrupt received, shutting down")
	case <-secureServShutdownCh:
		logger.Info("secure grpc server shutdown")
	case <-insecureServShutdownCh:
		logger.Info("insecure grpc server shutdown")
	case <-httpServShutdownCh:
		logger.Info("http server shutdown")
	case <-memoryLeakShutdownCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	shutdownCh := make(chan struct{})
	go func() {
		// The servers and the application should have idempotent shutdown
		// methods, so it's fine call them all, regardless of the shutdown
		// condition.
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
		defer cancel()
		if err := httpServ.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("failed to gracefully stop http server")
		}

		secureServ.GracefulStop()
		insecureServ.GracefulStop()
		app.Stop()

		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		// Ensure the ballast is used to avoid any possible compiler optimizations
		// around unused variable.
		if len(ballast) > 0 {
			ballast[0] = 1
		}

		return nil
	case <-time.After(config.ShutdownGracePeriod):
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics_util.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
