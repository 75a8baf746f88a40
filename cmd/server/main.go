/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the microcredit engine server. Handles
  configuration, dependency injection and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment
  2. Initialize SQLite store
  3. Construct the ledger bridge (simulated, wrapped with
     timeout/pacing/metrics) and the lifecycle engine
  4. Start the reconciliation sweep and HTTP server
  5. Shut down gracefully on SIGINT/SIGTERM

CONFIGURATION (environment):
  SERVER_PORT            HTTP port (default 8080)
  DB_PATH                SQLite path (default microcredit.db, ":memory:" works)
  BRIDGE_TIMEOUT_SECONDS Per-call ledger timeout (default 10)
  BRIDGE_RPS             Ledger call pacing (default 5)
  BRIDGE_SENDER_ADDRESS  Ledger credential address
  BRIDGE_SENDER_SECRET   Ledger credential secret
  SWEEP_INTERVAL_MINUTES Reconciliation check interval (default 60)
  SWEEP_GRACE_MINUTES    Unbridged grace period (default 10)

NOTE:
  This binary wires the simulated ledger. The production ledger client
  implements bridge.Bridge and is deployed separately.

SEE ALSO:
  - api/server.go: Router configuration
  - engine/engine.go: Lifecycle engine
  - store/sqlite/sqlite.go: Document store
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/warp/microcredit-engine/api"
	"github.com/warp/microcredit-engine/bridge"
	"github.com/warp/microcredit-engine/credit"
	"github.com/warp/microcredit-engine/engine"
	"github.com/warp/microcredit-engine/store/sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port         int `env:"PORT,default=8080"`
		ReadTimeout  int `env:"READ_TIMEOUT,default=15"`  // seconds
		WriteTimeout int `env:"WRITE_TIMEOUT,default=15"` // seconds
	} `env:",prefix=SERVER_"`

	DB struct {
		Path string `env:"PATH,default=microcredit.db"`
	} `env:",prefix=DB_"`

	Bridge struct {
		TimeoutSeconds int     `env:"TIMEOUT_SECONDS,default=10"`
		RPS            float64 `env:"RPS,default=5"`
		SenderAddress  string  `env:"SENDER_ADDRESS"`
		SenderSecret   string  `env:"SENDER_SECRET"`
	} `env:",prefix=BRIDGE_"`

	Sweep struct {
		IntervalMinutes int `env:"INTERVAL_MINUTES,default=60"`
		GraceMinutes    int `env:"GRACE_MINUTES,default=10"`
	} `env:",prefix=SWEEP_"`
}

// memberAddresses derives ledger addresses for the dev wiring. The
// production address book reads member profiles.
type memberAddresses struct{}

func (memberAddresses) AddressOf(_ context.Context, member credit.MemberID) (string, error) {
	return "ledger:" + string(member), nil
}

// defaultRanker is the stock badge tier mapping.
func defaultRanker(stats engine.BadgeStats) string {
	switch {
	case stats.Amount.GreaterThan(credit.NewTokens(5000)):
		return "gold"
	case stats.Amount.GreaterThan(credit.NewTokens(1000)):
		return "silver"
	default:
		return "bronze"
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Document store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Ledger bridge: simulated ledger behind the operational decorator
	ledger := bridge.NewInstrumented(
		bridge.NewSim(),
		time.Duration(cfg.Bridge.TimeoutSeconds)*time.Second,
		cfg.Bridge.RPS,
		logger.Named("bridge"),
	)

	eng := &engine.Engine{
		Campaigns: store,
		Supports:  store,
		Log:       store,
		Bridge:    ledger,
		Sender: bridge.Sender{
			Address: cfg.Bridge.SenderAddress,
			Secret:  cfg.Bridge.SenderSecret,
		},
		Addresses: memberAddresses{},
		Ranker:    defaultRanker,
		Logger:    logger.Named("engine"),
	}

	// Reconciliation sweep: detects supports stuck without a contract index
	sweeper := engine.NewSweeper(store, logger.Named("reconcile"))
	sweeper.CheckInterval = time.Duration(cfg.Sweep.IntervalMinutes) * time.Minute
	sweeper.GracePeriod = time.Duration(cfg.Sweep.GraceMinutes) * time.Minute
	sweeper.Start()
	defer sweeper.Stop()

	router := api.NewRouter(api.NewHandler(eng, logger.Named("api")))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
