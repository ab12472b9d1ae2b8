package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fylend/config"
	"fylend/native/collateral"
	"fylend/native/oracle"
	"fylend/observability/logging"
	"fylend/rpc"
	"fylend/storage"
)

const (
	envEnvironment = "FYLEND_ENV"
	envAuthToken   = "FYLEND_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envEnvironment))
	logger := logging.Setup("fylendd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	state := collateral.NewKVState(db)
	if err := initGenesis(state, cfg); err != nil {
		logger.Error("Failed to initialise genesis state", slog.Any("error", err))
		os.Exit(1)
	}

	engine := collateral.NewEngine()
	engine.SetState(state)
	engine.SetPriceSource(oracle.NewHTTPOracle(nil, cfg.Oracle.Endpoint, cfg.Oracle.APIKey))

	authToken := strings.TrimSpace(os.Getenv(envAuthToken))
	if authToken == "" {
		authToken = cfg.LiquidatorAPIKey
	}
	server := rpc.NewServer(engine, state, logger, rpc.ServerConfig{
		AuthToken:       authToken,
		RateLimit:       cfg.RPCRateLimit,
		MaxRequestBytes: cfg.MaxRequestBytes,
	})

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Handle("/rpc", server)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           router,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeout) * time.Second,
	}

	logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.RPCAddress), slog.String("backend", cfg.DataBackend))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendLevelDB:
		return storage.NewLevelDB(cfg.DataDir)
	case config.BackendBoltDB:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "fylend.db"))
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
	}
}

// initGenesis writes the module params on first boot. Existing state wins:
// config edits after genesis do not rewrite the immutable params.
func initGenesis(state *collateral.KVState, cfg *config.Config) error {
	if _, err := state.Params(); err == nil {
		return nil
	} else if !errors.Is(err, collateral.ErrNotFound) {
		return err
	}
	params, err := cfg.Collateral.Params()
	if err != nil {
		return err
	}
	return state.InitGenesis(params)
}
