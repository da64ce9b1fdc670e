package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ilpswitch/accounts"
	"ilpswitch/balance"
	"ilpswitch/config"
	"ilpswitch/connector"
	"ilpswitch/ilp"
	"ilpswitch/observability/logging"
	obsotel "ilpswitch/observability/otel"
	"ilpswitch/routing"
	"ilpswitch/settlement"
	"ilpswitch/storage"
)

const (
	envName         = "ILPSWITCH_ENV"
	otelEndpointEnv = "ILPSWITCH_OTEL_ENDPOINT"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("ilpswitchd", env)
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.Setup("ilpswitchd", env, logging.Options{FilePath: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(os.Getenv(otelEndpointEnv)); endpoint != "" {
		shutdown, err := obsotel.Init(ctx, obsotel.Config{
			ServiceName: "ilpswitchd",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    true,
			Metrics:     true,
		})
		if err != nil {
			logger.Error("telemetry init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	operator := ilp.MustAddress(cfg.OperatorAddress)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.DataDir), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	provider := accounts.NewStaticProvider(cfg.AccountSettings())

	static := routing.NewTable()
	if cfg.StaticRoutesFile != "" {
		static, err = routing.LoadStaticRoutes(cfg.StaticRoutesFile)
		if err != nil {
			logger.Error("failed to load static routes", slog.Any("error", err))
			os.Exit(1)
		}
	}
	tableOpts := []routing.Option{}
	if cfg.CatchAllPrefix != "" {
		tableOpts = append(tableOpts, routing.WithCatchAll(ilp.Address(cfg.CatchAllPrefix)))
	}
	dynamic := routing.NewTable(tableOpts...)
	updateLog := routing.NewUpdateLog(dynamic)

	router := routing.NewRouter(operator, static, dynamic, provider, connector.PingAccountID)
	tracker := balance.NewLevelStore(db)
	links := connector.NewLinkRegistry()

	sw := connector.New(connector.Config{
		Operator:   operator,
		Router:     router,
		Links:      links,
		Accounts:   provider,
		Tracker:    tracker,
		Settlement: settlement.NewMonitor(settlement.NoopEngine{}, logger),
		Logger:     logger,
	})
	// Local diagnostics account for the ops ping endpoint. Internal so it may
	// address operator-only namespaces.
	provider.Upsert(accounts.Settings{AccountID: "ops-diagnostics", Internal: true})

	ops := chi.NewRouter()
	ops.Use(chimiddleware.Recoverer)
	ops.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	ops.Handle("/metrics", promhttp.Handler())
	ops.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		destination := operator
		if raw := r.URL.Query().Get("dest"); raw != "" {
			parsed, err := ilp.ParseAddress(raw)
			if err != nil {
				http.Error(w, "invalid destination address", http.StatusBadRequest)
				return
			}
			destination = parsed
		}
		reply := sw.Route(r.Context(), "ops-diagnostics", &ilp.Prepare{
			Destination:        destination,
			ExecutionCondition: ilp.PingFulfillment.Condition(),
			ExpiresAt:          time.Now().Add(30 * time.Second),
		})
		w.Header().Set("Content-Type", "application/json")
		switch reply := reply.(type) {
		case *ilp.Fulfill:
			_ = json.NewEncoder(w).Encode(map[string]string{"outcome": "fulfill"})
		case *ilp.Reject:
			_ = json.NewEncoder(w).Encode(map[string]string{
				"outcome": "reject",
				"code":    reply.Code.String(),
				"message": reply.Message,
			})
		}
	})
	ops.Get("/routes", func(w http.ResponseWriter, _ *http.Request) {
		type routeInfo struct {
			Prefix  string `json:"prefix"`
			NextHop string `json:"nextHop"`
		}
		out := struct {
			Epoch  uint64      `json:"epoch"`
			Routes []routeInfo `json:"routes"`
		}{Epoch: updateLog.Epoch()}
		dynamic.ForEach(func(prefix ilp.Address, route *routing.Route) {
			out.Routes = append(out.Routes, routeInfo{Prefix: prefix.String(), NextHop: route.NextHop})
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})

	server := &http.Server{
		Addr:              cfg.OpsListenAddress,
		Handler:           ops,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", slog.String("addr", cfg.OpsListenAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", slog.Any("error", err))
			stop()
		}
	}()

	logger.Info("switch ready",
		slog.String("operator", operator.String()),
		slog.Int("accounts", len(cfg.Accounts)),
		slog.Int("static_routes", static.Len()))

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown failed", slog.Any("error", err))
	}
}
