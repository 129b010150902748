package cmd

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/config"
	"github.com/nextlevelbuilder/turnero/internal/crm"
	"github.com/nextlevelbuilder/turnero/internal/httpapi"
	"github.com/nextlevelbuilder/turnero/internal/messaging"
	"github.com/nextlevelbuilder/turnero/internal/orchestrator"
	"github.com/nextlevelbuilder/turnero/internal/scheduling"
	"github.com/nextlevelbuilder/turnero/internal/store"
	storebadger "github.com/nextlevelbuilder/turnero/internal/store/badger"
	"github.com/nextlevelbuilder/turnero/internal/telemetry"
	"github.com/nextlevelbuilder/turnero/internal/tools"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open store", "dir", cfg.Store.Dir, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	stores := db.Stores()

	botRepo := bots.WithTokenOverrides(buildBotRepository(cfg, db), cfg.CRM.TokenOverrides)

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		slog.Warn("invalid timezone, using UTC", "timezone", cfg.Schedule.Timezone, "error", err)
		loc = time.UTC
	}

	crmClient := crm.NewClient(cfg.CRM.BaseURL, time.Duration(cfg.CRM.TimeoutSeconds)*time.Second)
	engine := scheduling.NewEngine(crmClient, cfg.Schedule.SlotMinutes)
	twilio := messaging.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)

	registry := tools.NewRegistry()
	registry.Register(tools.NewVendorsTool(crmClient, cfg.CRM.Token))
	registry.Register(tools.NewAvailabilityTool(crmClient, engine, loc, cfg.CRM.Token))
	registry.Register(tools.NewBookingTool(engine, loc, cfg.CRM.Token))
	registry.Register(tools.NewExtractTool(crmClient, stores.Leads, twilio, cfg.CRM.Token))
	router := tools.NewRouter(registry, crmClient, cfg.CRM.Token)

	gateway := assistant.NewOpenAIGateway(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	orch := orchestrator.New(gateway, stores, router, orchestrator.Config{
		PollInterval:      cfg.PollInterval(),
		MaxPollIterations: cfg.Runs.MaxPollIterations,
		BusyProbeTimeout:  cfg.BusyProbeTimeout(),
	})

	server := httpapi.NewServer(cfg.Addr(), orch, botRepo, cfg.Gateway.AdminToken)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown failed", "error", err)
	}
}

// openStore opens the embedded database with TTLs taken from config.
func openStore(cfg *config.Config) (*storebadger.DB, error) {
	return storebadger.Open(storebadger.Options{
		Dir:        cfg.Store.Dir,
		InMemory:   cfg.Store.InMemory,
		GCInterval: 10 * time.Minute,
	}, store.Config{
		SessionTTL:         time.Duration(cfg.Store.SessionTTLHours) * time.Hour,
		SessionMaxMessages: cfg.Store.SessionMaxMessages,
		ThreadTTL:          time.Duration(cfg.Store.ThreadTTLDays) * 24 * time.Hour,
		LockTTL:            time.Duration(cfg.Store.LockTTLSeconds) * time.Second,
		LeadTTL:            time.Duration(cfg.Store.LeadTTLDays) * 24 * time.Hour,
	})
}

// buildBotRepository returns the Postgres registry fronted by the embedded
// cache when a DSN is configured, otherwise the embedded registry alone.
func buildBotRepository(cfg *config.Config, db *storebadger.DB) bots.Repository {
	local := db.Bots()
	if cfg.Database.DSN == "" {
		slog.Info("using embedded bot registry")
		return local
	}

	pool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		slog.Error("invalid database dsn, falling back to embedded registry", "error", err)
		return local
	}
	pool.SetMaxOpenConns(10)
	pool.SetConnMaxIdleTime(5 * time.Minute)
	slog.Info("using postgres bot registry with local cache")
	return bots.NewCachedRepository(bots.NewPGRepository(pool), local)
}
