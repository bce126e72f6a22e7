package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regenie/internal/agent"
	"regenie/internal/browser"
	"regenie/internal/channel"
	"regenie/internal/config"
	"regenie/internal/metrics"
	"regenie/internal/personality"
	"regenie/internal/provider"
	"regenie/internal/store"
	"regenie/internal/tool"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack bot",
		Long:  "Connects to Slack over the Events API webhook or Socket Mode and answers events until interrupted.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := checkServeSecrets(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	personalities, err := personality.Load(cfg.Personalities.File)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var ledger *store.SQLiteStore
	if cfg.Store.Enabled {
		ledger, err = store.Open(cfg.Store.DBPath, logger)
		if err != nil {
			return fmt.Errorf("event store: %w", err)
		}
		defer ledger.Close()
	}

	toolOpts := tool.Options{Logger: logger.With("component", "tools")}
	if cfg.Tools.Contents.Enabled && cfg.Tools.Contents.Fetcher == "browser" {
		toolOpts.Browser = browser.NewBridge(browser.BridgeConfig{
			ProfileDir: cfg.Tools.Contents.BrowserProfileDir,
			Headless:   true,
			Logger:     logger.With("component", "browser"),
		})
	}
	tools := tool.NewBuiltinRegistry(cfg.Tools, toolOpts)

	prov, err := provider.FromConfig(cfg.Model, logger)
	if err != nil {
		return err
	}

	slackClient := channel.NewSlack(channel.SlackConfig{
		BotToken:      cfg.Slack.BotToken,
		AppToken:      cfg.Slack.AppToken,
		Personalities: personalities,
		Logger:        logger.With("component", "slack"),
	})
	if err := slackClient.Connect(ctx); err != nil {
		return err
	}

	generator := agent.NewGenerator(agent.GeneratorConfig{
		Provider:      prov,
		Tools:         tools,
		Personalities: personalities,
		Metrics:       m,
		Logger:        logger.With("component", "generator"),
		Model:         cfg.Model.Model,
		Temperature:   cfg.Model.Temperature,
		MaxTokens:     cfg.Model.MaxTokens,
		MaxSteps:      cfg.Model.MaxSteps,
		MaxAttempts:   cfg.Model.MaxAttempts,
		RetryDelay:    time.Duration(cfg.Model.RetryDelayMs) * time.Millisecond,
		RatePerMinute: cfg.Model.RatePerMinute,
	})
	handler := agent.NewHandler(agent.HandlerConfig{
		Slack:     slackClient,
		Generator: generator,
		Logger:    logger.With("component", "handler"),
	})

	background := agent.NewBackgroundExecutor(logger.With("component", "background"))
	dispatcherCfg := agent.DispatcherConfig{
		Handler:    handler,
		Background: background,
		Metrics:    m,
		Async:      cfg.Slack.Async,
		Logger:     logger.With("component", "dispatcher"),
	}
	if ledger != nil {
		dispatcherCfg.Ledger = ledger
	}
	dispatcher := agent.NewDispatcher(dispatcherCfg)
	m.RegisterActiveTasks(func() int { return len(background.ListActive()) })

	janitorCfg := agent.JanitorConfig{
		Retention:  time.Duration(cfg.Store.RetentionHours) * time.Hour,
		Background: background,
		Logger:     logger.With("component", "janitor"),
	}
	if ledger != nil {
		janitorCfg.Ledger = ledger
	}
	go agent.NewJanitor(janitorCfg).Start(ctx)

	logger.Info("regenie starting",
		"version", version,
		"mode", cfg.Slack.Mode,
		"model", cfg.Model.Model,
		"async", cfg.Slack.Async,
		"store", cfg.Store.Enabled,
	)

	var runErr error
	switch cfg.Slack.Mode {
	case "socket":
		socket := channel.NewSocket(channel.SocketConfig{
			Slack:   slackClient,
			Handler: dispatcher,
			Logger:  logger.With("component", "socket"),
		})
		runErr = socket.Start(ctx)
	default:
		routes := map[string]http.Handler{
			"/healthz": healthHandler(background),
		}
		if m != nil {
			routes[cfg.Metrics.Path] = m.Handler()
		}
		server := channel.NewServer(channel.ServerConfig{
			Addr:          cfg.Slack.ListenAddr,
			EventsPath:    cfg.Slack.EventsPath,
			SigningSecret: cfg.Slack.SigningSecret,
			BotUserID:     slackClient.BotUserID,
			Handler:       dispatcher,
			Routes:        routes,
			Logger:        logger.With("component", "server"),
		})
		runErr = server.Start(ctx)
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}

	logger.Info("shutting down, waiting for in-flight events...", "active", len(background.ListActive()))
	grace := time.Duration(cfg.Slack.ShutdownGraceSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := background.Wait(shutdownCtx); err != nil {
		logger.Warn("shutdown timed out", "err", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// checkServeSecrets fails fast on credentials the selected mode needs.
func checkServeSecrets(cfg *config.Config) error {
	if cfg.Slack.BotToken == "" {
		return fmt.Errorf("slack.botToken (or SLACK_BOT_TOKEN) is required")
	}
	switch cfg.Slack.Mode {
	case "socket":
		if cfg.Slack.AppToken == "" {
			return fmt.Errorf("slack.appToken (or SLACK_APP_TOKEN) is required in socket mode")
		}
	default:
		if cfg.Slack.SigningSecret == "" {
			return fmt.Errorf("slack.signingSecret (or SLACK_SIGNING_SECRET) is required in http mode")
		}
	}
	return nil
}

type healthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	ActiveTasks []agent.BackgroundTask `json:"active_tasks"`
}

func healthHandler(background *agent.BackgroundExecutor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		active := background.ListActive()
		if active == nil {
			active = []agent.BackgroundTask{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthStatus{Status: "ok", Version: version, ActiveTasks: active})
	})
}
