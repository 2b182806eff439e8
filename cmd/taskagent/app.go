package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskagent/internal/agent"
	"taskagent/internal/api"
	"taskagent/internal/config"
	"taskagent/internal/domain"
	"taskagent/internal/metrics"
	"taskagent/internal/notify"
	"taskagent/internal/provider"
	"taskagent/internal/store"
	"taskagent/internal/tool"
)

// app holds the wired components shared by serve and run.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.SQLiteStore
	notifier   *notify.Router
	registry   *tool.Registry
	metrics    *metrics.Collector
	engine     domain.Engine
	controller *agent.Controller
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := store.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.Store.SeedCatalog {
		if err := db.SeedProducts(ctx, tool.DefaultProducts); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}

	engine, err := provider.NewFactory(cfg, logger).Engine()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reasoning engine: %w", err)
	}

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}

	router := newNotifier(cfg.Notify, db, logger)
	registry := tool.NewDefaultRegistry(tool.Backends{Store: db, Notifier: router}, logger)

	reasoner := agent.NewReasoner(agent.ReasonerConfig{
		Engine:      engine,
		Prompt:      agent.NewPromptBuilder(registry, agent.PromptConfig{SystemPromptExtra: cfg.Agent.SystemPromptExtra}),
		Limiter:     agent.NewRateLimiter(cfg.Agent.Burst, float64(cfg.Agent.RatePerMinute)),
		Metrics:     m,
		Logger:      logger,
		MaxAttempts: cfg.Agent.ParseAttempts,
	})
	controller := agent.NewController(agent.ControllerConfig{
		Reasoner:          reasoner,
		Dispatcher:        tool.NewDispatcher(registry, m, logger),
		Metrics:           m,
		Logger:            logger,
		MaxIterations:     cfg.Agent.MaxIterations,
		MissingToolPolicy: cfg.Agent.MissingToolPolicy,
	})

	logger.Info("agent ready",
		"provider", engine.Name(),
		"model", engine.Model(),
		"tools", registry.Len(),
		"max_iterations", controller.MaxIterations(),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      db,
		notifier:   router,
		registry:   registry,
		metrics:    m,
		engine:     engine,
		controller: controller,
	}, nil
}

func newNotifier(nc config.NotifyConfig, outbox notify.Recorder, logger *slog.Logger) *notify.Router {
	router := notify.NewRouter(outbox, logger)
	if nc.Slack.Enabled {
		router.Register("slack", notify.NewSlack(notify.SlackConfig{
			BotToken:       nc.Slack.BotToken,
			DefaultChannel: nc.Slack.DefaultChannel,
		}, logger))
	}
	if nc.Telegram.Enabled {
		router.Register("telegram", notify.NewTelegram(notify.TelegramConfig{
			Token:         nc.Telegram.Token,
			DefaultChatID: nc.Telegram.DefaultChatID,
		}, logger))
	}
	if nc.Discord.Enabled {
		router.Register("discord", notify.NewDiscord(notify.DiscordConfig{
			Token:            nc.Discord.Token,
			DefaultChannelID: nc.Discord.DefaultChannelID,
		}, logger))
	}
	return router
}

func (a *app) server() *api.Server {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Endpoint
	}
	return api.NewServer(api.Config{
		Addr:         a.cfg.API.Addr(),
		CORSOrigins:  a.cfg.API.CORSOrigins,
		ReadTimeout:  time.Duration(a.cfg.API.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.API.WriteTimeoutSeconds) * time.Second,
		TaskTimeout:  a.taskTimeout(),
		MetricsPath:  metricsPath,
		Agent:        a.controller,
		Tools:        a.registry,
		Info: api.AgentInfo{
			Provider:      a.engine.Name(),
			Model:         a.engine.Model(),
			MaxIterations: a.controller.MaxIterations(),
		},
		Metrics: a.metrics,
		Logger:  a.logger,
	})
}

func (a *app) taskTimeout() time.Duration {
	return time.Duration(a.cfg.Agent.TaskTimeoutSeconds) * time.Second
}

func (a *app) Close() error {
	return a.store.Close()
}
