package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"taskagent/internal/provider"
	"taskagent/internal/store"
	"taskagent/internal/tool"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured engine, tools, store and notification backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			report := map[string]any{"config": resolveConfigPath()}

			factory := provider.NewFactory(cfg, logger)
			engineInfo := map[string]any{"healthy": false}
			if e, err := factory.Engine(); err != nil {
				engineInfo["error"] = err.Error()
			} else {
				engineInfo["provider"] = e.Name()
				engineInfo["model"] = e.Model()
				if err := e.Healthy(ctx); err != nil {
					engineInfo["error"] = err.Error()
				} else {
					engineInfo["healthy"] = true
				}
			}
			if e := factory.HealthyEngine(ctx); e != nil {
				engineInfo["first_healthy"] = e.Name()
			}
			report["engine"] = engineInfo

			storeInfo := map[string]any{"path": cfg.Store.Path}
			if db, err := store.NewSQLiteStore(cfg.Store.Path, logger); err != nil {
				storeInfo["error"] = err.Error()
			} else {
				defer db.Close()
				storeInfo["ok"] = db.Ping(ctx) == nil
				if pending, err := db.PendingEscalations(ctx, 100); err == nil {
					storeInfo["pending_escalations"] = len(pending)
				}
				if recent, err := db.RecentNotifications(ctx, 5); err == nil {
					storeInfo["recent_notifications"] = recent
				}
			}
			report["store"] = storeInfo

			report["notify"] = newNotifier(cfg.Notify, nil, logger).Backends()
			report["tools"] = tool.NewDefaultRegistry(tool.Backends{}, logger).Names()
			report["agent"] = map[string]any{
				"max_iterations":      cfg.Agent.MaxIterations,
				"parse_attempts":      cfg.Agent.ParseAttempts,
				"missing_tool_policy": cfg.Agent.MissingToolPolicy,
			}

			return printJSON(report)
		},
	}
}
