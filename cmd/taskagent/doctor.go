package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"taskagent/internal/config"
	"taskagent/internal/provider"
	"taskagent/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on config, store, engines and ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			fmt.Printf("taskagent doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed, warned, failed := 0, 0, 0

			// 1. Config file
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, _, err := config.LoadOrDefault(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d warnings, %d failed\n", passed, warned, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			// 3. Store opens, migrates and answers
			if err := checkStore(ctx, cfg.Store.Path); err != nil {
				printFail("Store", err.Error())
				failed++
			} else {
				printPass("Store", cfg.Store.Path)
				passed++
			}

			// 4. Providers
			factory := provider.NewFactory(cfg, logger)
			enabled := 0
			for name, pc := range cfg.Providers {
				if !pc.Enabled {
					continue
				}
				enabled++
				e, err := factory.Get(name)
				if err != nil {
					printFail("Provider: "+name, err.Error())
					failed++
					continue
				}
				if err := e.Healthy(ctx); err != nil {
					printWarn("Provider: "+name, err.Error())
					warned++
				} else {
					printPass("Provider: "+name, e.Model())
					passed++
				}
			}
			if enabled == 0 {
				printFail("Providers", "no providers enabled")
				failed++
			}

			// 5. API port
			if err := checkPort(cfg.API.Addr()); err != nil {
				printWarn("API port", fmt.Sprintf("%s may be in use: %v", cfg.API.Addr(), err))
				warned++
			} else {
				printPass("API port", cfg.API.Addr()+" available")
				passed++
			}

			// 6. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func checkStore(ctx context.Context, path string) error {
	db, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := db.ListProducts(ctx); err != nil {
		return fmt.Errorf("cannot read catalog: %w", err)
	}
	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
