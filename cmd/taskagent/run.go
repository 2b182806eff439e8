package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskagent/internal/domain"
	"taskagent/internal/tool"
)

func runCmd() *cobra.Command {
	var (
		pairs       []string
		contextJSON string
	)
	cmd := &cobra.Command{
		Use:   `run "<task>"`,
		Short: "Process a single task and print the response as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskCtx, err := parseTaskContext(pairs, contextJSON)
			if err != nil {
				return err
			}
			in := domain.TaskInput{Task: strings.Join(args, " "), Context: taskCtx}
			if err := in.Validate(); err != nil {
				return err
			}

			cfg, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.taskTimeout())
			defer cancel()

			resp := a.controller.ProcessTask(ctx, in)
			return printJSON(resp)
		},
	}
	cmd.Flags().StringArrayVar(&pairs, "context", nil, "context entry as key=value (repeatable)")
	cmd.Flags().StringVar(&contextJSON, "context-json", "", "context as a JSON object")
	return cmd
}

// parseTaskContext merges --context-json with --context key=value pairs;
// pairs win. Values that parse as JSON scalars keep their type.
func parseTaskContext(pairs []string, raw string) (map[string]any, error) {
	out := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("--context-json must be a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		key, val, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --context %q, want key=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			v = val
		}
		out[strings.TrimSpace(key)] = v
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools and their argument schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Metadata only: the tools are never executed here.
			reg := tool.NewDefaultRegistry(tool.Backends{}, logger)
			return printJSON(reg.ListMetadata())
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
