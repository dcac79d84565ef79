package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"heliex-studio/api/pkg/config"
	"heliex-studio/api/services/workflow"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "heliex",
		Short:         "Agent-builder workflow service for Heliex Studio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: heliex.yaml in ., ./config or $HOME/.heliex)")

	cmd.AddCommand(newServeCmd(opts), newRunCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// seedBlueprint returns the configured blueprint file, or the built-in seed graph.
func seedBlueprint(cfg *config.Config) (*workflow.Blueprint, error) {
	if cfg.Blueprint.File == "" {
		return workflow.DefaultBlueprint(), nil
	}
	return workflow.LoadBlueprintFile(cfg.Blueprint.File)
}

func newEngine(cfg *config.Config, client workflow.ModelClient, logger *slog.Logger, opts ...workflow.EngineOption) (*workflow.Engine, error) {
	traversal, err := workflow.ParseTraversal(cfg.Engine.Traversal)
	if err != nil {
		return nil, err
	}

	base := []workflow.EngineOption{
		workflow.WithLogger(logger),
		workflow.WithRunLog(workflow.NewRunLog(cfg.Engine.LogSize)),
		workflow.WithTraversal(traversal),
		workflow.WithNodeDelay(cfg.Engine.NodeDelay),
	}
	return workflow.NewEngine(workflow.NewRegistry(client), append(base, opts...)...), nil
}
