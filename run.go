package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"heliex-studio/api/pkg/config"
	"heliex-studio/api/pkg/gemini"
	"heliex-studio/api/services/workflow"
)

type runOptions struct {
	blueprint string
	prompt    string
	verbose   bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workflow blueprint once and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return err
			}
			if opts.blueprint != "" {
				cfg.Blueprint.File = opts.blueprint
			}

			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			client, err := gemini.New(cmd.Context(), cfg.Gemini.APIKey, cfg.Gemini.Model)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cmd.OutOrStdout(), cfg, client, logger, opts.prompt)
		},
	}
	cmd.Flags().StringVarP(&opts.blueprint, "blueprint", "b", "", "YAML blueprint to run (default: built-in seed graph)")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "override the trigger prompt")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func runOnce(ctx context.Context, out io.Writer, cfg *config.Config, client workflow.ModelClient, logger *slog.Logger, prompt string) error {
	seed, err := seedBlueprint(cfg)
	if err != nil {
		return err
	}
	store := workflow.NewStore()
	store.Load(seed)

	if prompt != "" {
		for _, n := range store.Snapshot().Nodes {
			if n.Type == workflow.NodeTrigger {
				store.UpdateNodeConfig(n.ID, "prompt", prompt)
				break
			}
		}
	}

	engine, err := newEngine(cfg, client, logger,
		workflow.WithQuotaHandler(func(context.Context, *workflow.QuotaExceededError) {
			fmt.Fprintln(out, "Shared API quota reached. Set GEMINI_API_KEY to a personal key for higher limits.")
		}),
	)
	if err != nil {
		return err
	}

	results, err := engine.Run(ctx, store.Snapshot(), store)
	if results != nil {
		printResults(out, results, engine.RunLog().Lines())
	}
	if err != nil {
		return err
	}
	if results.Status != workflow.RunSynchronized {
		return fmt.Errorf("workflow %s", results.Status)
	}
	return nil
}

func printResults(out io.Writer, results *workflow.ExecutionResults, logs []string) {
	for _, line := range logs {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
	for _, step := range results.Steps {
		fmt.Fprintf(out, "%d. %s (%s) [%s] %dms\n", step.StepNumber, step.Label, step.NodeType, step.Status, step.Duration)
		if step.Error != "" {
			fmt.Fprintf(out, "   error: %s\n", step.Error)
			continue
		}
		fmt.Fprintf(out, "   %s\n", step.Output)
		for _, src := range step.Sources {
			fmt.Fprintf(out, "   - %s <%s>\n", src.Title, src.URI)
		}
	}
}
