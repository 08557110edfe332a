// Package main provides the lpgctl CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lpgraph/lpgraph/pkg/builder"
	"github.com/lpgraph/lpgraph/pkg/config"
	"github.com/lpgraph/lpgraph/pkg/engine"
	"github.com/lpgraph/lpgraph/pkg/eval"
	"github.com/lpgraph/lpgraph/pkg/graph"
	"github.com/lpgraph/lpgraph/pkg/lpgerr"
	"github.com/lpgraph/lpgraph/pkg/metadata"
	"github.com/lpgraph/lpgraph/pkg/obslog"
)

// Exit codes (spec §6): 0 success, 2 schema-validation failure, 3
// input-not-found, 4 runtime rule failure.
const (
	exitOK            = 0
	exitSchemaInvalid = 2
	exitInputNotFound = 3
	exitRuleFailure   = 4
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lpgctl",
		Short:         "lpgctl builds and transforms labeled property graphs from declarative schemas",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().String("schema", "", "path to the schema document")
	rootCmd.PersistentFlags().String("rules", "", "path to the transformations document")
	rootCmd.PersistentFlags().String("source-base-dir", "", "directory relative entity source paths resolve against")
	rootCmd.PersistentFlags().String("strictness", "", "warn or fail on non-required coercion failures")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, or warn")

	rootCmd.AddCommand(
		newValidateCmd(),
		newBuildCmd(),
		newApplyCmd(),
		newStatsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitFromError(err))
	}
}

func loadConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	cfg := config.LoadFromEnv()
	if v, _ := cmd.Flags().GetString("schema"); v != "" {
		cfg.SchemaPath = v
	}
	if v, _ := cmd.Flags().GetString("rules"); v != "" {
		cfg.RulesPath = v
	}
	if v, _ := cmd.Flags().GetString("source-base-dir"); v != "" {
		cfg.SourceBaseDir = v
	}
	if v, _ := cmd.Flags().GetString("strictness"); v != "" {
		cfg.Strictness = config.Strictness(v)
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, lpgerr.Wrap(lpgerr.SchemaError, "invalid configuration", err)
	}
	return cfg, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the schema, and the transformations document if given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			loader := metadata.NewLoader()
			if _, err := loader.LoadSchema(cfg.SchemaPath); err != nil {
				return err
			}
			if cfg.RulesPath != "" {
				if _, err := loader.LoadTransformations(cfg.RulesPath); err != nil {
					return err
				}
			}
			fmt.Println("schema and transformations are valid")
			return nil
		},
	}
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Materialize the base graph from the schema, without applying rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			g, _, report, err := runBuild(cfg)
			if err != nil {
				return err
			}
			printReport(report)
			stats := g.Stats()
			fmt.Printf("total: %d nodes, %d edges\n", stats.TotalNodes, stats.TotalEdges)
			return nil
		},
	}
}

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Build the base graph, then apply the transformations document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.RulesPath == "" {
				return lpgerr.New(lpgerr.RuleDocumentError, "apply requires --rules")
			}

			g, ev, report, err := runBuild(cfg)
			if err != nil {
				return err
			}
			printReport(report)

			loader := metadata.NewLoader()
			doc, err := loader.LoadTransformations(cfg.RulesPath)
			if err != nil {
				return err
			}

			sink := obslog.NewStdSink()
			eng := engine.New(g, ev, sink)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			results, err := eng.Apply(ctx, doc)
			for _, r := range results {
				if r.Err != nil {
					fmt.Printf("rule %-24s %-20s FAILED: %v\n", r.ID, r.Type, r.Err)
					continue
				}
				fmt.Printf("rule %-24s %-20s %d\n", r.ID, r.Type, r.Count)
			}
			if err != nil {
				return err
			}

			stats := g.Stats()
			fmt.Printf("total: %d nodes, %d edges\n", stats.TotalNodes, stats.TotalEdges)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Build the base graph (and apply rules, if given) and print summary counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			g, ev, report, err := runBuild(cfg)
			if err != nil {
				return err
			}
			printReport(report)

			if cfg.RulesPath != "" {
				loader := metadata.NewLoader()
				doc, err := loader.LoadTransformations(cfg.RulesPath)
				if err != nil {
					return err
				}
				sink := obslog.NewStdSink()
				eng := engine.New(g, ev, sink)
				if _, err := eng.Apply(context.Background(), doc); err != nil {
					return err
				}
			}

			stats := g.Stats()
			fmt.Printf("nodes: %d\n", stats.TotalNodes)
			for label, n := range stats.NodesByLabel {
				fmt.Printf("  %-24s %d\n", label, n)
			}
			fmt.Printf("edges: %d\n", stats.TotalEdges)
			for label, n := range stats.EdgesByLabel {
				fmt.Printf("  %-24s %d\n", label, n)
			}
			return nil
		},
	}
}

// runBuild loads the schema, resolves relative source paths against
// cfg.SourceBaseDir, and materializes the base graph.
func runBuild(cfg *config.RunConfig) (*graph.Graph, *eval.Evaluator, *builder.Report, error) {
	loader := metadata.NewLoader()
	schema, err := loader.LoadSchema(cfg.SchemaPath)
	if err != nil {
		return nil, nil, nil, err
	}

	for i := range schema.Entities {
		p := schema.Entities[i].Source.Path
		if p != "" && !filepath.IsAbs(p) {
			schema.Entities[i].Source.Path = filepath.Join(cfg.SourceBaseDir, p)
		}
	}

	g := graph.New()
	ev := eval.New(g, eval.SystemClock{})
	sink := obslog.NewStdSink()
	b := builder.New(schema, g, ev, sink, cfg.Strictness)

	report, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return g, ev, report, nil
}

func printReport(r *builder.Report) {
	for entity, n := range r.NodesByEntity {
		fmt.Printf("built %-24s %d nodes\n", entity, n)
	}
	for rel, n := range r.EdgesByRel {
		fmt.Printf("built %-24s %d edges\n", rel, n)
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func exitFromError(err error) int {
	kind, ok := lpgerr.KindOf(err)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		return exitRuleFailure
	}
	fmt.Fprintln(os.Stderr, err)
	switch kind {
	case lpgerr.SchemaError, lpgerr.RuleDocumentError:
		return exitSchemaInvalid
	case lpgerr.InputError:
		return exitInputNotFound
	default:
		return exitRuleFailure
	}
}
