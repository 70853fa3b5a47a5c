package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	clocksys "github.com/malirobot/musiclinks/internal/clock/system"
	"github.com/malirobot/musiclinks/internal/traversal"
)

// newTraverseCmd creates the 'traverse' subcommand, which runs a single
// bounded traversal from a seed artist and prints the final statistics.
func newTraverseCmd() *cobra.Command {
	var (
		maxArtists int
		strategy   string
		maxDepth   int
		timeLimit  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "traverse <seed-artist-id>",
		Short: "Runs a single traversal from a seed artist",
		Long: `Walks the collaboration graph outward from the given seed artist,
persisting artists, releases, and credit edges until a configured limit
is reached. Flags override the corresponding configuration values.`,
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()

			cfg := appInstance.Config().Traversal
			if cmd.Flags().Changed("max-artists") {
				cfg.MaxArtists = maxArtists
			}
			if cmd.Flags().Changed("strategy") {
				cfg.Strategy = traversal.Strategy(strategy)
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("time-limit") {
				cfg.TimeLimit = timeLimit
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("traversal config: %w", err)
			}

			manager, err := traversal.NewManager(
				cfg,
				appInstance.Catalog(),
				appInstance.Graph(),
				clocksys.New(),
				logger,
				appInstance.ManagerOptions()...,
			)
			if err != nil {
				return fmt.Errorf("build traversal manager: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stats, err := manager.Run(ctx, args[0])
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run traversal: %w", err)
			}

			logger.Info("Traversal finished",
				zap.String("seed", args[0]),
				zap.String("reason", string(stats.Termination)))

			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return fmt.Errorf("encode statistics: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxArtists, "max-artists", 0, "maximum artists to process")
	cmd.Flags().StringVar(&strategy, "strategy", "", "traversal strategy (bfs or dfs)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum traversal depth from the seed")
	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "wall-clock limit for the run")

	return cmd
}
