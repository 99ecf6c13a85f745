package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/meditrade/trading-engine/internal/asset"
	"github.com/meditrade/trading-engine/internal/config"
	"github.com/meditrade/trading-engine/internal/leaderboard"
	"github.com/meditrade/trading-engine/internal/quote"
	"github.com/meditrade/trading-engine/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:          "tradectl",
		Short:        "Operator tooling for the trading engine",
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newLeaderboardCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pool, err := store.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := store.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts (existing ones are left alone)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			st, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := seed(ctx, st, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d accounts\n", created, len(seedAccounts))
			return nil
		},
	}
}

func newLeaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the trader ranking at opening prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			accounts, err := st.ListAccounts(ctx)
			if err != nil {
				return err
			}
			board := quote.NewBoard(asset.DefaultRegistry())
			entries := leaderboard.RankAll(accounts, board.Price, cfg.StartingBalance)
			if len(entries) > limit {
				entries = entries[:limit]
			}
			renderLeaderboard(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", leaderboard.DefaultPageSize, "number of traders to show")
	return cmd
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	return store.Open(ctx, store.Options{
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		CacheTTL:    cfg.CacheTTL,
	})
}

func renderLeaderboard(out io.Writer, entries []leaderboard.Entry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Rank", "Trader", "Balance", "Holdings", "Total", "P/L %"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, e := range entries {
		table.Append([]string{
			fmt.Sprintf("%d", e.Rank),
			e.Name,
			e.Balance.StringFixed(2),
			e.HoldingsValue.StringFixed(2),
			e.TotalValue.StringFixed(2),
			e.ProfitLossPercent.StringFixed(2),
		})
	}
	table.Render()
}
