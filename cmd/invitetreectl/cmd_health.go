package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newScoreCmd() *cobra.Command {
	var store bool
	cmd := &cobra.Command{
		Use:   "score <user-id>",
		Short: "Show a user's health score",
		Long: `Show the most recent stored health score for a user. With --store a
fresh score is calculated and saved first.`,
		Args: cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if store {
				if _, err := s.svc.Health.CalculateAndStore(ctx, id); err != nil {
					return err
				}
			}
			hs, err := s.svc.Health.Latest(ctx, id)
			if err != nil {
				return err
			}
			return emit(hs, func(w io.Writer) {
				fmt.Fprintf(w, "overall health: %.2f\n", hs.OverallHealth)
				fmt.Fprintf(w, "maturity:       %s\n", hs.MaturityLevel)
				fmt.Fprintf(w, "subtree size:   %d (active %d, flagged %d, banned %d)\n",
					hs.SubtreeSize, hs.ActiveCount, hs.FlaggedCount, hs.BannedCount)
				fmt.Fprintf(w, "depth below:    %d\n", hs.MaxDepthBelow)
				fmt.Fprintf(w, "calculated at:  %s\n", hs.CalculatedAt.Format("2006-01-02 15:04:05Z07:00"))
			})
		}),
	}
	cmd.Flags().BoolVar(&store, "store", false, "Calculate and store a new snapshot first")
	return cmd
}

func newRecalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recalc",
		Short: "Calculate and store health scores for every live user",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			n, err := s.svc.Health.CalculateAll(ctx)
			if err != nil {
				return err
			}
			return emit(map[string]int{"scored": n}, func(w io.Writer) {
				fmt.Fprintf(w, "scored %d users\n", n)
			})
		}),
	}
}

func newFlagLowCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "flag-low",
		Short: "Flag active users whose recent score is below the threshold",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			var t *float64
			if threshold >= 0 {
				t = &threshold
			}
			n, err := s.svc.Health.FlagLowHealth(ctx, t)
			if err != nil {
				return err
			}
			return emit(map[string]int{"flagged": n}, func(w io.Writer) {
				fmt.Fprintf(w, "flagged %d users\n", n)
			})
		}),
	}
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "Override the configured threshold (0-100)")
	return cmd
}
