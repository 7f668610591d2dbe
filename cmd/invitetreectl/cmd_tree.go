package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/spf13/cobra"
)

func newTreeCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "tree <user-id>",
		Short: "Print the live branch below a user",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			node, err := s.svc.Tree.BuildTree(ctx, id, depth)
			if err != nil {
				return err
			}
			return emit(node, func(w io.Writer) { printTree(w, node) })
		}),
	}
	cmd.Flags().IntVar(&depth, "depth", tree.NoLimit, "Maximum depth below the user (-1 = unlimited)")
	return cmd
}

func newAncestorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ancestors <user-id>",
		Short: "Print the invite chain above a user",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			lin, err := s.svc.Tree.Ancestors(ctx, id)
			if err != nil {
				return err
			}
			return emit(lin, func(w io.Writer) {
				names := make([]string, len(lin.Chain))
				for i, a := range lin.Chain {
					names[i] = a.Username
				}
				line := strings.Join(names, " -> ")
				if lin.Truncated {
					line = "... -> " + line
				}
				fmt.Fprintln(w, line)
			})
		}),
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Summarize the branch below a user",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := s.svc.Tree.SubtreeStats(ctx, id)
			if err != nil {
				return err
			}
			return emit(st, func(w io.Writer) { printStats(w, st) })
		}),
	}
}

func newInviteesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invitees <user-id>",
		Short: "List a user's direct invitees, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			users, err := s.svc.Tree.DirectInvitees(ctx, id)
			if err != nil {
				return err
			}
			return emit(users, func(w io.Writer) {
				for _, u := range users {
					fmt.Fprintf(w, "%s  %-20s %-10s %s\n", u.ID.Hex(), u.Username, u.Status, u.CreatedAt.Format("2006-01-02"))
				}
			})
		}),
	}
}
