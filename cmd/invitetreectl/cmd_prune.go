package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/invitetree/internal/app/prune"
	"github.com/dalemusser/invitetree/internal/domain/models"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Preview, execute, and roll back branch prunes",
	}
	cmd.AddCommand(newPrunePreviewCmd(), newPruneExecCmd(), newPruneRollbackCmd(), newPruneHistoryCmd(), newPruneShowCmd())
	return cmd
}

func printAffected(w io.Writer, users []models.AffectedUser) {
	for _, u := range users {
		fmt.Fprintf(w, "%s%s [%s] (%d below)\n", strings.Repeat("  ", u.Depth), u.Username, u.Status, u.DescendantsCount)
	}
	fmt.Fprintf(w, "%d users\n", len(users))
}

func printOperation(w io.Writer, op *models.PruneOperation) {
	fmt.Fprintf(w, "operation: %s\n", op.ID.Hex())
	fmt.Fprintf(w, "root:      %s\n", op.RootUserID.Hex())
	fmt.Fprintf(w, "status:    %s\n", op.Status)
	fmt.Fprintf(w, "users:     %d\n", op.AffectedUserCount)
	fmt.Fprintf(w, "reason:    %s\n", op.Reason)
	if op.RolledBackAt != nil {
		fmt.Fprintf(w, "rolled back at %s\n", op.RolledBackAt.Format("2006-01-02 15:04:05Z07:00"))
	}
}

func newPrunePreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <user-id>",
		Short: "List the users a prune of this branch would remove",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			affected, err := s.svc.Prune.AffectedUsers(ctx, id)
			if err != nil {
				return err
			}
			return emit(affected, func(w io.Writer) { printAffected(w, affected) })
		}),
	}
}

func newPruneExecCmd() *cobra.Command {
	var (
		actor  string
		reason string
	)
	cmd := &cobra.Command{
		Use:   "exec <user-id>",
		Short: "Soft-delete a user and everything below them",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			actorID, err := parseID(actor)
			if err != nil {
				return err
			}
			op, err := s.svc.Prune.Execute(ctx, prune.Request{
				RootID:    id,
				ActorID:   actorID,
				Reason:    reason,
				UserAgent: "invitetreectl",
			})
			if err != nil {
				return err
			}
			return emit(op, func(w io.Writer) { printOperation(w, op) })
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "User id of the admin performing the prune (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "Why the branch is pruned (required)")
	_ = cmd.MarkFlagRequired("actor")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newPruneRollbackCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "rollback <operation-id>",
		Short: "Restore every user removed by a completed prune",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			opID, err := parseID(args[0])
			if err != nil {
				return err
			}
			actorID, err := parseID(actor)
			if err != nil {
				return err
			}
			op, err := s.svc.Prune.Rollback(ctx, opID, actorID)
			if err != nil {
				return err
			}
			return emit(op, func(w io.Writer) { printOperation(w, op) })
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "User id of the admin performing the rollback (required)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newPruneHistoryCmd() *cobra.Command {
	var limit, offset int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List prune operations, newest first",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			ops, total, err := s.svc.Prune.ListOperations(ctx, limit, offset)
			if err != nil {
				return err
			}
			out := map[string]any{"operations": ops, "total": total}
			return emit(out, func(w io.Writer) {
				for _, op := range ops {
					fmt.Fprintf(w, "%s  %s  %-11s %4d users  %s\n",
						op.ID.Hex(), op.CreatedAt.Format("2006-01-02 15:04"), op.Status, op.AffectedUserCount, op.Reason)
				}
				fmt.Fprintf(w, "%d of %d\n", len(ops), total)
			})
		}),
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "Maximum operations")
	cmd.Flags().Int64Var(&offset, "offset", 0, "Skip this many operations")
	return cmd
}

func newPruneShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show one prune operation with its affected users",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			opID, err := parseID(args[0])
			if err != nil {
				return err
			}
			op, err := s.svc.Prune.GetOperation(ctx, opID)
			if err != nil {
				return err
			}
			return emit(op, func(w io.Writer) {
				printOperation(w, op)
				printAffected(w, op.AffectedUsers)
			})
		}),
	}
}
