package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dalemusser/invitetree/internal/app/store/audit"
	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

func newInviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite <inviter-id> <username> [email]",
		Short: "Register a user invited by an existing user",
		Args:  cobra.RangeArgs(2, 3),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			inviter, err := parseID(args[0])
			if err != nil {
				return err
			}
			email := ""
			if len(args) == 3 {
				email = args[2]
			}
			u, err := s.svc.Quota.Register(ctx, inviter, args[1], email)
			if err != nil {
				return err
			}
			return emit(u, func(w io.Writer) {
				fmt.Fprintf(w, "created %s (%s)\n", u.Username, u.ID.Hex())
			})
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id> <active|flagged|suspended|banned>",
		Short: "Change a live user's status",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(ctx context.Context, s *session, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			from, err := s.svc.Users.SetStatus(ctx, id, args[1])
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("user %s not found", id.Hex())
			}
			if err != nil {
				return err
			}
			u, err := s.svc.Users.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if from != u.Status {
				s.svc.AuditLog.StatusChanged(ctx, nil, id, from, u.Status)
			}
			return emit(map[string]string{"from": from, "to": u.Status}, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s -> %s\n", u.Username, from, u.Status)
			})
		}),
	}
}

func newQuotaAdjustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quota-adjust",
		Short: "Grant an extra invite to eligible long-standing users",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			n, err := s.svc.Quota.Adjust(ctx)
			if err != nil {
				return err
			}
			return emit(map[string]int{"granted": n}, func(w io.Writer) {
				fmt.Fprintf(w, "granted %d invites\n", n)
			})
		}),
	}
}

func newAuditCmd() *cobra.Command {
	var (
		event  string
		target string
		limit  int64
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the invite audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: withSession(func(ctx context.Context, s *session, _ []string) error {
			f := audit.QueryFilter{EventType: event, Limit: limit}
			if target != "" {
				id, err := parseID(target)
				if err != nil {
					return err
				}
				f.TargetID = &id
			}
			entries, err := s.svc.Audit.Query(ctx, f)
			if err != nil {
				return err
			}
			return emit(entries, func(w io.Writer) {
				for _, e := range entries {
					t := "-"
					if e.TargetID != nil {
						t = e.TargetID.Hex()
					}
					fmt.Fprintf(w, "%6d  %s  %-20s %s %v\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType, t, e.Data)
				}
			})
		}),
	}
	cmd.Flags().StringVar(&event, "event", "", "Only this event type")
	cmd.Flags().StringVar(&target, "target", "", "Only entries about this user id")
	cmd.Flags().Int64Var(&limit, "limit", 50, "Maximum entries")
	return cmd
}
