package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var stdout io.Writer = os.Stdout

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func isUsageError(err error) bool {
	var u usageError
	return errors.As(err, &u) || errors.Is(err, apperr.ErrBadRequest)
}

func parseID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return primitive.NilObjectID, usageError{fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}

// emit prints v as indented JSON when --json is set, otherwise calls text.
func emit(v any, text func(w io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(stdout)
	return nil
}

// printTree draws a nested branch with box-drawing guides.
func printTree(w io.Writer, n *tree.TreeNode) {
	fmt.Fprintf(w, "%s [%s]\n", n.Username, n.Status)
	printChildren(w, n.Children, "")
}

func printChildren(w io.Writer, children []*tree.TreeNode, prefix string) {
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(w, "%s%s%s [%s]\n", prefix, branch, c.Username, c.Status)
		printChildren(w, c.Children, prefix+next)
	}
}

func printStats(w io.Writer, s tree.Stats) {
	fmt.Fprintf(w, "descendants:    %d\n", s.TotalDescendants)
	fmt.Fprintf(w, "active:         %d\n", s.ActiveCount)
	fmt.Fprintf(w, "flagged:        %d\n", s.FlaggedCount)
	fmt.Fprintf(w, "banned:         %d\n", s.BannedCount)
	fmt.Fprintf(w, "suspended:      %d\n", s.SuspendedCount)
	fmt.Fprintf(w, "max depth:      %d\n", s.MaxDepth)
	fmt.Fprintf(w, "direct invites: %d\n", s.DirectInvites)
}
