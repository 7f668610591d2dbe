package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/dalemusser/invitetree/internal/app/tree"
	"github.com/spf13/cobra"
)

func TestParseID(t *testing.T) {
	if _, err := parseID(" 64b7f0c2a1b2c3d4e5f60718 "); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	_, err := parseID("nope")
	if err == nil || !isUsageError(err) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestIsUsageError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{usageError{"x"}, true},
		{fmt.Errorf("wrapped: %w", usageError{"x"}), true},
		{apperr.BadRequest("no reason"), true},
		{apperr.NotFound("gone"), false},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := isUsageError(tt.err); got != tt.want {
			t.Errorf("isUsageError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPrintTree(t *testing.T) {
	root := &tree.TreeNode{Username: "root", Status: "active", Children: []*tree.TreeNode{
		{Username: "a", Status: "active", Children: []*tree.TreeNode{
			{Username: "a1", Status: "flagged"},
		}},
		{Username: "b", Status: "banned"},
	}}

	var buf bytes.Buffer
	printTree(&buf, root)

	want := strings.Join([]string{
		"root [active]",
		"├── a [active]",
		"│   └── a1 [flagged]",
		"└── b [banned]",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("printTree:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	stdout = &buf
	jsonOutput = true
	t.Cleanup(func() {
		jsonOutput = false
		stdout = os.Stdout
	})

	if err := emit(tree.Stats{TotalDescendants: 3}, nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !strings.Contains(buf.String(), `"total_descendants": 3`) {
		t.Errorf("unexpected JSON: %s", buf.String())
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"tree", "ancestors", "stats", "invitees", "score", "recalc", "flag-low",
		"invite", "status", "quota-adjust", "prune", "audit"}
	for _, name := range want {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c == rootCmd {
			t.Errorf("command %q not registered", name)
		}
	}

	prune, _, _ := rootCmd.Find([]string{"prune"})
	for _, sub := range []string{"preview", "exec", "rollback", "history", "show"} {
		var found *cobra.Command
		for _, c := range prune.Commands() {
			if c.Name() == sub {
				found = c
			}
		}
		if found == nil {
			t.Errorf("prune %s not registered", sub)
		}
	}
}
