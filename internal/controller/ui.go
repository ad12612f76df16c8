// Package controller renders synthesis results on the command line.
package controller

import (
	"context"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	m "failpass.dev/pkg/failpass/internal/model"
)

// BatchInfo describes a batch before it starts.
type BatchInfo struct {
	Jobs       int
	Threads    uint
	ShardIndex uint
	ShardCount uint
	Backends   []m.Backend
}

// UI defines how commands report to the operator.
// Implementations can use different output methods.
type UI interface {
	DisplayChangeSet(ctx context.Context, req m.ChangeRequest, changes m.ChangeSet) error
	DisplayBatchInfo(ctx context.Context, info BatchInfo)
	DisplayResults(ctx context.Context, results []m.RunResult, tally m.Tally) error
	DisplayAttempts(ctx context.Context, runDir m.Path, records []m.AttemptRecord) error
	DisplayText(ctx context.Context, text string)
	// Close flushes whatever the UI held back.
	Close(ctx context.Context) error
}

// NewUI returns the UI commands print through.
func NewUI(cmd *cobra.Command) UI {
	return NewSimpleUI(cmd)
}

// NewPagedUI returns a UI that pages its output on a terminal and prints
// plainly everywhere else.
func NewPagedUI(cmd *cobra.Command) UI {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return NewSimpleUI(cmd)
	}

	return NewTUI(f)
}
