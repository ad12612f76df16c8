package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"failpass.dev/pkg/failpass/internal/adapter"
	"failpass.dev/pkg/failpass/internal/controller"
	m "failpass.dev/pkg/failpass/internal/model"
)

var (
	viewCommentFlag bool
	viewNoPagerFlag bool
)

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [request-id]",
		Short: "View the attempts of previous runs",
		Long:  "View the attempt journal of every run in the output directory, optionally limited to one request id.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			root := viper.GetString(outputFlagName)
			store := adapter.NewFileReportStore(root)
			ui := controller.NewPagedUI(cmd)
			if viewNoPagerFlag {
				ui = controller.NewUI(cmd)
			}

			request := "*"
			if len(args) > 0 {
				request = args[0]
			}

			runDirs, err := findRunDirs(root, request)
			if err != nil {
				return err
			}

			if len(runDirs) == 0 {
				return fmt.Errorf("no runs found in %s", root)
			}

			for _, dir := range runDirs {
				records, err := store.LoadAttempts(ctx, dir)
				if err != nil {
					return err
				}

				if err := ui.DisplayAttempts(ctx, dir, records); err != nil {
					return err
				}

				if viewCommentFlag {
					comment, err := os.ReadFile(filepath.Join(string(dir), adapter.CommentFile))
					if err != nil && !errors.Is(err, os.ErrNotExist) {
						return err
					}

					ui.DisplayText(ctx, string(comment))
				}
			}

			return ui.Close(ctx)
		},
	}

	cmd.Flags().BoolVar(&viewCommentFlag, "comment", false, "print the summary comment of successful runs")
	cmd.Flags().BoolVar(&viewNoPagerFlag, "no-pager", false, "print everything without paging")

	return cmd
}

// findRunDirs lists <root>/<request>/<backend> directories holding a journal.
func findRunDirs(root, request string) ([]m.Path, error) {
	matches, err := filepath.Glob(filepath.Join(root, request, "*", adapter.JournalFile))
	if err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}

	sort.Strings(matches)

	dirs := make([]m.Path, 0, len(matches))
	for _, match := range matches {
		dirs = append(dirs, m.Path(filepath.Dir(match)))
	}

	return dirs, nil
}
