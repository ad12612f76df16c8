package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"failpass.dev/pkg/failpass/internal/controller"
	m "failpass.dev/pkg/failpass/internal/model"
)

var (
	injectImportsFlag []string
	injectWriteFlag   bool
)

func newInjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject <file.rs> <test.rs>",
		Short: "Merge a test function into the test module of a Rust file",
		Long: `Insert the test in <test.rs> after the last function of the test module of
<file.rs>, adding the imports given with --import that the module does not
already cover. A test module is created when the file has none. The result is
printed unless --write is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// #nosec G304 - paths are operator-provided inputs
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}

			// #nosec G304 - paths are operator-provided inputs
			body, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read test: %w", err)
			}

			test := m.NewGeneratedTest(m.Path(args[0]), injectImportsFlag, string(body), 0)

			out, err := resolveInjector().Inject(ctx, string(source), test)
			if err != nil {
				return err
			}

			diags, err := resolveInjector().CheckSyntax(ctx, out)
			if err != nil {
				return err
			}

			if len(diags) > 0 {
				lines := make([]string, 0, len(diags))
				for _, d := range diags {
					lines = append(lines, fmt.Sprintf("%s:%s", args[0], d))
				}

				return fmt.Errorf("merged file does not parse:\n%s", strings.Join(lines, "\n"))
			}

			if injectWriteFlag {
				info, err := os.Stat(args[0])
				if err != nil {
					return err
				}

				return os.WriteFile(args[0], []byte(out), info.Mode().Perm())
			}

			controller.NewUI(cmd).DisplayText(ctx, out)

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&injectImportsFlag, "import", "i", nil, "use declaration required by the test (repeatable)")
	cmd.Flags().BoolVarP(&injectWriteFlag, "write", "w", false, "write the result back to <file.rs>")

	return cmd
}
