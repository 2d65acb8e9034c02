package lower

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/pgavlin/cil2tac/cmd/cilc/options"
	"github.com/pgavlin/cil2tac/compiler/tac"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var flags options.Flags
	var outputPath string
	var listSkipped bool

	command := &cobra.Command{
		Use:   "lower [path to module]",
		Short: "Lower a module to three-address code",
		Long:  "Lower the methods of a module, and every method they reach, to three-address code listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}

			config, err := flags.Config(cmd)
			if err != nil {
				return err
			}
			result, err := config.Lower(args[0])
			if err != nil {
				return err
			}
			options.PrintWarnings(cmd.ErrOrStderr(), result)

			var dest io.Writer
			switch outputPath {
			case "", "-":
				dest = cmd.OutOrStdout()
			default:
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()

				dest = f
			}

			w := bufio.NewWriter(dest)
			defer w.Flush()

			for i, r := range result.Methods {
				if i != 0 {
					w.WriteString("\n")
				}
				if r.DelegateTarget {
					w.WriteString("; delegate target\n")
				}
				if err := tac.Fprint(w, r.Func); err != nil {
					return err
				}
			}
			if listSkipped {
				for _, m := range result.Skipped {
					w.WriteString("; skipped " + m.FullName() + "\n")
				}
			}
			return nil
		},
	}

	flags.AddTo(command)
	command.PersistentFlags().StringVarP(&outputPath, "out", "o", "", "the path for the output file. Defaults to stdout")
	command.PersistentFlags().BoolVar(&listSkipped, "skipped", false, "list reachable methods that have no body to lower")

	return command
}
