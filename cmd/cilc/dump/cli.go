package dump

import (
	"errors"

	"github.com/pgavlin/cil2tac/cmd/cilc/options"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var flags options.Flags
	var table bool

	command := &cobra.Command{
		Use:   "dump [path to module]",
		Short: "Dump lowering statistics",
		Long:  "Lower a module and dump per-method statistics in CSV format",
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

			if table {
				return dumpTable(cmd.OutOrStdout(), result)
			}
			return dumpStats(cmd.OutOrStdout(), result)
		},
	}

	flags.AddTo(command)
	command.PersistentFlags().BoolVarP(&table, "table", "t", false, "dump statistics as a table rather than CSV")

	return command
}
