package commands

import (
	"github.com/spf13/cobra"

	"github.com/fundflow-dev/fundflow/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:     "fundflow",
		Short:   "Personal finance ledger and settlement engine",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default <dir>/fundflow.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log settlement events to stderr")

	rootCmd.AddCommand(
		newInitCommand(),
		newMigrateCommand(&opts),
		newServeCommand(&opts),
		newUserCommand(&opts),
		newRecordCommand(&opts),
		newBalanceCommand(&opts),
		newTransferCommand(&opts),
		newFeeCommand(&opts),
		newRevenueCommand(&opts),
		newGoalCommand(&opts),
		newExportCommand(&opts),
		newImportCommand(&opts),
		newLogCommand(&opts),
	)

	return rootCmd
}
