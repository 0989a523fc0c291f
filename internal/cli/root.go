package cli

import (
	"github.com/kolah/courier/internal/config"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "courier",
		Short:         "Courier - call OpenAPI operations by ID",
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	config.BindFlags(root)

	root.AddCommand(
		OperationsCommand(),
		CallCommand(),
		BatchCommand(),
	)

	return root
}
