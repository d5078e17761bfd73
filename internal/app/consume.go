package app

import (
	"github.com/spf13/cobra"
)

func newConsumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `consume`,
		Short: `Consumes Kafka messages. UNIMPLEMENTED`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
}
