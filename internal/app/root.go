package app

import (
	"github.com/spf13/cobra"
	"github.com/tryfix/log"
)

// NewRootCmd builds the kavro command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           `kavro`,
		Short:         `Produces/consumes Avro serialized messages into Kafka`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newProduceCmd(), newConsumeCmd())

	return cmd
}

func newLogger(verbose bool) log.Logger {
	level := log.ERROR
	if verbose {
		level = log.DEBUG
	}

	return log.Constructor.Log(log.WithLevel(level), log.WithColors(true))
}
