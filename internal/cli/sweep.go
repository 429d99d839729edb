package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/boomsapp/boomsd/internal/config"
	"github.com/boomsapp/boomsd/internal/di"
)

var sweepLimit int

// sweepCmd runs one gift sweep pass and exits. Useful when the daemon
// is run without its internal sweeper, or to drain a backlog.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Settle expired and abandoned gifts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		container := di.New()
		provider := di.NewProvider(container, cfg, log.Default())
		if err := provider.RegisterAll(); err != nil {
			return err
		}
		defer provider.Close(cmd.Context())

		runner, err := provider.Runner()
		if err != nil {
			return err
		}
		result, err := runner.SweepGifts(cmd.Context(), sweepLimit)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("swept %d expired, %d abandoned\n", result.Expired, result.Abandoned)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().IntVar(&sweepLimit, "limit", 100, "maximum gifts to settle in this pass")
}
