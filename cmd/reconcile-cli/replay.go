package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay-delivery <deliveryId>",
		Short: "Force a webhook delivery through processing again",
		Long: `Reset a recorded webhook delivery to pending and reprocess it from its
stored payload, bypassing the duplicate short-circuit.

Use this when a delivery was committed with the wrong outcome and the
provider will not redeliver it. The ledger row is reset, never deleted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := app.coordinator.ReplayDelivery(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}

			switch {
			case res.DeadLettered:
				fmt.Printf("replayed %s: dead-lettered (unresolvable or conflict)\n", args[0])
			default:
				fmt.Printf("replayed %s: outcome=%s booking=%s\n", args[0], res.Outcome, res.BookingID)
			}
			return nil
		},
	}
}
