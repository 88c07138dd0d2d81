package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newDeadLetterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead-letter",
		Short: "Inspect and resolve dead-lettered webhook events",
	}

	cmd.AddCommand(newDeadLetterListCommand())
	cmd.AddCommand(newDeadLetterResolveCommand())
	return cmd
}

func newDeadLetterListCommand() *cobra.Command {
	var includeResolved bool
	var limit int

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List dead-lettered events awaiting manual reconciliation",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			letters, err := app.deadLetters.List(cmd.Context(), includeResolved, limit)
			if err != nil {
				return err
			}

			if len(letters) == 0 {
				fmt.Println("no dead letters")
				return nil
			}

			for _, dl := range letters {
				state := "open"
				if dl.ResolvedAt != nil {
					state = fmt.Sprintf("resolved -> %s", *dl.ResolvedBookingID)
				}
				fmt.Printf("%s  %-10s %-28s delivery=%s  %s\n  reason: %s\n",
					dl.ID, dl.Provider, dl.EventType, dl.DeliveryID, state, dl.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeResolved, "all", false, "include already-resolved entries")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	return cmd
}

func newDeadLetterResolveCommand() *cobra.Command {
	var bookingIDRaw string

	cmd := &cobra.Command{
		Use:           "resolve <id>",
		Short:         "Attach a dead-lettered event to a booking and apply it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid dead-letter id %q: %w", args[0], err)
			}
			bookingID, err := uuid.Parse(bookingIDRaw)
			if err != nil {
				return fmt.Errorf("invalid booking id %q: %w", bookingIDRaw, err)
			}

			app, cleanup, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := app.coordinator.ResolveDeadLetter(cmd.Context(), id, bookingID)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", id, err)
			}

			fmt.Printf("resolved %s: outcome=%s booking=%s\n", id, res.Outcome, res.BookingID)
			return nil
		},
	}

	cmd.Flags().StringVar(&bookingIDRaw, "booking", "", "booking to attach the event to (required)")
	_ = cmd.MarkFlagRequired("booking")
	return cmd
}
