package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one pass of the promoter, due jobs and the outbox relay, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			ctx := cmd.Context()
			report, err := c.promoter.SweepOnce(ctx)
			if err != nil {
				return fmt.Errorf("promote: %w", err)
			}
			jobs, err := c.jobWorker.Drain(ctx)
			if err != nil {
				return fmt.Errorf("jobs: %w", err)
			}
			published, err := c.outboxWorker.Drain(ctx)
			if err != nil {
				return fmt.Errorf("outbox: %w", err)
			}
			c.logger.Info("sweep finished",
				"earnings_promoted", report.EarningsPromoted,
				"bookings_completed", report.BookingsCompleted,
				"bookings_skipped", report.BookingsSkipped,
				"refunds_retried", report.RefundsRetried,
				"jobs_handled", jobs,
				"events_published", published,
			)
			return nil
		},
	}
}
