package cmd

import (
	"context"
	"fmt"

	"github.com/smallbiznis/studioledger/internal/scheduler"
	"github.com/spf13/cobra"
)

const (
	jobAll       = "all"
	jobRecurring = "recurring"
	jobReminders = "reminders"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the recurring-invoice and payment-reminder sweeps once",
	Long: `Run the scheduler sweeps once and exit.

Without --studio every studio is swept, the same as one scheduler tick.
With --studio only that studio is swept and a report is printed.`,
	Example: `  # One full tick over every studio
  studioledgerctl sweep

  # Only reminders for one studio
  studioledgerctl sweep --studio 1744839201392 --job reminders`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().String("studio", "", "Sweep only this studio")
	sweepCmd.Flags().String("job", jobAll, "Which sweep to run: all, recurring or reminders")
}

func runSweep(cmd *cobra.Command, args []string) error {
	job, _ := cmd.Flags().GetString("job")
	switch job {
	case jobAll, jobRecurring, jobReminders:
	default:
		return fmt.Errorf("unknown --job %q", job)
	}
	studio, _ := cmd.Flags().GetString("studio")
	if studio == "" && job != jobAll {
		return fmt.Errorf("--job %s requires --studio", job)
	}

	var sched *scheduler.Scheduler
	return runApp(cmd, func(ctx context.Context) error {
		if studio == "" {
			return sched.RunOnce(ctx)
		}

		ctx, studioID, err := studioContext(ctx, cmd)
		if err != nil {
			return err
		}
		report := scheduler.Report{StudioID: studioID}
		switch job {
		case jobRecurring:
			report.InvoicesCreated, err = sched.ProcessRecurringInvoices(ctx, studioID)
		case jobReminders:
			report.RemindersSent, err = sched.SendPaymentReminders(ctx, studioID)
		default:
			report, err = sched.RunStudio(ctx, studioID)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, report)
	}, &sched)
}
