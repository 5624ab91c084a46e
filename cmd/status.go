package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/reconcile"
)

var (
	watchStatus   bool
	watchInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <invoice-id>",
	Short: "Check the status of an invoice",
	Long: `Check the status of an invoice as the server reports it.

With --watch the invoice is polled until it is paid or you press Ctrl+C.

Examples:
  invoice-pay status 5f1c...
  invoice-pay status 5f1c... --watch
  invoice-pay status 5f1c... --watch --interval 10s`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the invoice is paid")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval when watching (default is poll_interval)")
}

func runStatus(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if watchStatus && jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		a.close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkStatus(ctx, a, args[0], jsonOutput); err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}
}

func checkStatus(ctx context.Context, a *app, invoiceID string, jsonOutput bool) error {
	term := newTerminal()
	if !jsonOutput {
		term.start("Checking invoice status...")
	}
	inv, err := a.api.GetInvoiceByID(ctx, invoiceID)
	term.stop()
	if err != nil {
		return err
	}

	view := invoice.NewView(*inv)

	if jsonOutput {
		jsonData, err := json.MarshalIndent(view.Snapshot(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(jsonData))
		return nil
	}

	displayInvoice(view.Snapshot(), view.Status())
	if !watchStatus || view.IsPaid() {
		return nil
	}

	interval := a.cfg.PollInterval
	if watchInterval > 0 {
		interval = watchInterval
	}

	fmt.Printf("\nWatching invoice %s every %s. Press Ctrl+C to stop.\n\n", color.CyanString(invoiceID), interval)
	view.OnStatusChange(displayStatusChange)

	r := reconcile.New(a.api, view,
		reconcile.WithInterval(interval),
		reconcile.WithLogger(a.log),
		reconcile.WithMetrics(a.metrics),
		reconcile.WithTracer(a.tracer),
	)
	if err := r.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nStopped watching.")
			return nil
		}
		return err
	}

	printSuccess(color.GreenString("Invoice paid."))
	return nil
}
