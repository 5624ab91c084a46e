package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"invoice-pay/config"
	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/network"
	"invoice-pay/pkg/payment"
	"invoice-pay/pkg/reconcile"
	"invoice-pay/pkg/route"
	"invoice-pay/pkg/types"
	"invoice-pay/pkg/wallet"
)

var (
	payRoute   string
	payYes     bool
	payNoWatch bool
)

var payCmd = &cobra.Command{
	Use:   "pay <invoice-id>",
	Short: "Pay an invoice from the configured wallet",
	Long: `Pay an invoice over one of its payment routes. The first route the server
offers is used unless --route names another one.

The wallet is switched to the route's network if needed, approvals and permit
signatures are requested, and the payment is sent. Afterwards the invoice is
watched until the server reports it paid.

IMPORTANT:
  - A wallet private key must be configured (wallet.private_key)
  - Every wallet prompt asks for confirmation unless --yes or auto_confirm is set

Examples:
  invoice-pay pay 5f1c...
  invoice-pay pay 5f1c... --route arb-usdc
  invoice-pay pay 5f1c... --yes --no-watch`,
	Args: cobra.ExactArgs(1),
	Run:  runPay,
}

func init() {
	rootCmd.AddCommand(payCmd)

	payCmd.Flags().StringVar(&payRoute, "route", "", "Route id to pay with (default is the first route offered)")
	payCmd.Flags().BoolVarP(&payYes, "yes", "y", false, "Skip confirmation prompts")
	payCmd.Flags().BoolVar(&payNoWatch, "no-watch", false, "Exit once the payment is sent instead of watching the invoice")
}

func runPay(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if err := pay(ctx, a, args[0], jsonOutput); err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}
}

func pay(ctx context.Context, a *app, invoiceID string, jsonOutput bool) error {
	if a.cfg.Wallet.PrivateKey == "" {
		return config.ErrNoWallet
	}

	term := newTerminal()
	skipConfirm := payYes || a.cfg.AutoConfirm || jsonOutput

	w, err := openWallet(a.cfg, a, term, skipConfirm)
	if err != nil {
		return err
	}

	if !jsonOutput {
		term.start("Loading invoice...")
	}
	inv, err := a.api.GetInvoiceByID(ctx, invoiceID)
	term.stop()
	if err != nil {
		return fmt.Errorf("failed to load invoice: %w", err)
	}

	view := invoice.NewView(*inv)
	if !jsonOutput {
		displayInvoice(view.Snapshot(), view.Status())
	}
	if view.IsPaid() {
		printSuccess(color.GreenString("This invoice is already paid."))
		return nil
	}

	session := payment.NewSession(view, route.NewBook(a.api, inv.RequestID), w.Address())
	if err := session.SetWallet(ctx, w.Address()); err != nil {
		return fmt.Errorf("failed to get payment routes: %w", err)
	}
	if payRoute != "" {
		if err := session.Routes.Select(payRoute); err != nil {
			return err
		}
	}

	selected := session.Routes.Selected()
	if !jsonOutput {
		labeled := route.ClassifyAll(session.Routes.Routes(), route.InvoiceChain(inv.PaymentCurrency))
		displayRoutes(labeled, selected.ID, session.Routes.PlatformFee(), nil)
		fmt.Printf("\n  Paying from:     %s\n", color.CyanString(w.Address()))
	}

	if !skipConfirm {
		ok, err := term.confirm("Proceed with payment?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("\nPayment cancelled.")
			return nil
		}
	}

	var notifier payment.Notifier = term
	if jsonOutput {
		notifier = payment.NoopNotifier{}
	}

	coordinator := network.NewCoordinator(w, a.log)
	coordinator.OnSwitch(func(target int64) {
		notifier.Notify(payment.LevelInfo, "Switching to network", fmt.Sprintf("Switching your wallet to %s", network.Name(target)))
	})

	executor := payment.NewExecutor(a.api, coordinator, w,
		payment.WithLogger(a.log),
		payment.WithMetrics(a.metrics),
		payment.WithNotifier(notifier),
		payment.WithTracer(a.tracer),
	)
	if !jsonOutput {
		session.OnProgress(term.progress)
	}

	outcome, err := executor.Pay(ctx, session)
	if err != nil {
		return describePayError(err)
	}

	if jsonOutput {
		return printOutcomeJSON(outcome, view.Status())
	}
	displayOutcome(outcome)

	if payNoWatch {
		fmt.Println("\nYou can monitor the invoice using:")
		color.Cyan("  invoice-pay status %s --watch\n", invoiceID)
		return nil
	}
	return watchInvoice(ctx, a, view)
}

// openWallet builds the signing wallet from configuration
func openWallet(cfg *config.Config, a *app, term *terminal, skipConfirm bool) (*wallet.Wallet, error) {
	networks, err := cfg.WalletNetworks()
	if err != nil {
		return nil, err
	}
	defaultChain, err := cfg.DefaultChainID()
	if err != nil {
		return nil, err
	}

	opts := []wallet.Option{wallet.WithLogger(a.log)}
	if !skipConfirm {
		opts = append(opts, wallet.WithConfirmer(term.confirm))
	}
	return wallet.New(cfg.Wallet.PrivateKey, networks, defaultChain, opts...)
}

// describePayError adds a hint for the failures a payer can act on
func describePayError(err error) error {
	switch {
	case errors.Is(err, payment.ErrSignatureRejected):
		return fmt.Errorf("%w\nNothing further was sent. Run pay again to retry", err)
	case errors.Is(err, payment.ErrUnsupportedChain):
		return fmt.Errorf("%w\nChoose another route with --route (see: invoice-pay routes <invoice-id>)", err)
	case errors.Is(err, payment.ErrSwitchFailed):
		return fmt.Errorf("%w\nCheck wallet.networks in your config has an RPC for this network", err)
	case errors.Is(err, payment.ErrRouteUnavailable):
		return fmt.Errorf("%w\nNo route can pay this invoice from this wallet right now", err)
	default:
		return err
	}
}

func displayOutcome(out *payment.Outcome) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          PAYMENT SENT")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Attempt:         %s\n", color.HiBlackString(out.AttemptID))
	fmt.Printf("  Network:         %s\n", network.Name(out.ChainID))
	if out.PaymentIntentID != "" {
		fmt.Printf("  Payment Intent:  %s\n", color.CyanString(out.PaymentIntentID))
	}
	for _, h := range out.TxHashes {
		fmt.Printf("  Transaction:     %s\n", color.CyanString(h))
	}
	if out.StatusSyncErr != nil {
		color.Yellow("\n  %v", out.StatusSyncErr)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
}

func printOutcomeJSON(out *payment.Outcome, status types.InvoiceStatus) error {
	result := map[string]any{
		"attempt_id":        out.AttemptID,
		"kind":              out.Kind,
		"chain_id":          out.ChainID,
		"tx_hashes":         out.TxHashes,
		"payment_intent_id": out.PaymentIntentID,
		"status":            status,
	}
	if out.StatusSyncErr != nil {
		result["status_sync_error"] = out.StatusSyncErr.Error()
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonData))
	return nil
}

// watchInvoice polls the invoice until it is paid or the user interrupts
func watchInvoice(ctx context.Context, a *app, view *invoice.View) error {
	fmt.Printf("\nWatching invoice status every %s. Press Ctrl+C to stop.\n\n", a.cfg.PollInterval)

	view.OnStatusChange(displayStatusChange)

	r := reconcile.New(a.api, view,
		reconcile.WithInterval(a.cfg.PollInterval),
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
