package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"invoice-pay/config"
	"invoice-pay/pkg/client"
	"invoice-pay/pkg/logger"
	"invoice-pay/pkg/metrics"
	"invoice-pay/pkg/telemetry"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "invoice-pay",
	Short: "A CLI for paying crypto invoices over the best available route",
	Long: `invoice-pay opens a crypto invoice, lists the routes it can be paid with
from your wallet, and runs the payment: network switch, approvals, permit
signatures and the final transfer. It then watches the invoice until the
server reports it paid.

Examples:
  invoice-pay status <invoice-id>
  invoice-pay routes <invoice-id>
  invoice-pay pay <invoice-id>
  invoice-pay pay <invoice-id> --route arb-usdc --yes
  invoice-pay tokens --chain base`,
	Version: version,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is $HOME/.invoice-pay.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// app is everything a command needs once configuration is loaded
type app struct {
	cfg     *config.Config
	log     *logger.ZapLogger
	metrics metrics.Recorder
	tracer  trace.Tracer
	api     *client.InvoiceClient

	closers []func(context.Context) error
}

// newApp loads configuration and starts the ambient services it enables
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}

	a := &app{
		cfg:     cfg,
		log:     logger.NewZapLogger(level),
		metrics: metrics.NoopRecorder{},
		tracer:  telemetry.Tracer(),
		api:     client.NewInvoiceClient(cfg.APIURL, cfg.APIToken, 30*time.Second),
	}

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := telemetry.InitTracer(cmd.Context(), cfg.Tracing.Endpoint, version)
		if err != nil {
			a.log.Warn("tracing disabled", map[string]any{"error": err.Error()})
		} else {
			a.closers = append(a.closers, shutdown)
			a.tracer = telemetry.Tracer()
		}
	}

	if cfg.Metrics.Addr != "" {
		rec := metrics.NewPrometheusRecorder()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Addr); err != nil {
				a.log.Error("metrics listener stopped", map[string]any{"error": err.Error()})
			}
		}()
		a.metrics = rec
		a.closers = append(a.closers, func(context.Context) error {
			cancel()
			return nil
		})
	}

	return a, nil
}

// close flushes traces and stops listeners
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			a.log.Warn("shutdown", map[string]any{"error": err.Error()})
		}
	}
	a.log.Sync()
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
