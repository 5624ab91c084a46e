package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"invoice-pay/pkg/invoice"
	"invoice-pay/pkg/payment"
	"invoice-pay/pkg/route"
	"invoice-pay/pkg/tokens"
	"invoice-pay/pkg/types"
)

const cryptoToFiatNote = "This address belongs to the Request Network Foundation for processing your crypto-to-fiat payment."

// terminal serializes spinner updates, notices and prompts on stdout
type terminal struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	reader  *bufio.Reader
	active  bool
}

func newTerminal() *terminal {
	return &terminal{
		spinner: spinner.New(spinner.CharSets[14], 100*time.Millisecond),
		reader:  bufio.NewReader(os.Stdin),
	}
}

// progress drives the spinner from the payment attempt state
func (t *terminal) progress(p payment.Progress) {
	if p == payment.Idle {
		t.stop()
		return
	}
	t.start(p.Label() + "...")
}

// start shows the spinner with a message, replacing the current one
func (t *terminal) start(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spinner.Suffix = " " + message
	if !t.active {
		t.spinner.Start()
		t.active = true
	}
}

func (t *terminal) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		t.spinner.Stop()
		t.active = false
	}
}

// Notify prints a notice without tearing the spinner line
func (t *terminal) Notify(level payment.Level, title, description string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pause(func() {
		var c *color.Color
		switch level {
		case payment.LevelSuccess:
			c = color.New(color.FgGreen, color.Bold)
		case payment.LevelWarning:
			c = color.New(color.FgYellow, color.Bold)
		case payment.LevelError:
			c = color.New(color.FgRed, color.Bold)
		default:
			c = color.New(color.FgCyan, color.Bold)
		}
		fmt.Printf("\n%s\n", c.Sprint(title))
		if description != "" {
			fmt.Printf("  %s\n", description)
		}
	})
}

// confirm asks a yes/no question, defaulting to no
func (t *terminal) confirm(prompt string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		answer string
		err    error
	)
	t.pause(func() {
		fmt.Printf("\n%s (y/N): ", prompt)
		answer, err = t.reader.ReadString('\n')
	})
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}

// pause stops the spinner around fn. Callers hold t.mu.
func (t *terminal) pause(fn func()) {
	if t.active {
		t.spinner.Stop()
	}
	fn()
	if t.active {
		t.spinner.Start()
	}
}

func displayInvoice(inv types.Invoice, status types.InvoiceStatus) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                            INVOICE")
	fmt.Println(strings.Repeat("=", 70))

	if inv.InvoiceNumber != "" {
		fmt.Printf("\n  Invoice:         %s\n", color.CyanString(inv.InvoiceNumber))
	} else {
		fmt.Printf("\n  Invoice:         %s\n", color.CyanString(inv.ID))
	}
	fmt.Printf("  Amount:          %s %s\n", inv.Amount.String(), color.YellowString(invoice.CurrencyLabel(inv.InvoiceCurrency)))
	fmt.Printf("  Status:          %s\n", invoice.StatusColor(status).Sprint(invoice.DisplayText(status)))
	if inv.DueDate != nil {
		fmt.Printf("  Due:             %s\n", inv.DueDate.Format("2006-01-02"))
	}
	fmt.Printf("  Payee:           %s\n", color.HiBlackString(inv.Payee))

	if inv.ConvertsCurrency() {
		fmt.Printf("\n  Payment will be processed in %s\n", color.YellowString(invoice.CurrencyLabel(inv.PaymentCurrency)))
	}

	if invoice.IsMainnetCurrency(inv.PaymentCurrency) {
		color.Yellow("\n  This invoice is paid with real funds on %s.", invoice.CurrencyLabel(inv.PaymentCurrency))
		color.Yellow("  Check the amount and recipient before approving anything in your wallet.")
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
}

func displayRoutes(labeled []route.Labeled, selected string, fee *types.PlatformFee, annotations map[string]tokens.Token) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                         PAYMENT ROUTES")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	for _, l := range labeled {
		marker := "  "
		if l.Route.ID == selected {
			marker = color.GreenString("> ")
		}

		fmt.Printf("%s%-24s %s\n", marker, color.CyanString(l.Route.ID), color.YellowString(l.Classification.Label))
		fmt.Printf("    %s\n", color.HiBlackString(l.Classification.Description))

		if l.Route.Chain != "" || l.Route.Token != "" {
			fmt.Printf("    Pay with:     %s on %s\n", l.Route.Token, l.Route.Chain)
		}
		if l.Route.Fee != nil {
			fmt.Printf("    Route fee:    %s\n", l.Route.Fee.String())
		}
		if l.Route.PriceImpact != nil {
			fmt.Printf("    Price impact: %s%%\n", l.Route.PriceImpact.String())
		}
		if t, ok := annotations[l.Route.ID]; ok {
			fmt.Printf("    Token:        %s (%.0f decimals) %s\n", t.Symbol, t.Decimals, color.HiBlackString(t.ContractAddress))
		}
		if l.Classification.Kind == route.KindCryptoToFiat {
			fmt.Printf("    %s\n", color.HiBlackString(cryptoToFiatNote))
		}
		fmt.Println()
	}

	if fee != nil && !fee.Percentage.IsZero() {
		fmt.Printf("  Platform fee:   %s%%\n", fee.Percentage.String())
	}

	fmt.Println(strings.Repeat("=", 70))
}

func displayStatusChange(status types.InvoiceStatus) {
	fmt.Printf("  [%s] Status: %s\n",
		time.Now().Format("15:04:05"),
		invoice.StatusColor(status).Sprint(invoice.DisplayText(status)))
}
