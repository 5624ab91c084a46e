package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"invoice-pay/pkg/client"
	"invoice-pay/pkg/route"
	"invoice-pay/pkg/tokens"
	"invoice-pay/pkg/types"
	"invoice-pay/pkg/wallet"
)

var routesWallet string

var routesCmd = &cobra.Command{
	Use:   "routes <invoice-id>",
	Short: "List the routes an invoice can be paid with",
	Long: `List the payment routes the server quotes for an invoice and a wallet,
labeled by how they settle: direct, same-chain token, crosschain or
crypto-to-fiat. The first route is the one pay uses by default.

The wallet defaults to the configured private key's address.

Examples:
  invoice-pay routes 5f1c...
  invoice-pay routes 5f1c... --wallet 0x1234...abcd
  invoice-pay routes 5f1c... --verbose`,
	Args: cobra.ExactArgs(1),
	Run:  runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVar(&routesWallet, "wallet", "", "Wallet address to quote routes for")
}

func runRoutes(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if err := listRoutes(cmd.Context(), a, args[0], jsonOutput, verbose); err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}
}

func listRoutes(ctx context.Context, a *app, invoiceID string, jsonOutput, verbose bool) error {
	address, err := payerAddress(a)
	if err != nil {
		return err
	}

	term := newTerminal()
	if !jsonOutput {
		term.start("Fetching payment routes...")
	}

	inv, err := a.api.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		term.stop()
		return fmt.Errorf("failed to load invoice: %w", err)
	}

	book := route.NewBook(a.api, inv.RequestID)
	err = book.Refresh(ctx, address)
	term.stop()
	if err != nil {
		return err
	}

	labeled := route.ClassifyAll(book.Routes(), route.InvoiceChain(inv.PaymentCurrency))

	var annotations map[string]tokens.Token
	if verbose {
		catalog := tokens.NewCatalog(tokens.NewOneClickSource(client.NewOneClickClient(a.cfg.OneClick.JWTToken, a.cfg.OneClick.BaseURL)))
		annotations, err = catalog.Annotate(ctx, book.Routes())
		if err != nil {
			a.log.Warn("token catalog unavailable", map[string]any{"error": err.Error()})
		}
	}

	if jsonOutput {
		return printRoutesJSON(labeled, book.PlatformFee(), annotations)
	}

	selected := ""
	if r := book.Selected(); r != nil {
		selected = r.ID
	}
	fmt.Printf("\n  Wallet:          %s\n", color.CyanString(address))
	displayRoutes(labeled, selected, book.PlatformFee(), annotations)
	return nil
}

// payerAddress is --wallet, or the address of the configured key
func payerAddress(a *app) (string, error) {
	if routesWallet != "" {
		if !common.IsHexAddress(routesWallet) {
			return "", fmt.Errorf("invalid wallet address: %s", routesWallet)
		}
		return common.HexToAddress(routesWallet).Hex(), nil
	}
	if a.cfg.Wallet.PrivateKey == "" {
		return "", fmt.Errorf("no wallet address. Pass --wallet or configure wallet.private_key")
	}

	w, err := wallet.New(a.cfg.Wallet.PrivateKey, nil, 0)
	if err != nil {
		return "", err
	}
	return w.Address(), nil
}

func printRoutesJSON(labeled []route.Labeled, fee *types.PlatformFee, annotations map[string]tokens.Token) error {
	type routeOut struct {
		route.Labeled
		Token *tokens.Token `json:"catalogToken,omitempty"`
	}

	out := struct {
		Routes      []routeOut         `json:"routes"`
		PlatformFee *types.PlatformFee `json:"platformFee,omitempty"`
	}{PlatformFee: fee}

	for _, l := range labeled {
		r := routeOut{Labeled: l}
		if t, ok := annotations[l.Route.ID]; ok {
			r.Token = &t
		}
		out.Routes = append(out.Routes, r)
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonData))
	return nil
}
