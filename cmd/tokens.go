package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"invoice-pay/pkg/client"
	"invoice-pay/pkg/tokens"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List tokens crosschain routes can settle through",
	Long: `List the tokens the 1Click API can route, which is what crosschain
payment routes settle through.

You can filter tokens by blockchain or symbol.

Examples:
  invoice-pay tokens
  invoice-pay tokens --chain base
  invoice-pay tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	a, err := newApp(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	catalog := tokens.NewCatalog(tokens.NewOneClickSource(client.NewOneClickClient(a.cfg.OneClick.JWTToken, a.cfg.OneClick.BaseURL)))

	term := newTerminal()
	if !jsonOutput {
		term.start("Fetching supported tokens...")
	}
	all, err := catalog.All(cmd.Context())
	term.stop()
	if err != nil {
		printError(err)
		a.close()
		os.Exit(1)
	}

	filtered := tokens.Filter(all, filterChain, filterSymbol)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func displayTokens(list []tokens.Token) {
	if len(list) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	chains, byChain := tokens.GroupByChain(list)
	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range byChain[chain] {
			address := token.ContractAddress

			// Truncate address if too long
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2.0f decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(list), len(chains))
}
