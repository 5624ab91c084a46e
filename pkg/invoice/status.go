package invoice

import (
	"strings"

	"github.com/fatih/color"
	"invoice-pay/pkg/types"
)

var statusText = map[types.InvoiceStatus]string{
	types.StatusPending:          "Pending",
	types.StatusProcessing:       "Processing",
	types.StatusCryptoPaid:       "Crypto Paid",
	types.StatusPaid:             "Paid",
	types.StatusOfframpPending:   "Offramp Pending",
	types.StatusOfframpInitiated: "Offramp Initiated",
	types.StatusOfframpFailed:    "Offramp Failed",
	types.StatusOverdue:          "Overdue",
}

// DisplayText returns the human readable form of a status
func DisplayText(s types.InvoiceStatus) string {
	if text, ok := statusText[s]; ok {
		return text
	}
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(string(s[:1])) + strings.ReplaceAll(string(s[1:]), "_", " ")
}

// StatusColor returns the terminal color used to render a status
func StatusColor(s types.InvoiceStatus) *color.Color {
	switch s {
	case types.StatusPaid, types.StatusCryptoPaid:
		return color.New(color.FgGreen, color.Bold)
	case types.StatusProcessing, types.StatusOfframpPending, types.StatusOfframpInitiated:
		return color.New(color.FgCyan)
	case types.StatusOfframpFailed, types.StatusOverdue:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}

// IsTerminal reports whether polling can stop on this status
func IsTerminal(s types.InvoiceStatus) bool {
	return s == types.StatusPaid
}
