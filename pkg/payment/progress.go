package payment

// Progress is the step a payment attempt is at
type Progress int

const (
	Idle Progress = iota
	GettingTransactions
	Approving
	Paying
)

// Label is the text shown on the pay action for each step
func (p Progress) Label() string {
	switch p {
	case GettingTransactions:
		return "Getting payment transactions"
	case Approving:
		return "Approving payment"
	case Paying:
		return "Sending payment"
	default:
		return "Start payment"
	}
}

func (p Progress) String() string {
	switch p {
	case GettingTransactions:
		return "getting-transactions"
	case Approving:
		return "approving"
	case Paying:
		return "paying"
	default:
		return "idle"
	}
}
