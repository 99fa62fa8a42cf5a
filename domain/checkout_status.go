package domain

type CheckoutStatus string

const (
	CheckoutStatusIncomplete      CheckoutStatus = "incomplete"
	CheckoutStatusReadyForPayment CheckoutStatus = "ready_for_payment"
	CheckoutStatusCompleted       CheckoutStatus = "completed"
)

// statusRank orders statuses along the only allowed direction of travel.
var statusRank = map[CheckoutStatus]int{
	CheckoutStatusIncomplete:      0,
	CheckoutStatusReadyForPayment: 1,
	CheckoutStatusCompleted:       2,
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted
}

func (s CheckoutStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether a checkout may move from one status to the next.
// Only single forward steps are legal.
func CanTransitionTo(from, to CheckoutStatus) bool {
	f, okFrom := statusRank[from]
	t, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	return t == f+1
}

// IsRegression reports whether moving from one status to the other goes backwards.
func IsRegression(from, to CheckoutStatus) bool {
	return statusRank[to] < statusRank[from]
}
