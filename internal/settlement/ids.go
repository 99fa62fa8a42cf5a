package settlement

import (
	"strings"

	"github.com/google/uuid"
)

const (
	paymentPrefix  = "PAY-"
	errorPrefix    = "ERR-"
	merchantPrefix = "MCH-"
	pspPrefix      = "PSP-"
	networkPrefix  = "NET-"
)

// IDSource produces the identifiers printed on receipts.
type IDSource interface {
	PaymentID() string
	RejectedPaymentID() string
	Confirmations() (merchant, psp, network string)
}

type uuidIDs struct{}

func hexID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func (uuidIDs) PaymentID() string {
	return paymentPrefix + strings.ToUpper(hexID(12))
}

// RejectedPaymentID is lower case so rejected receipts stand out from settled ones.
func (uuidIDs) RejectedPaymentID() string {
	return errorPrefix + hexID(8)
}

func (uuidIDs) Confirmations() (string, string, string) {
	return merchantPrefix + strings.ToUpper(hexID(8)),
		pspPrefix + strings.ToUpper(hexID(8)),
		networkPrefix + strings.ToUpper(hexID(8))
}
