package payments

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const recipientNameMax = 13

// BuildQRPayload renders the EMV style "copia e cola" text for a charge.
func BuildQRPayload(amount decimal.Decimal, destinationKey, recipientName string) string {
	name := []rune(recipientName)
	if len(name) > recipientNameMax {
		name = name[:recipientNameMax]
	}
	return fmt.Sprintf(
		"00020126580014BR.GOV.BCB.PIX0136%s5204000053039865406%s5802BR5913%s6008BRASILIA62070503***6304",
		destinationKey, amount.StringFixed(2), string(name),
	)
}

// QRCodeImage returns the placeholder data URI served in place of a PNG.
func QRCodeImage(paymentID string) string {
	return "data:image/png;base64,MOCK_QR_CODE_" + paymentID
}
