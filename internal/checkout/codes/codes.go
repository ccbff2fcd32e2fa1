package codes

import (
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// NewRedemptionCode mints the unique code embedded in each issued ticket.
func NewRedemptionCode() string {
	return uuid.NewString()
}

// QRImage renders a redemption code as a PNG for scanning at the door.
func QRImage(code string, size int) ([]byte, error) {
	return qrcode.Encode(code, qrcode.Medium, size)
}
