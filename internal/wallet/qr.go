package wallet

import (
	"bytes"
	"image/png"
	"strings"

	"bloomcart-be/internal/storefront"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// ChannelQR renders the wallet account of a channel as a PNG QR code the
// customer can scan from their wallet app.
func ChannelQR(channel *storefront.PaymentChannel, size int) ([]byte, error) {
	if channel == nil || strings.TrimSpace(channel.AccountNumber) == "" {
		return nil, ErrNoAccountNumber
	}
	if size <= 0 {
		size = DefaultQRSize
	}

	qr, err := qrcode.New(strings.TrimSpace(channel.AccountNumber), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(size)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
