package cli

import (
	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the PNG edge length in pixels.
const QRSize = 256

// QRString renders uri as a block-character QR code for a terminal.
func QRString(uri string) (string, error) {
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToString(false), nil
}

// WriteQRPNG writes uri as a PNG QR code to path.
func WriteQRPNG(uri, path string) error {
	return qrcode.WriteFile(uri, qrcode.Medium, QRSize, path)
}
