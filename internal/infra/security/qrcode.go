package security

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
)

const defaultQRCodeSize = 256

// RenderQRCode encodes the provisioning key as a PNG QR code and returns it base64 encoded.
func RenderQRCode(key *otp.Key, size int) (string, error) {
	if key == nil {
		return "", fmt.Errorf("qrcode: provisioning key is required")
	}
	if size <= 0 {
		size = defaultQRCodeSize
	}

	img, err := key.Image(size, size)
	if err != nil {
		return "", fmt.Errorf("qrcode: render image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("qrcode: encode png: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
