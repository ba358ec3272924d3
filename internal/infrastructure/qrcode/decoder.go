package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoCode is returned when an image holds no readable QR code
var ErrNoCode = errors.New("no qr code found in image")

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// Decoder reads the content of a QR code image. Each call uses its own
// reader, so a Decoder is safe for concurrent flows.
type Decoder struct {
	newReader func() gozxing.Reader
}

// NewDecoder creates a QR code decoder
func NewDecoder() *Decoder {
	return &Decoder{newReader: zxqr.NewQRCodeReader}
}

// Decode returns the text encoded in a PNG image of a QR code
func (d *Decoder) Decode(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}

	result, err := d.newReader().Decode(bmp, decodeHints)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCode, err)
	}
	if result.GetText() == "" {
		return "", ErrNoCode
	}
	return result.GetText(), nil
}
