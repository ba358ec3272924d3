// Package qrcode renders and extracts login QR codes.
package qrcode

import (
	"encoding/base64"
	"fmt"
	"strings"

	"rsc.io/qr"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

const quietZone = 2

// Encoder renders a login URL as a QR code
type Encoder struct {
	level qr.Level
}

// NewEncoder creates an encoder using medium error correction
func NewEncoder() *Encoder {
	return &Encoder{level: qr.M}
}

// Encode renders content as a base64 PNG plus its terminal rendering
func (e *Encoder) Encode(content string) (*entities.QRCode, error) {
	if content == "" {
		return nil, fmt.Errorf("encode qr: empty content")
	}

	code, err := qr.Encode(content, e.level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	return &entities.QRCode{
		Success: true,
		Image:   base64.StdEncoding.EncodeToString(code.PNG()),
		ASCII:   render(code.Size, code.Black),
		URL:     content,
	}, nil
}

// render draws a size x size module grid for a terminal. Light modules are
// printed as blocks so the code scans on dark backgrounds.
func render(size int, black func(x, y int) bool) string {
	var b strings.Builder
	for y := -quietZone; y < size+quietZone; y++ {
		for x := -quietZone; x < size+quietZone; x++ {
			inside := x >= 0 && y >= 0 && x < size && y < size
			if inside && black(x, y) {
				b.WriteString("  ")
			} else {
				b.WriteString("██")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var _ deps.QREncoder = (*Encoder)(nil)
