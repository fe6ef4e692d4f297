// Package qr renders ticket identifiers as QR code images and reads them
// back from scanned images.
package qr

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/skip2/go-qrcode"
)

// DefaultModuleSize is the edge length of one QR module in pixels
const DefaultModuleSize = 10

// ErrEncode is returned when text cannot be turned into a QR code
var ErrEncode = errors.New("qr: cannot encode text")

// Renderer encodes text as PNG QR codes with low error correction and a
// four module quiet zone. It holds configuration only; every call builds
// its own encoder, so a Renderer is safe for concurrent use.
type Renderer struct {
	moduleSize int
	foreground color.Color
	background color.Color
}

// NewRenderer creates a renderer drawing moduleSize pixels per module
func NewRenderer(moduleSize int) *Renderer {
	if moduleSize < 1 {
		moduleSize = DefaultModuleSize
	}
	return &Renderer{
		moduleSize: moduleSize,
		foreground: color.Black,
		background: color.White,
	}
}

// Render returns the PNG encoding of a QR code carrying text
func (r *Renderer) Render(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEncode)
	}

	code, err := qrcode.New(text, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	code.ForegroundColor = r.foreground
	code.BackgroundColor = r.background

	// A negative size asks for a fixed number of pixels per module.
	png, err := code.PNG(-r.moduleSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return png, nil
}
