package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/google/uuid"
	"github.com/makiuchi-d/gozxing"
	gozxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrDecode is returned when no QR code can be read from an image
var ErrDecode = errors.New("qr: cannot decode image")

// MaxScanPixels bounds the canvas a scan may declare before it is decoded
const MaxScanPixels = 4096 * 4096

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// Decode locates one QR code in a PNG, JPEG or GIF image and returns its
// text. Unsupported formats, images without a code and unreadable codes
// all yield ErrDecode.
func Decode(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrDecode, r)
		}
	}()

	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxScanPixels {
		return "", fmt.Errorf("%w: image too large", ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	result, err := gozxingqr.NewQRCodeReader().Decode(bmp, decodeHints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	text = result.GetText()
	if text == "" {
		return "", fmt.Errorf("%w: empty code", ErrDecode)
	}

	return text, nil
}

// IsTicketID reports whether text is a ticket identifier as rendered by
// this service: a canonical lower case hyphenated UUID other than the nil
// UUID. Everything else is rejected.
func IsTicketID(text string) bool {
	if len(text) != 36 || strings.ToLower(text) != text {
		return false
	}
	id, err := uuid.Parse(text)
	if err != nil {
		return false
	}
	return id != uuid.Nil
}
