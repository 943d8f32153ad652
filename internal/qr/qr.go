package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of generated codes.
const DefaultSize = 256

// MaxTextLength is the longest payload, in bytes, accepted for encoding. It
// stays below the byte-mode capacity of the largest code at medium recovery.
const MaxTextLength = 2048

var ErrTextTooLong = fmt.Errorf("qr payload exceeds %d bytes", MaxTextLength)

// Encode renders text as a PNG QR code. The same text always yields the same
// image.
func Encode(text string) ([]byte, error) {
	return EncodeSize(text, DefaultSize)
}

func EncodeSize(text string, size int) ([]byte, error) {
	if len(text) > MaxTextLength {
		return nil, ErrTextTooLong
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
