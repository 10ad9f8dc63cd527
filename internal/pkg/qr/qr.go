package qr

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidSize = errors.New("invalid size: must be between 128 and 2048")

// PNG renders content as a QR code image of size x size pixels. Zero size
// means 512.
func PNG(content string, size int) ([]byte, error) {
	if size == 0 {
		size = 512
	}
	if size < 128 || size > 2048 {
		return nil, ErrInvalidSize
	}

	code, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return code.PNG(size)
}
