package render

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/totegamma/ticketgate/internal/usecase"
)

const defaultQRSize = 512

type QREncoder struct {
	level qrcode.RecoveryLevel
	size  int
}

// NewQREncoder uses high error correction so a scuffed print still scans.
func NewQREncoder(size int) *QREncoder {
	if size <= 0 {
		size = defaultQRSize
	}
	return &QREncoder{level: qrcode.High, size: size}
}

func (e *QREncoder) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty qr payload")
	}
	return qrcode.Encode(payload, e.level, e.size)
}

var _ usecase.QRCodeEncoder = (*QREncoder)(nil)
