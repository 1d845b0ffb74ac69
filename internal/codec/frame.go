package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bft-labs/auditship/internal/domain"
)

const frameHeaderLen = 4

// MaxFrameLen bounds a single frame body.
const MaxFrameLen = 16 << 20

// ReadFrame reads one length-prefixed frame from r and returns its body.
// maxLen <= 0 means MaxFrameLen.
func ReadFrame(r io.Reader, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		maxLen = MaxFrameLen
	}
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 || int64(n) > int64(maxLen) {
		return nil, fmt.Errorf("%w: frame length %d", domain.ErrMalformedFrame, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// Unframe strips the length prefix from a framed payload.
func Unframe(b []byte) ([]byte, error) {
	if len(b) < frameHeaderLen {
		return nil, fmt.Errorf("%w: short frame", domain.ErrMalformedFrame)
	}
	n := binary.BigEndian.Uint32(b[:frameHeaderLen])
	if int(n) != len(b)-frameHeaderLen {
		return nil, fmt.Errorf("%w: frame length %d, have %d", domain.ErrMalformedFrame, n, len(b)-frameHeaderLen)
	}
	return b[frameHeaderLen:], nil
}
