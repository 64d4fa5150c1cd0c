package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Word length prefix boundaries.
const (
	// MaxLength1 is the largest length encodable in a 1-byte header.
	MaxLength1 = 1<<7 - 1 // 127
	// MaxLength2 is the largest length encodable in a 2-byte header.
	MaxLength2 = 1<<14 - 1 // 16383
	// MaxLength3 is the largest length encodable in a 3-byte header.
	MaxLength3 = 1<<21 - 1 // 2097151
	// MaxLength4 is the largest length encodable in a 4-byte header.
	MaxLength4 = 1<<28 - 1 // 268435455
)

// Framing errors.
var (
	// ErrNeedMoreBytes indicates the buffer does not yet hold a complete word.
	// Callers should read more bytes and retry; it is not a fatal condition.
	ErrNeedMoreBytes = errors.New("wire: need more bytes")

	// ErrUnknownLengthPrefix indicates the first header byte does not match
	// any of the documented length-prefix patterns. Fatal for the connection.
	ErrUnknownLengthPrefix = errors.New("wire: unknown length prefix pattern")
)

// Word is a single length-prefixed, opaque byte string. It carries no
// internal structure at the framing layer.
type Word []byte

// EncodeWord returns the wire representation of word: its length prefix
// followed by the raw bytes, verbatim.
func EncodeWord(word []byte) []byte {
	out := make([]byte, 0, len(word)+5)
	out = appendLength(out, len(word))
	return append(out, word...)
}

// appendLength appends the shortest valid length prefix for n to dst.
func appendLength(dst []byte, n int) []byte {
	switch {
	case n <= MaxLength1:
		return append(dst, byte(n))
	case n <= MaxLength2:
		return append(dst, byte(n>>8)|0x80, byte(n))
	case n <= MaxLength3:
		return append(dst, byte(n>>16)|0xC0, byte(n>>8), byte(n))
	case n <= MaxLength4:
		return append(dst, byte(n>>24)|0xE0, byte(n>>16), byte(n>>8), byte(n))
	default:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(n))
		return append(append(dst, 0xF0), buf[:]...)
	}
}

// DecodeWord decodes a single word from the head of buf.
//
// On success it returns the word's payload bytes and the number of bytes of
// buf consumed (header + payload). If buf does not yet hold a complete word,
// it returns ErrNeedMoreBytes and the caller should retry once more data has
// arrived; this is the normal case for a streaming transport and is not
// fatal. Any other error is a fatal framing error for the connection.
func DecodeWord(buf []byte) (word []byte, consumed int, err error) {
	if len(buf) == 0 {
		return nil, 0, ErrNeedMoreBytes
	}

	length, headerLen, err := decodeLength(buf)
	if err != nil {
		return nil, 0, err
	}
	if headerLen < 0 {
		return nil, 0, ErrNeedMoreBytes
	}

	total := headerLen + length
	if len(buf) < total {
		return nil, 0, ErrNeedMoreBytes
	}

	payload := make([]byte, length)
	copy(payload, buf[headerLen:total])
	return payload, total, nil
}

// decodeLength reads the length prefix at the head of buf. It returns the
// decoded length and the number of header bytes it occupies. headerLen is -1
// if buf does not yet hold the complete header (need more bytes).
func decodeLength(buf []byte) (length int, headerLen int, err error) {
	c := buf[0]

	switch {
	case c&0x80 == 0x00:
		return int(c), 1, nil

	case c&0xC0 == 0x80:
		if len(buf) < 2 {
			return 0, -1, nil
		}
		return int(c&0x3F)<<8 | int(buf[1]), 2, nil

	case c&0xE0 == 0xC0:
		if len(buf) < 3 {
			return 0, -1, nil
		}
		return int(c&0x1F)<<16 | int(buf[1])<<8 | int(buf[2]), 3, nil

	case c&0xF0 == 0xE0:
		if len(buf) < 4 {
			return 0, -1, nil
		}
		return int(c&0x0F)<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3]), 4, nil

	case c == 0xF0:
		if len(buf) < 5 {
			return 0, -1, nil
		}
		return int(binary.BigEndian.Uint32(buf[1:5])), 5, nil

	default:
		return 0, 0, fmt.Errorf("%w: 0x%02x", ErrUnknownLengthPrefix, c)
	}
}
