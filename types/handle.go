package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HandleSize is the size in bytes of an encrypted value handle.
const HandleSize = 32

// ValueType identifies the plaintext type behind a handle.
type ValueType uint8

const (
	ValueTypeBool   ValueType = 0
	ValueTypeUint16 ValueType = 3
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeBool:
		return "ebool"
	case ValueTypeUint16:
		return "euint16"
	default:
		return fmt.Sprintf("etype(%d)", uint8(t))
	}
}

// Handle is an opaque reference to an encrypted value held by the
// confidential-value backend. The first 30 bytes identify the value, byte 30
// carries the value type and byte 31 the backend version.
type Handle [HandleSize]byte

// NewHandle builds a handle from a digest of at least 30 bytes.
func NewHandle(digest []byte, typ ValueType, version uint8) Handle {
	var h Handle
	copy(h[:HandleSize-2], digest)
	h[HandleSize-2] = byte(typ)
	h[HandleSize-1] = version
	return h
}

// Type returns the value type encoded in the handle.
func (h Handle) Type() ValueType {
	return ValueType(h[HandleSize-2])
}

// Version returns the backend version encoded in the handle.
func (h Handle) Version() uint8 {
	return h[HandleSize-1]
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) Bytes() []byte {
	return h[:]
}

func (h Handle) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(data []byte) error {
	s := strings.TrimPrefix(string(data), "0x")
	if hex.DecodedLen(len(s)) != HandleSize {
		return fmt.Errorf("invalid handle length: %d", hex.DecodedLen(len(s)))
	}
	_, err := hex.Decode(h[:], []byte(s))
	return err
}

// HandleFromBytes returns the handle contained in b, which must be exactly
// HandleSize bytes long.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleSize {
		return h, fmt.Errorf("invalid handle length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}
