package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/confidential-jury/util"
)

var encMode cbor.EncMode

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	em, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoding mode: %v", err))
	}
	encMode = em
}

// Artifact encoding/decoding
func encodeArtifact(a any) ([]byte, error) {
	data, err := encMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

func uint64Key(n uint64) []byte {
	return util.Uint64ToBytes(n)
}
