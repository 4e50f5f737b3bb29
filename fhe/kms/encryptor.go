package kms

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/confidential-jury/crypto/ecc"
	"github.com/vocdoni/confidential-jury/crypto/ecc/curves"
	"github.com/vocdoni/confidential-jury/crypto/elgamal"
	"github.com/vocdoni/confidential-jury/crypto/hash/poseidon"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

// inputProof is the proof attached to a batch of encrypted inputs: the
// ciphertext behind every handle and a range proof that it encrypts a 16 bit
// value, bound to the input context.
type inputProof struct {
	Ciphertexts [][]byte `cbor:"0,keyasint"`
	Proofs      [][]byte `cbor:"1,keyasint"`
}

// Encryptor encrypts inputs on the client side with the backend public key.
type Encryptor struct {
	PublicKey ecc.Point
}

// NewEncryptor returns an Encryptor for the marshaled public key published
// in the backend fhe.Info.
func NewEncryptor(publicKey []byte) (*Encryptor, error) {
	pub := curves.New(curves.CurveTypeBabyJubJub)
	if err := pub.Unmarshal(publicKey); err != nil {
		return nil, fmt.Errorf("invalid kms public key: %w", err)
	}
	return &Encryptor{PublicKey: pub}, nil
}

// EncryptInputs implements fhe.InputEncryptor.
func (e *Encryptor) EncryptInputs(ctx fhe.InputContext, values ...uint16) (*fhe.EncryptedInput, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", fhe.ErrInvalidRequest)
	}
	proof := inputProof{}
	handles := make([]types.Handle, 0, len(values))
	for _, v := range values {
		k, err := elgamal.RandK()
		if err != nil {
			return nil, err
		}
		ct, err := elgamal.NewCiphertext(e.PublicKey).Encrypt(new(big.Int).SetUint64(uint64(v)), e.PublicKey, k)
		if err != nil {
			return nil, err
		}
		rp, err := elgamal.ProveRange(e.PublicKey, ct, new(big.Int).SetUint64(uint64(v)), k, ctx.Fields()...)
		if err != nil {
			return nil, err
		}
		h, err := HandleFor(ct, types.ValueTypeUint16)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
		proof.Ciphertexts = append(proof.Ciphertexts, ct.Serialize())
		proof.Proofs = append(proof.Proofs, rp.Serialize())
	}
	encoded, err := cbor.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("cannot encode input proof: %w", err)
	}
	return &fhe.EncryptedInput{Handles: handles, Proof: encoded}, nil
}

// HandleFor derives the handle of a ciphertext: the poseidon hash of its
// coordinates, tagged with the value type and the backend version.
func HandleFor(ct *elgamal.Ciphertext, typ types.ValueType) (types.Handle, error) {
	digest, err := poseidon.MultiPoseidon(ct.Coordinates()...)
	if err != nil {
		return types.Handle{}, err
	}
	buf := make([]byte, 32)
	digest.FillBytes(buf)
	return types.NewHandle(buf[2:], typ, Version), nil
}
