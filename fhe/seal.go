package fhe

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/vocdoni/confidential-jury/crypto/ecc/curves"
	"github.com/vocdoni/confidential-jury/crypto/ecies"
	"github.com/vocdoni/confidential-jury/types"
)

// SealedValue is a plaintext encrypted to the requester ephemeral key.
type SealedValue struct {
	Handle     types.Handle   `json:"handle"`
	Ciphertext *types.BigInt  `json:"ciphertext"`
	R          types.HexBytes `json:"r"`
}

// UserDecryptResponse carries one sealed value per requested handle, in the
// request order.
type UserDecryptResponse struct {
	Values []SealedValue `json:"values"`
}

// NewEphemeralKey returns a fresh key pair to receive sealed values.
func NewEphemeralKey() (*ecies.ScalarECIES, error) {
	return ecies.New(nil, curves.New(curves.CurveTypeBabyJubJub), nil)
}

// Seal encrypts value for the marshaled BabyJubJub public key.
func Seal(h types.Handle, value uint64, publicKey []byte) (*SealedValue, error) {
	recipient := curves.New(curves.CurveTypeBabyJubJub)
	if err := recipient.Unmarshal(publicKey); err != nil {
		return nil, fmt.Errorf("%w: bad public key: %v", ErrInvalidRequest, err)
	}
	c, r, err := ecies.Encrypt(new(big.Int).SetUint64(value), recipient, nil)
	if err != nil {
		return nil, err
	}
	return &SealedValue{
		Handle:     h,
		Ciphertext: new(types.BigInt).SetBigInt(c),
		R:          r,
	}, nil
}

// Open decrypts the sealed values with the ephemeral key and returns them
// indexed by handle.
func Open(key *ecies.ScalarECIES, resp *UserDecryptResponse) (map[types.Handle]uint64, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty decryption response")
	}
	values := make(map[types.Handle]uint64, len(resp.Values))
	for _, sv := range resp.Values {
		if sv.Ciphertext == nil {
			return nil, fmt.Errorf("missing ciphertext for handle %s", sv.Handle)
		}
		m, err := key.Decrypt(sv.Ciphertext.MathBigInt(), sv.R)
		if err != nil {
			return nil, fmt.Errorf("cannot open handle %s: %w", sv.Handle, err)
		}
		if !m.IsUint64() {
			return nil, fmt.Errorf("cannot open handle %s: value out of range", sv.Handle)
		}
		values[sv.Handle] = m.Uint64()
	}
	return values, nil
}

// UserDecrypt implements the oracle flow shared by the backends: verify the
// request, check that both the user and the contract are allowed on every
// handle, decrypt and seal each value to the request public key.
func UserDecrypt(req *UserDecryptRequest, domain Domain, acl *ACL, now time.Time,
	decrypt func(types.Handle) (uint64, error),
) (*UserDecryptResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if err := req.Verify(domain, now); err != nil {
		return nil, err
	}
	resp := &UserDecryptResponse{Values: make([]SealedValue, 0, len(req.Handles))}
	for _, h := range req.Handles {
		if !acl.IsAllowed(h, req.UserAddress) {
			return nil, fmt.Errorf("%w: user %s on handle %s", ErrUnauthorized, req.UserAddress.Hex(), h)
		}
		if !acl.IsAllowed(h, req.ContractAddress) {
			return nil, fmt.Errorf("%w: contract %s on handle %s", ErrUnauthorized, req.ContractAddress.Hex(), h)
		}
		value, err := decrypt(h)
		if err != nil {
			if errors.Is(err, ErrUnknownHandle) {
				return nil, err
			}
			return nil, fmt.Errorf("cannot decrypt handle %s: %w", h, err)
		}
		sealed, err := Seal(h, value, req.Authorization.PublicKey)
		if err != nil {
			return nil, err
		}
		resp.Values = append(resp.Values, *sealed)
	}
	return resp, nil
}
