package fhe

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/types"
)

// AuthorizationPrimaryType is the EIP-712 primary type of a decryption
// authorization.
const AuthorizationPrimaryType = "UserDecryptRequestVerification"

// Authorization is the statement a user signs to let the oracle release the
// values of the listed contracts to the holder of PublicKey, during
// DurationDays days starting at StartTimestamp (unix seconds).
type Authorization struct {
	PublicKey         types.HexBytes   `json:"publicKey"`
	ContractAddresses []common.Address `json:"contractAddresses"`
	StartTimestamp    uint64           `json:"startTimestamp"`
	DurationDays      uint64           `json:"durationDays"`
}

// Start returns the beginning of the validity window.
func (a *Authorization) Start() time.Time {
	return time.Unix(int64(a.StartTimestamp), 0)
}

// Expiry returns the end of the validity window.
func (a *Authorization) Expiry() time.Time {
	return a.Start().Add(time.Duration(a.DurationDays) * 24 * time.Hour)
}

// ValidAt reports whether now is inside the validity window.
func (a *Authorization) ValidAt(now time.Time) bool {
	return !now.Before(a.Start()) && now.Before(a.Expiry())
}

// TypedData renders the authorization as EIP-712 typed data for the domain.
func (a *Authorization) TypedData(domain Domain) apitypes.TypedData {
	contracts := make([]interface{}, len(a.ContractAddresses))
	for i, addr := range a.ContractAddresses {
		contracts[i] = addr.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			AuthorizationPrimaryType: []apitypes.Type{
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
			},
		},
		PrimaryType: AuthorizationPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           math.NewHexOrDecimal256(int64(domain.ChainID)),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(a.PublicKey),
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatUint(a.StartTimestamp, 10),
			"durationDays":      strconv.FormatUint(a.DurationDays, 10),
		},
	}
}

// UserDecryptRequest asks the oracle to release Handles, used by
// ContractAddress, to UserAddress. Signature is the EIP-712 signature of
// Authorization by UserAddress.
type UserDecryptRequest struct {
	Handles         []types.Handle `json:"handles"`
	ContractAddress common.Address `json:"contractAddress"`
	UserAddress     common.Address `json:"userAddress"`
	Authorization   Authorization  `json:"authorization"`
	Signature       types.HexBytes `json:"signature"`
}

// Verify checks the request shape, the signature and the validity window.
// It does not check the access control list.
func (r *UserDecryptRequest) Verify(domain Domain, now time.Time) error {
	if len(r.Handles) == 0 {
		return fmt.Errorf("%w: no handles", ErrInvalidRequest)
	}
	if len(r.Authorization.PublicKey) == 0 {
		return fmt.Errorf("%w: missing public key", ErrInvalidRequest)
	}
	if r.Authorization.DurationDays == 0 || r.Authorization.DurationDays > MaxDurationDays {
		return fmt.Errorf("%w: duration must be between 1 and %d days", ErrInvalidRequest, MaxDurationDays)
	}
	signer, err := ethereum.AddrFromTypedDataSignature(r.Authorization.TypedData(domain), r.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if signer != r.UserAddress {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, signer.Hex())
	}
	if !slices.Contains(r.Authorization.ContractAddresses, r.ContractAddress) {
		return fmt.Errorf("%w: contract %s not authorized", ErrUnauthorized, r.ContractAddress.Hex())
	}
	if !r.Authorization.ValidAt(now) {
		return fmt.Errorf("%w: valid from %s until %s", ErrExpiredGrant,
			r.Authorization.Start().UTC().Format(time.RFC3339), r.Authorization.Expiry().UTC().Format(time.RFC3339))
	}
	return nil
}
