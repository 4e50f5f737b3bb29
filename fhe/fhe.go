// Package fhe defines the capability interface to the confidential-value
// primitive used by the ledger: encrypted inputs checked with a proof,
// homomorphic addition, encrypted comparison, an access control list over
// handles and the user decryption oracle. Two implementations exist, a
// cleartext mock (fhe/mock) and an ElGamal key custody backend (fhe/kms);
// fhe/backends selects one at process start.
package fhe

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/types"
)

const (
	// BackendMock is the cleartext development backend.
	BackendMock = "mock"
	// BackendKMS is the ElGamal key custody backend.
	BackendKMS = "kms"

	// MaxDurationDays bounds the validity of a decryption authorization.
	MaxDurationDays = 365
)

var (
	ErrExpiredGrant     = errors.New("authorization outside its validity window")
	ErrInvalidSignature = errors.New("invalid authorization signature")
	ErrUnauthorized     = errors.New("not allowed to decrypt")
	ErrUnknownHandle    = errors.New("unknown handle")
	ErrInvalidProof     = errors.New("invalid input proof")
	ErrTypeMismatch     = errors.New("handle type mismatch")
	ErrInvalidRequest   = errors.New("invalid decryption request")
)

// InputContext binds encrypted inputs to the contract that consumes them and
// to the user that submits them. A proof produced for one context does not
// verify for another.
type InputContext struct {
	Contract common.Address `json:"contract"`
	User     common.Address `json:"user"`
}

// Fields returns the context as field elements, for proof systems that bind
// the context in their challenge.
func (c InputContext) Fields() []*big.Int {
	return []*big.Int{
		new(big.Int).SetBytes(c.Contract.Bytes()),
		new(big.Int).SetBytes(c.User.Bytes()),
	}
}

// EncryptedInput is a batch of encrypted values with the proof that binds
// them to an InputContext.
type EncryptedInput struct {
	Handles []types.Handle `json:"handles"`
	Proof   types.HexBytes `json:"proof"`
}

// Domain is the EIP-712 domain of the decryption oracle.
type Domain struct {
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ChainID           uint64         `json:"chainId"`
	VerifyingContract common.Address `json:"verifyingContract"`
}

// DefaultDomain returns the domain used when none is configured.
func DefaultDomain(chainID uint64, verifyingContract common.Address) Domain {
	return Domain{
		Name:              "Decryption",
		Version:           "1",
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// Info describes a backend to clients.
type Info struct {
	Backend   string         `json:"backend"`
	Domain    Domain         `json:"domain"`
	PublicKey types.HexBytes `json:"publicKey,omitempty"`
}

// InputEncryptor produces encrypted inputs for a context.
type InputEncryptor interface {
	EncryptInputs(ctx InputContext, values ...uint16) (*EncryptedInput, error)
}

// Backend is the confidential-value primitive.
type Backend interface {
	InputEncryptor

	// Info describes the backend.
	Info() *Info
	// VerifyInputs checks the proof of the handles for the context and
	// makes the handles usable.
	VerifyInputs(ctx InputContext, handles []types.Handle, proof []byte) error
	// Add returns an encrypted a+b, wrapping modulo 2^16.
	Add(a, b types.Handle) (types.Handle, error)
	// GE returns an encrypted boolean a >= b.
	GE(a, b types.Handle) (types.Handle, error)
	// Allow grants principal access to the handle.
	Allow(h types.Handle, principal common.Address) error
	// IsAllowed reports whether principal has access to the handle.
	IsAllowed(h types.Handle, principal common.Address) bool
	// UserDecrypt verifies a signed decryption request and returns the
	// requested values sealed to the request public key.
	UserDecrypt(req *UserDecryptRequest) (*UserDecryptResponse, error)
}

// Options are the settings common to all backends.
type Options struct {
	Domain Domain
	// Now returns the current time; time.Now if nil.
	Now func() time.Time
}

// Clock returns the configured clock or time.Now.
func (o Options) Clock() func() time.Time {
	if o.Now == nil {
		return time.Now
	}
	return o.Now
}
