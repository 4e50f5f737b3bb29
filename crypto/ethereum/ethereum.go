// Package ethereum wraps the go-ethereum secp256k1 primitives used to
// identify principals: key handling, EIP-191 personal message signatures and
// EIP-712 typed data signatures.
package ethereum

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/confidential-jury/util"
)

const (
	// SignatureLength is the size of an ECDSA signature in hexString format
	SignatureLength = ethcrypto.SignatureLength
	// PubKeyLengthBytes is the size of a Public Key
	PubKeyLengthBytes = 33
	// PubKeyLengthBytesUncompressed is the size of a uncompressed Public Key
	PubKeyLengthBytesUncompressed = 65
	// SigningPrefix is the prefix added when hashing
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// SignKeys represents an ECDSA pair of keys for signing.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private ecdsa.PrivateKey
	lock    sync.RWMutex
}

// NewSignKeys creates an ECDSA pair of keys for signing.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate generates new keys.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a private hex key.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(util.TrimHex(privHex))
	if err != nil {
		return err
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the public compressed and private keys as hex strings.
func (k *SignKeys) HexString() (string, string) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	if k.Private.D == nil {
		return "", ""
	}
	pubHexComp := fmt.Sprintf("%x", ethcrypto.CompressPubkey(&k.Public))
	privHex := fmt.Sprintf("%x", ethcrypto.FromECDSA(&k.Private))
	return pubHexComp, privHex
}

// PublicKey returns the compressed public key.
func (k *SignKeys) PublicKey() []byte {
	k.lock.RLock()
	defer k.lock.RUnlock()
	return ethcrypto.CompressPubkey(&k.Public)
}

// Address returns the Ethereum address of the key pair.
func (k *SignKeys) Address() common.Address {
	k.lock.RLock()
	defer k.lock.RUnlock()
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the Ethereum address of the key pair as a checksum
// hex string.
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs a message with the EIP-191 personal message prefix.
// The returned signature has the recovery id in its last byte (0 or 1).
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	if k.Private.D == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ethcrypto.Sign(Hash(message), &k.Private)
}

// SignTypedData signs the EIP-712 hash of the typed data.
func (k *SignKeys) SignTypedData(td apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("cannot hash typed data: %w", err)
	}
	k.lock.RLock()
	defer k.lock.RUnlock()
	if k.Private.D == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ethcrypto.Sign(hash, &k.Private)
}

// AddrFromPublicKey returns the address of a compressed or uncompressed
// public key.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	var pubKey *ecdsa.PublicKey
	var err error
	switch len(pub) {
	case PubKeyLengthBytes:
		pubKey, err = ethcrypto.DecompressPubkey(pub)
	case PubKeyLengthBytesUncompressed:
		pubKey, err = ethcrypto.UnmarshalPubkey(pub)
	default:
		return common.Address{}, fmt.Errorf("invalid public key length: %d", len(pub))
	}
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// AddrFromSignature recovers the signer address of an EIP-191 signed
// message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	return addrFromHash(Hash(message), signature)
}

// AddrFromTypedDataSignature recovers the signer address of an EIP-712
// signature over the given typed data.
func AddrFromTypedDataSignature(td apitypes.TypedData, signature []byte) (common.Address, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot hash typed data: %w", err)
	}
	return addrFromHash(hash, signature)
}

func addrFromHash(hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	// wallets encode the recovery id as 27 or 28
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Hash returns the keccak256 hash of the message with the EIP-191 prefix.
func Hash(data []byte) []byte {
	payload := fmt.Sprintf("%s%d%s", SigningPrefix, len(data), data)
	return HashRaw([]byte(payload))
}

// HashRaw returns the keccak256 hash of data.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// HexToAddress parses a hex address, returning an error if it is malformed.
func HexToAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
