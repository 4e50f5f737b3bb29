// Package ecies implements a scalar ECIES scheme: a scalar message is masked
// with a hash of the Diffie-Hellman shared point between an ephemeral sender
// key and the recipient key.
package ecies

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/vocdoni/confidential-jury/crypto/ecc"
)

// HashFunc derives the shared secret from the serialized shared point.
type HashFunc func([]byte) [32]byte

// ScalarECIES holds a recipient key pair.
type ScalarECIES struct {
	privateKey *big.Int
	publicKey  ecc.Point
	curvePoint ecc.Point
	hashFunc   HashFunc
}

// New initializes a new ScalarECIES instance and generates keys if privateKey is nil.
// The curve parameter is an instance of the elliptic curve group.
// The hashFunc parameter is the hash function used to derive shared secrets. If nil, SHA-256 is used.
func New(privateKey *big.Int, curve ecc.Point, hashFunc HashFunc) (*ScalarECIES, error) {
	if curve == nil {
		return nil, fmt.Errorf("curve cannot be nil")
	}
	se := &ScalarECIES{
		curvePoint: curve,
		hashFunc:   hashFunc,
	}
	if hashFunc == nil {
		se.hashFunc = sha256.Sum256
	}
	if privateKey == nil {
		var err error
		if privateKey, err = randomScalar(curve.Order()); err != nil {
			return nil, err
		}
	}
	se.privateKey = privateKey
	se.publicKey = curve.New()
	se.publicKey.ScalarBaseMult(privateKey)
	return se, nil
}

// PublicKey returns the public key point.
func (se *ScalarECIES) PublicKey() ecc.Point {
	return se.publicKey
}

// PublicKeyBytes returns the marshaled public key.
func (se *ScalarECIES) PublicKeyBytes() []byte {
	return se.publicKey.Marshal()
}

// PrivateKey returns the private key.
func (se *ScalarECIES) PrivateKey() *big.Int {
	return se.privateKey
}

// Decrypt decrypts a message given the ciphertext components.
func (se *ScalarECIES) Decrypt(c *big.Int, RBytes []byte) (*big.Int, error) {
	R := se.curvePoint.New()
	if err := R.Unmarshal(RBytes); err != nil {
		return nil, err
	}
	// S = sk * R
	S := se.curvePoint.New()
	S.ScalarMult(R, se.privateKey)
	s := hashPointToScalar(S, se.hashFunc)

	// m = c - s mod order
	m := new(big.Int).Sub(c, s)
	m.Mod(m, se.curvePoint.Order())
	return m, nil
}

// Encrypt encrypts a scalar for the recipient public key. It returns the
// masked scalar c and the marshaled ephemeral point R. hashFunc must match
// the one of the recipient; nil means SHA-256.
func Encrypt(message *big.Int, recipientPublicKey ecc.Point, hashFunc HashFunc) (*big.Int, []byte, error) {
	if hashFunc == nil {
		hashFunc = sha256.Sum256
	}
	order := recipientPublicKey.Order()
	r, err := randomScalar(order)
	if err != nil {
		return nil, nil, err
	}
	// R = r * G
	R := recipientPublicKey.New()
	R.ScalarBaseMult(r)
	// S = r * recipientPublicKey
	S := recipientPublicKey.New()
	S.ScalarMult(recipientPublicKey, r)
	s := hashPointToScalar(S, hashFunc)

	// c = message + s mod order
	c := new(big.Int).Mod(message, order)
	c.Add(c, s)
	c.Mod(c, order)
	return c, R.Marshal(), nil
}

func randomScalar(order *big.Int) (*big.Int, error) {
	k, err := rand.Int(rand.Reader, order)
	if err != nil {
		return nil, err
	}
	if k.Sign() == 0 {
		k.SetUint64(1)
	}
	return k, nil
}

// hashPointToScalar hashes an elliptic curve point to a scalar modulo the
// group order.
func hashPointToScalar(point ecc.Point, hashFunc HashFunc) *big.Int {
	hashBytes := hashFunc(point.Marshal())
	hashInt := new(big.Int).SetBytes(hashBytes[:])
	return hashInt.Mod(hashInt, point.Order())
}
