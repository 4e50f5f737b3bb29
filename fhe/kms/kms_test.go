package kms

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-jury/crypto/elgamal"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

var (
	contract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	now      = time.Unix(1_700_000_000, 0)
)

func newBackend(c *qt.C) *Backend {
	b, err := New(memdb.New(), fhe.Options{
		Domain: fhe.DefaultDomain(31337, contract),
		Now:    func() time.Time { return now },
	})
	c.Assert(err, qt.IsNil)
	return b
}

func TestKeyPersistence(t *testing.T) {
	c := qt.New(t)
	database := memdb.New()
	b1, err := New(database, fhe.Options{})
	c.Assert(err, qt.IsNil)
	b2, err := New(database, fhe.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(b2.Info().PublicKey, qt.DeepEquals, b1.Info().PublicKey)
	c.Assert(b1.Info().Backend, qt.Equals, fhe.BackendKMS)
}

func TestClientInputs(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	enc, err := NewEncryptor(b.Info().PublicKey)
	c.Assert(err, qt.IsNil)
	ctx := fhe.InputContext{Contract: contract, User: common.HexToAddress("0x01")}

	in, err := enc.EncryptInputs(ctx, 80, 90, 100, 65535)
	c.Assert(err, qt.IsNil)
	for _, h := range in.Handles {
		c.Assert(h.Version(), qt.Equals, uint8(Version))
		c.Assert(h.Type(), qt.Equals, types.ValueTypeUint16)
	}

	// not usable before verification
	_, err = b.Add(in.Handles[0], in.Handles[1])
	c.Assert(errors.Is(err, fhe.ErrUnknownHandle), qt.IsTrue)

	// proof bound to the submitter
	other := fhe.InputContext{Contract: contract, User: common.HexToAddress("0x02")}
	err = b.VerifyInputs(other, in.Handles, in.Proof)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)

	// handles swapped with respect to the ciphertexts
	swapped := []types.Handle{in.Handles[1], in.Handles[0], in.Handles[2], in.Handles[3]}
	err = b.VerifyInputs(ctx, swapped, in.Proof)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)

	err = b.VerifyInputs(ctx, in.Handles, []byte("garbage"))
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)

	c.Assert(b.VerifyInputs(ctx, in.Handles, in.Proof), qt.IsNil)

	sum, err := b.Add(in.Handles[0], in.Handles[1])
	c.Assert(err, qt.IsNil)
	sum, err = b.Add(sum, in.Handles[2])
	c.Assert(err, qt.IsNil)
	v, err := b.decrypt(sum)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(270))

	// 16 bit wrap-around
	wrapped, err := b.Add(in.Handles[3], in.Handles[0])
	c.Assert(err, qt.IsNil)
	v, err = b.decrypt(wrapped)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(79))

	ge, err := b.GE(sum, in.Handles[2])
	c.Assert(err, qt.IsNil)
	c.Assert(ge.Type(), qt.Equals, types.ValueTypeBool)
	v, err = b.decrypt(ge)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(1))

	lt, err := b.GE(in.Handles[0], in.Handles[2])
	c.Assert(err, qt.IsNil)
	v, err = b.decrypt(lt)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(0))

	_, err = b.Add(ge, sum)
	c.Assert(errors.Is(err, fhe.ErrTypeMismatch), qt.IsTrue)
}

func TestRejectsOffCurveCiphertext(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	ctx := fhe.InputContext{Contract: contract, User: common.HexToAddress("0x01")}
	in, err := b.Encryptor.EncryptInputs(ctx, 3)
	c.Assert(err, qt.IsNil)

	var ip inputProof
	c.Assert(cbor.Unmarshal(in.Proof, &ip), qt.IsNil)
	ip.Ciphertexts[0][5] ^= 0xff
	tampered, err := cbor.Marshal(ip)
	c.Assert(err, qt.IsNil)
	err = b.VerifyInputs(ctx, in.Handles, tampered)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)
}

func TestRejectsOutOfRangeInput(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	ctx := fhe.InputContext{Contract: contract, User: common.HexToAddress("0x01")}

	k, err := elgamal.RandK()
	c.Assert(err, qt.IsNil)
	ct, err := elgamal.NewCiphertext(b.PublicKey).Encrypt(new(big.Int).Lsh(big.NewInt(1), 40), b.PublicKey, k)
	c.Assert(err, qt.IsNil)
	h, err := HandleFor(ct, types.ValueTypeUint16)
	c.Assert(err, qt.IsNil)

	// the bits of an in-range value under the same randomness
	rp, err := elgamal.ProveRange(b.PublicKey, ct, big.NewInt(77), k, ctx.Fields()...)
	c.Assert(err, qt.IsNil)
	proof, err := cbor.Marshal(inputProof{Ciphertexts: [][]byte{ct.Serialize()}, Proofs: [][]byte{rp.Serialize()}})
	c.Assert(err, qt.IsNil)
	err = b.VerifyInputs(ctx, []types.Handle{h}, proof)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, ".*bit encryptions do not add up to the ciphertext")

	_, err = b.Add(h, h)
	c.Assert(errors.Is(err, fhe.ErrUnknownHandle), qt.IsTrue)
}

func TestRejectsSmallOrderComponent(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	ctx := fhe.InputContext{Contract: contract, User: common.HexToAddress("0x01")}
	in, err := b.Encryptor.EncryptInputs(ctx, 3)
	c.Assert(err, qt.IsNil)

	var ip inputProof
	c.Assert(cbor.Unmarshal(in.Proof, &ip), qt.IsNil)
	ct := elgamal.NewCiphertext(b.PublicKey)
	c.Assert(ct.Deserialize(ip.Ciphertexts[0]), qt.IsNil)
	// (0, -1) has order 2
	minusOne, _ := new(big.Int).SetString("21888242871839275222246405745257275088548364400416034343698204186575808495616", 10)
	ct.C1.Add(ct.C1, b.PublicKey.SetPoint(big.NewInt(0), minusOne))
	ip.Ciphertexts[0] = ct.Serialize()
	h, err := HandleFor(ct, types.ValueTypeUint16)
	c.Assert(err, qt.IsNil)
	tampered, err := cbor.Marshal(ip)
	c.Assert(err, qt.IsNil)

	err = b.VerifyInputs(ctx, []types.Handle{h}, tampered)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, ".*prime order subgroup")
}

func TestUserDecrypt(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	user := ethereum.NewSignKeys()
	c.Assert(user.Generate(), qt.IsNil)

	in, err := b.EncryptInputs(fhe.InputContext{Contract: contract, User: user.Address()}, 345)
	c.Assert(err, qt.IsNil)
	h := in.Handles[0]
	c.Assert(b.Allow(h, contract), qt.IsNil)
	c.Assert(b.Allow(h, user.Address()), qt.IsNil)

	key, err := fhe.NewEphemeralKey()
	c.Assert(err, qt.IsNil)
	auth := fhe.Authorization{
		PublicKey:         key.PublicKeyBytes(),
		ContractAddresses: []common.Address{contract},
		StartTimestamp:    uint64(now.Add(-time.Hour).Unix()),
		DurationDays:      7,
	}
	sig, err := user.SignTypedData(auth.TypedData(b.Info().Domain))
	c.Assert(err, qt.IsNil)
	resp, err := b.UserDecrypt(&fhe.UserDecryptRequest{
		Handles:         []types.Handle{h},
		ContractAddress: contract,
		UserAddress:     user.Address(),
		Authorization:   auth,
		Signature:       sig,
	})
	c.Assert(err, qt.IsNil)
	values, err := fhe.Open(key, resp)
	c.Assert(err, qt.IsNil)
	c.Assert(values[h], qt.Equals, uint64(345))
}
