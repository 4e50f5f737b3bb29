package mock

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/types"
)

var (
	contract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	now      = time.Unix(1_700_000_000, 0)
)

func newBackend(c *qt.C) *Backend {
	b, err := New(memdb.New(), nil, fhe.Options{
		Domain: fhe.DefaultDomain(31337, contract),
		Now:    func() time.Time { return now },
	})
	c.Assert(err, qt.IsNil)
	return b
}

func TestInputsAndArithmetic(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	user := common.HexToAddress("0x01")
	ctx := fhe.InputContext{Contract: contract, User: user}

	in, err := b.EncryptInputs(ctx, 65535, 2, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(in.Handles, qt.HasLen, 3)
	for _, h := range in.Handles {
		c.Assert(h.Type(), qt.Equals, types.ValueTypeUint16)
		c.Assert(h.Version(), qt.Equals, uint8(Version))
	}
	c.Assert(b.VerifyInputs(ctx, in.Handles, in.Proof), qt.IsNil)

	// bound to the submitter
	err = b.VerifyInputs(fhe.InputContext{Contract: contract, User: common.HexToAddress("0x02")}, in.Handles, in.Proof)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)
	// bound to the handle list
	err = b.VerifyInputs(ctx, in.Handles[:2], in.Proof)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)

	// 65535 + 2 wraps to 1
	sum, err := b.Add(in.Handles[0], in.Handles[1])
	c.Assert(err, qt.IsNil)
	v, err := b.value(sum)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(1))

	ge, err := b.GE(in.Handles[2], sum)
	c.Assert(err, qt.IsNil)
	c.Assert(ge.Type(), qt.Equals, types.ValueTypeBool)
	v, err = b.value(ge)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(1))

	lt, err := b.GE(sum, in.Handles[2])
	c.Assert(err, qt.IsNil)
	v, err = b.value(lt)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, uint64(0))

	_, err = b.Add(ge, sum)
	c.Assert(errors.Is(err, fhe.ErrTypeMismatch), qt.IsTrue)
	_, err = b.Add(sum, types.NewHandle([]byte{9}, types.ValueTypeUint16, Version))
	c.Assert(errors.Is(err, fhe.ErrUnknownHandle), qt.IsTrue)
}

func TestForeignAttestation(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	other := newBackend(c)
	ctx := fhe.InputContext{Contract: contract, User: common.HexToAddress("0x01")}

	in, err := other.EncryptInputs(ctx, 5)
	c.Assert(err, qt.IsNil)
	err = b.VerifyInputs(ctx, in.Handles, in.Proof)
	c.Assert(errors.Is(err, fhe.ErrInvalidProof), qt.IsTrue)
}

func TestUserDecrypt(t *testing.T) {
	c := qt.New(t)
	b := newBackend(c)
	user := ethereum.NewSignKeys()
	c.Assert(user.Generate(), qt.IsNil)

	in, err := b.EncryptInputs(fhe.InputContext{Contract: contract, User: user.Address()}, 42)
	c.Assert(err, qt.IsNil)
	h := in.Handles[0]
	c.Assert(b.Allow(h, contract), qt.IsNil)
	c.Assert(b.IsAllowed(h, user.Address()), qt.IsFalse)

	key, err := fhe.NewEphemeralKey()
	c.Assert(err, qt.IsNil)
	auth := fhe.Authorization{
		PublicKey:         key.PublicKeyBytes(),
		ContractAddresses: []common.Address{contract},
		StartTimestamp:    uint64(now.Unix()),
		DurationDays:      1,
	}
	sig, err := user.SignTypedData(auth.TypedData(b.Info().Domain))
	c.Assert(err, qt.IsNil)
	req := &fhe.UserDecryptRequest{
		Handles:         []types.Handle{h},
		ContractAddress: contract,
		UserAddress:     user.Address(),
		Authorization:   auth,
		Signature:       sig,
	}

	_, err = b.UserDecrypt(req)
	c.Assert(errors.Is(err, fhe.ErrUnauthorized), qt.IsTrue)

	c.Assert(b.Allow(h, user.Address()), qt.IsNil)
	resp, err := b.UserDecrypt(req)
	c.Assert(err, qt.IsNil)
	values, err := fhe.Open(key, resp)
	c.Assert(err, qt.IsNil)
	c.Assert(values[h], qt.Equals, uint64(42))

	err = b.Allow(types.NewHandle([]byte{7}, types.ValueTypeUint16, Version), user.Address())
	c.Assert(errors.Is(err, fhe.ErrUnknownHandle), qt.IsTrue)
}
