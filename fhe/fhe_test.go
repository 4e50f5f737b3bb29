package fhe

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/types"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testDomain   = DefaultDomain(31337, common.HexToAddress("0x00000000000000000000000000000000000000d0"))
	testStart    = time.Unix(1_700_000_000, 0)
)

func testHandle(b byte) types.Handle {
	return types.NewHandle([]byte{b, b, b}, types.ValueTypeUint16, 0)
}

func signedRequest(c *qt.C, user *ethereum.SignKeys, pub []byte, handles ...types.Handle) *UserDecryptRequest {
	auth := Authorization{
		PublicKey:         pub,
		ContractAddresses: []common.Address{testContract},
		StartTimestamp:    uint64(testStart.Unix()),
		DurationDays:      7,
	}
	sig, err := user.SignTypedData(auth.TypedData(testDomain))
	c.Assert(err, qt.IsNil)
	return &UserDecryptRequest{
		Handles:         handles,
		ContractAddress: testContract,
		UserAddress:     user.Address(),
		Authorization:   auth,
		Signature:       sig,
	}
}

func TestACL(t *testing.T) {
	c := qt.New(t)
	acl := NewACL(memdb.New())
	h := testHandle(1)
	who := common.HexToAddress("0x01")

	c.Assert(acl.IsAllowed(h, who), qt.IsFalse)
	c.Assert(acl.Allow(h, who), qt.IsNil)
	c.Assert(acl.Allow(h, who), qt.IsNil)
	c.Assert(acl.IsAllowed(h, who), qt.IsTrue)
	c.Assert(acl.IsAllowed(testHandle(2), who), qt.IsFalse)
	c.Assert(acl.IsAllowed(h, common.HexToAddress("0x02")), qt.IsFalse)

	err := acl.Allow(types.Handle{}, who)
	c.Assert(errors.Is(err, ErrUnknownHandle), qt.IsTrue)
}

func TestAuthorizationWindow(t *testing.T) {
	c := qt.New(t)
	auth := Authorization{StartTimestamp: uint64(testStart.Unix()), DurationDays: 7}
	c.Assert(auth.ValidAt(testStart), qt.IsTrue)
	c.Assert(auth.ValidAt(testStart.Add(-time.Second)), qt.IsFalse)
	c.Assert(auth.ValidAt(testStart.Add(7*24*time.Hour-time.Second)), qt.IsTrue)
	c.Assert(auth.ValidAt(testStart.Add(7*24*time.Hour)), qt.IsFalse)
}

func TestVerifyRequest(t *testing.T) {
	c := qt.New(t)
	user := ethereum.NewSignKeys()
	c.Assert(user.Generate(), qt.IsNil)
	key, err := NewEphemeralKey()
	c.Assert(err, qt.IsNil)

	req := signedRequest(c, user, key.PublicKeyBytes(), testHandle(1))
	c.Assert(req.Verify(testDomain, testStart.Add(time.Hour)), qt.IsNil)

	// outside the window
	err = req.Verify(testDomain, testStart.Add(8*24*time.Hour))
	c.Assert(errors.Is(err, ErrExpiredGrant), qt.IsTrue)
	err = req.Verify(testDomain, testStart.Add(-time.Minute))
	c.Assert(errors.Is(err, ErrExpiredGrant), qt.IsTrue)

	// signed for another domain
	other := testDomain
	other.ChainID = 1
	err = req.Verify(other, testStart)
	c.Assert(errors.Is(err, ErrInvalidSignature), qt.IsTrue)

	// claimed by a different user
	forged := *req
	forged.UserAddress = common.HexToAddress("0x03")
	err = forged.Verify(testDomain, testStart)
	c.Assert(errors.Is(err, ErrInvalidSignature), qt.IsTrue)

	// tampered duration
	tampered := *req
	tampered.Authorization.DurationDays = 30
	err = tampered.Verify(testDomain, testStart)
	c.Assert(errors.Is(err, ErrInvalidSignature), qt.IsTrue)

	// contract not in the authorization
	wrongContract := *req
	wrongContract.ContractAddress = common.HexToAddress("0x04")
	err = wrongContract.Verify(testDomain, testStart)
	c.Assert(errors.Is(err, ErrUnauthorized), qt.IsTrue)

	long := signedRequest(c, user, key.PublicKeyBytes(), testHandle(1))
	long.Authorization.DurationDays = MaxDurationDays + 1
	err = long.Verify(testDomain, testStart)
	c.Assert(errors.Is(err, ErrInvalidRequest), qt.IsTrue)

	empty := signedRequest(c, user, key.PublicKeyBytes())
	err = empty.Verify(testDomain, testStart)
	c.Assert(errors.Is(err, ErrInvalidRequest), qt.IsTrue)
}

func TestUserDecrypt(t *testing.T) {
	c := qt.New(t)
	user := ethereum.NewSignKeys()
	c.Assert(user.Generate(), qt.IsNil)
	key, err := NewEphemeralKey()
	c.Assert(err, qt.IsNil)

	acl := NewACL(memdb.New())
	values := map[types.Handle]uint64{testHandle(1): 345, testHandle(2): 0}
	decrypt := func(h types.Handle) (uint64, error) {
		v, ok := values[h]
		if !ok {
			return 0, ErrUnknownHandle
		}
		return v, nil
	}
	req := signedRequest(c, user, key.PublicKeyBytes(), testHandle(1), testHandle(2))

	// nobody allowed yet
	_, err = UserDecrypt(req, testDomain, acl, testStart, decrypt)
	c.Assert(errors.Is(err, ErrUnauthorized), qt.IsTrue)

	// user allowed but not the contract
	for h := range values {
		c.Assert(acl.Allow(h, user.Address()), qt.IsNil)
	}
	_, err = UserDecrypt(req, testDomain, acl, testStart, decrypt)
	c.Assert(errors.Is(err, ErrUnauthorized), qt.IsTrue)

	for h := range values {
		c.Assert(acl.Allow(h, testContract), qt.IsNil)
	}
	resp, err := UserDecrypt(req, testDomain, acl, testStart, decrypt)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Values, qt.HasLen, 2)
	c.Assert(resp.Values[0].Handle, qt.Equals, testHandle(1))

	opened, err := Open(key, resp)
	c.Assert(err, qt.IsNil)
	c.Assert(opened[testHandle(1)], qt.Equals, uint64(345))
	c.Assert(opened[testHandle(2)], qt.Equals, uint64(0))

	// another key cannot open the response
	otherKey, err := NewEphemeralKey()
	c.Assert(err, qt.IsNil)
	wrong, err := Open(otherKey, resp)
	if err == nil {
		c.Assert(wrong[testHandle(1)], qt.Not(qt.Equals), uint64(345))
	}
}

func TestSealRejectsBadKey(t *testing.T) {
	c := qt.New(t)
	_, err := Seal(testHandle(1), 1, []byte{1, 2, 3})
	c.Assert(errors.Is(err, ErrInvalidRequest), qt.IsTrue)
}
