// Package mock implements fhe.Backend with cleartext values kept by a
// trusted coprocessor. Handles are random and carry no information, input
// proofs are coprocessor attestations over the input context. It is meant
// for development networks and tests.
package mock

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
	"github.com/vocdoni/confidential-jury/util"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Version is the backend version carried in the last byte of its handles.
const Version = 0

var valuesPrefix = []byte("mv/")

// Backend is the cleartext fhe.Backend.
type Backend struct {
	db          db.Database
	acl         *fhe.ACL
	domain      fhe.Domain
	now         func() time.Time
	coprocessor *ethereum.SignKeys
}

// New returns a mock backend over database. The coprocessor key signs input
// attestations; a fresh one is generated if nil.
func New(database db.Database, coprocessor *ethereum.SignKeys, opts fhe.Options) (*Backend, error) {
	if database == nil {
		return nil, fmt.Errorf("nil database")
	}
	if coprocessor == nil {
		coprocessor = ethereum.NewSignKeys()
		if err := coprocessor.Generate(); err != nil {
			return nil, fmt.Errorf("cannot generate coprocessor key: %w", err)
		}
	}
	log.Debugw("mock fhe backend ready", "coprocessor", coprocessor.AddressString())
	return &Backend{
		db:          database,
		acl:         fhe.NewACL(database),
		domain:      opts.Domain,
		now:         opts.Clock(),
		coprocessor: coprocessor,
	}, nil
}

// Info implements fhe.Backend. PublicKey is the coprocessor attestation key.
func (b *Backend) Info() *fhe.Info {
	return &fhe.Info{
		Backend:   fhe.BackendMock,
		Domain:    b.domain,
		PublicKey: b.coprocessor.PublicKey(),
	}
}

// Coprocessor returns the address that signs input attestations.
func (b *Backend) Coprocessor() common.Address {
	return b.coprocessor.Address()
}

// EncryptInputs registers the values and returns fresh handles with an
// attestation bound to ctx.
func (b *Backend) EncryptInputs(ctx fhe.InputContext, values ...uint16) (*fhe.EncryptedInput, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", fhe.ErrInvalidRequest)
	}
	nonce := util.RandomBytes(32)
	handles := make([]types.Handle, len(values))
	for i := range values {
		digest := ethereum.HashRaw(append(append(append(ctx.Contract.Bytes(), ctx.User.Bytes()...),
			util.Uint64ToBytes(uint64(i))...), nonce...))
		handles[i] = types.NewHandle(digest, types.ValueTypeUint16, Version)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), valuesPrefix)
	for i, v := range values {
		if err := wTx.Set(handles[i].Bytes(), encodeValue(uint64(v))); err != nil {
			wTx.Discard()
			return nil, err
		}
	}
	if err := wTx.Commit(); err != nil {
		return nil, err
	}
	proof, err := b.coprocessor.SignEthereum(attestationPayload(ctx, handles))
	if err != nil {
		return nil, fmt.Errorf("cannot sign input attestation: %w", err)
	}
	return &fhe.EncryptedInput{Handles: handles, Proof: proof}, nil
}

// VerifyInputs checks that the coprocessor attested the handles for ctx.
func (b *Backend) VerifyInputs(ctx fhe.InputContext, handles []types.Handle, proof []byte) error {
	if len(handles) == 0 {
		return fmt.Errorf("%w: no handles", fhe.ErrInvalidProof)
	}
	signer, err := ethereum.AddrFromSignature(attestationPayload(ctx, handles), proof)
	if err != nil {
		return fmt.Errorf("%w: %v", fhe.ErrInvalidProof, err)
	}
	if signer != b.coprocessor.Address() {
		return fmt.Errorf("%w: attestation not signed by the coprocessor", fhe.ErrInvalidProof)
	}
	for _, h := range handles {
		if h.Version() != Version {
			return fmt.Errorf("%w: handle %s has version %d", fhe.ErrInvalidProof, h, h.Version())
		}
		if _, err := b.value(h); err != nil {
			return err
		}
	}
	return nil
}

// Add implements fhe.Backend.
func (b *Backend) Add(x, y types.Handle) (types.Handle, error) {
	vx, vy, err := b.operands(x, y, types.ValueTypeUint16)
	if err != nil {
		return types.Handle{}, err
	}
	return b.store(derivedHandle("add", x, y, types.ValueTypeUint16), uint64(uint16(vx+vy)))
}

// GE implements fhe.Backend.
func (b *Backend) GE(x, y types.Handle) (types.Handle, error) {
	vx, vy, err := b.operands(x, y, types.ValueTypeUint16)
	if err != nil {
		return types.Handle{}, err
	}
	var result uint64
	if vx >= vy {
		result = 1
	}
	return b.store(derivedHandle("ge", x, y, types.ValueTypeBool), result)
}

// Allow implements fhe.Backend.
func (b *Backend) Allow(h types.Handle, principal common.Address) error {
	if _, err := b.value(h); err != nil {
		return err
	}
	return b.acl.Allow(h, principal)
}

// IsAllowed implements fhe.Backend.
func (b *Backend) IsAllowed(h types.Handle, principal common.Address) bool {
	return b.acl.IsAllowed(h, principal)
}

// UserDecrypt implements fhe.Backend.
func (b *Backend) UserDecrypt(req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error) {
	return fhe.UserDecrypt(req, b.domain, b.acl, b.now(), b.value)
}

func (b *Backend) operands(x, y types.Handle, typ types.ValueType) (uint64, uint64, error) {
	if x.Type() != typ || y.Type() != typ {
		return 0, 0, fmt.Errorf("%w: expected %s operands, got %s and %s", fhe.ErrTypeMismatch, typ, x.Type(), y.Type())
	}
	vx, err := b.value(x)
	if err != nil {
		return 0, 0, err
	}
	vy, err := b.value(y)
	if err != nil {
		return 0, 0, err
	}
	return vx, vy, nil
}

func (b *Backend) value(h types.Handle) (uint64, error) {
	data, err := prefixeddb.NewPrefixedReader(b.db, valuesPrefix).Get(h.Bytes())
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, fmt.Errorf("%w: %s", fhe.ErrUnknownHandle, h)
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

func (b *Backend) store(h types.Handle, v uint64) (types.Handle, error) {
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), valuesPrefix)
	if err := wTx.Set(h.Bytes(), encodeValue(v)); err != nil {
		wTx.Discard()
		return types.Handle{}, err
	}
	return h, wTx.Commit()
}

func encodeValue(v uint64) []byte {
	return util.Uint64ToBytes(v)
}

func derivedHandle(op string, x, y types.Handle, typ types.ValueType) types.Handle {
	digest := ethereum.HashRaw(append(append([]byte(op), x.Bytes()...), y.Bytes()...))
	return types.NewHandle(digest, typ, Version)
}

func attestationPayload(ctx fhe.InputContext, handles []types.Handle) []byte {
	payload := append(ctx.Contract.Bytes(), ctx.User.Bytes()...)
	for _, h := range handles {
		payload = append(payload, h.Bytes()...)
	}
	return ethereum.HashRaw(payload)
}
