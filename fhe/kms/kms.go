// Package kms implements fhe.Backend with exponential ElGamal ciphertexts
// over BabyJubJub. Additions are homomorphic; comparisons and user
// decryptions are performed by the holder of the private key, which is kept
// in the backend store. Whoever runs the backend can read every value: the
// confidentiality guarantee is that of the key custodian.
package kms

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/vocdoni/confidential-jury/crypto/ecc"
	"github.com/vocdoni/confidential-jury/crypto/ecc/curves"
	"github.com/vocdoni/confidential-jury/crypto/elgamal"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const (
	// Version is the backend version carried in the last byte of its handles.
	Version = 1
	// MaxPlaintext bounds the discrete log search on decryption. Stored
	// ciphertexts hold the exact integer sum, reduced modulo 2^16 after
	// decryption, so a sum of up to 256 maximal 16 bit inputs decrypts.
	MaxPlaintext = 1 << 24
)

var (
	keyPrefix        = []byte("kk/")
	ciphertextPrefix = []byte("kc/")
	privateKeyKey    = []byte("private")
)

// Backend is the ElGamal fhe.Backend.
type Backend struct {
	*Encryptor
	db         db.Database
	acl        *fhe.ACL
	domain     fhe.Domain
	now        func() time.Time
	privateKey *big.Int

	tableOnce sync.Once
	table     *elgamal.BabyStepTable
}

// New returns a kms backend over database. The key pair is loaded from the
// store or generated and persisted on first use.
func New(database db.Database, opts fhe.Options) (*Backend, error) {
	if database == nil {
		return nil, fmt.Errorf("nil database")
	}
	curve := curves.New(curves.CurveTypeBabyJubJub)
	priv, err := loadOrCreateKey(database, curve)
	if err != nil {
		return nil, err
	}
	pub := curve.New()
	pub.ScalarBaseMult(priv)
	log.Debugw("kms fhe backend ready", "publicKey", pub.String())
	return &Backend{
		Encryptor:  &Encryptor{PublicKey: pub},
		db:         database,
		acl:        fhe.NewACL(database),
		domain:     opts.Domain,
		now:        opts.Clock(),
		privateKey: priv,
	}, nil
}

func loadOrCreateKey(database db.Database, curve ecc.Point) (*big.Int, error) {
	data, err := prefixeddb.NewPrefixedReader(database, keyPrefix).Get(privateKeyKey)
	if err == nil {
		return new(big.Int).SetBytes(data), nil
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("cannot load kms key: %w", err)
	}
	_, priv, err := elgamal.GenerateKey(curve)
	if err != nil {
		return nil, err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(database.WriteTx(), keyPrefix)
	if err := wTx.Set(privateKeyKey, priv.Bytes()); err != nil {
		wTx.Discard()
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, err
	}
	log.Infow("generated new kms key")
	return priv, nil
}

// Info implements fhe.Backend. PublicKey is the compressed ElGamal key
// clients encrypt their inputs to.
func (b *Backend) Info() *fhe.Info {
	return &fhe.Info{
		Backend:   fhe.BackendKMS,
		Domain:    b.domain,
		PublicKey: b.PublicKey.Marshal(),
	}
}

// VerifyInputs checks that every handle is derived from its ciphertext and
// that the ciphertext encrypts a 16 bit value, with a range proof bound to
// ctx. All the inputs are checked before any is stored.
func (b *Backend) VerifyInputs(ctx fhe.InputContext, handles []types.Handle, proof []byte) error {
	var ip inputProof
	if err := cbor.Unmarshal(proof, &ip); err != nil {
		return fmt.Errorf("%w: %v", fhe.ErrInvalidProof, err)
	}
	if len(handles) == 0 || len(ip.Ciphertexts) != len(handles) || len(ip.Proofs) != len(handles) {
		return fmt.Errorf("%w: %d handles, %d ciphertexts, %d proofs",
			fhe.ErrInvalidProof, len(handles), len(ip.Ciphertexts), len(ip.Proofs))
	}
	cts := make([]*elgamal.Ciphertext, len(handles))
	for i, h := range handles {
		if h.Version() != Version || h.Type() != types.ValueTypeUint16 {
			return fmt.Errorf("%w: handle %s is not a kms %s", fhe.ErrInvalidProof, h, types.ValueTypeUint16)
		}
		ct, err := b.decodeCiphertext(ip.Ciphertexts[i])
		if err != nil {
			return fmt.Errorf("%w: %v", fhe.ErrInvalidProof, err)
		}
		expected, err := HandleFor(ct, h.Type())
		if err != nil {
			return err
		}
		if expected != h {
			return fmt.Errorf("%w: handle %s does not match its ciphertext", fhe.ErrInvalidProof, h)
		}
		rp := &elgamal.RangeProof{}
		if err := rp.Deserialize(b.PublicKey, ip.Proofs[i]); err != nil {
			return fmt.Errorf("%w: %v", fhe.ErrInvalidProof, err)
		}
		if err := rp.Verify(b.PublicKey, ct, ctx.Fields()...); err != nil {
			return fmt.Errorf("%w: handle %s: %v", fhe.ErrInvalidProof, h, err)
		}
		cts[i] = ct
	}
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), ciphertextPrefix)
	for i, h := range handles {
		if err := wTx.Set(h.Bytes(), cts[i].Serialize()); err != nil {
			wTx.Discard()
			return err
		}
	}
	return wTx.Commit()
}

// EncryptInputs encrypts on behalf of the client and stores the
// ciphertexts, so the returned handles are usable without VerifyInputs.
func (b *Backend) EncryptInputs(ctx fhe.InputContext, values ...uint16) (*fhe.EncryptedInput, error) {
	in, err := b.Encryptor.EncryptInputs(ctx, values...)
	if err != nil {
		return nil, err
	}
	if err := b.VerifyInputs(ctx, in.Handles, in.Proof); err != nil {
		return nil, err
	}
	return in, nil
}

// Add implements fhe.Backend. The result handle is content addressed, so
// adding the same operands twice yields the same handle.
func (b *Backend) Add(x, y types.Handle) (types.Handle, error) {
	cx, cy, err := b.operands(x, y)
	if err != nil {
		return types.Handle{}, err
	}
	sum := elgamal.NewCiphertext(b.PublicKey).Add(cx, cy)
	return b.store(sum, types.ValueTypeUint16)
}

// GE implements fhe.Backend by decrypting both operands with the custody
// key and encrypting the boolean result.
func (b *Backend) GE(x, y types.Handle) (types.Handle, error) {
	cx, cy, err := b.operands(x, y)
	if err != nil {
		return types.Handle{}, err
	}
	vx, err := b.decryptCiphertext(cx)
	if err != nil {
		return types.Handle{}, err
	}
	vy, err := b.decryptCiphertext(cy)
	if err != nil {
		return types.Handle{}, err
	}
	result := big.NewInt(0)
	if vx >= vy {
		result.SetUint64(1)
	}
	ct, err := elgamal.NewCiphertext(b.PublicKey).Encrypt(result, b.PublicKey, nil)
	if err != nil {
		return types.Handle{}, err
	}
	return b.store(ct, types.ValueTypeBool)
}

// Allow implements fhe.Backend.
func (b *Backend) Allow(h types.Handle, principal common.Address) error {
	if _, err := b.ciphertext(h); err != nil {
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
	return fhe.UserDecrypt(req, b.domain, b.acl, b.now(), b.decrypt)
}

func (b *Backend) operands(x, y types.Handle) (*elgamal.Ciphertext, *elgamal.Ciphertext, error) {
	if x.Type() != types.ValueTypeUint16 || y.Type() != types.ValueTypeUint16 {
		return nil, nil, fmt.Errorf("%w: expected %s operands, got %s and %s",
			fhe.ErrTypeMismatch, types.ValueTypeUint16, x.Type(), y.Type())
	}
	cx, err := b.ciphertext(x)
	if err != nil {
		return nil, nil, err
	}
	cy, err := b.ciphertext(y)
	if err != nil {
		return nil, nil, err
	}
	return cx, cy, nil
}

func (b *Backend) ciphertext(h types.Handle) (*elgamal.Ciphertext, error) {
	data, err := prefixeddb.NewPrefixedReader(b.db, ciphertextPrefix).Get(h.Bytes())
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", fhe.ErrUnknownHandle, h)
	}
	if err != nil {
		return nil, err
	}
	ct := elgamal.NewCiphertext(b.PublicKey)
	if err := ct.Deserialize(data); err != nil {
		return nil, err
	}
	return ct, nil
}

func (b *Backend) store(ct *elgamal.Ciphertext, typ types.ValueType) (types.Handle, error) {
	h, err := HandleFor(ct, typ)
	if err != nil {
		return types.Handle{}, err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(b.db.WriteTx(), ciphertextPrefix)
	if err := wTx.Set(h.Bytes(), ct.Serialize()); err != nil {
		wTx.Discard()
		return types.Handle{}, err
	}
	return h, wTx.Commit()
}

func (b *Backend) decrypt(h types.Handle) (uint64, error) {
	ct, err := b.ciphertext(h)
	if err != nil {
		return 0, err
	}
	return b.decryptCiphertext(ct)
}

func (b *Backend) decryptCiphertext(ct *elgamal.Ciphertext) (uint64, error) {
	b.tableOnce.Do(func() {
		b.table = elgamal.NewBabyStepTable(b.PublicKey, MaxPlaintext)
	})
	_, m, err := elgamal.DecryptWithTable(b.table, b.privateKey, ct.C1, ct.C2)
	if err != nil {
		return 0, err
	}
	return m.Uint64() % (1 << 16), nil
}

// decodeCiphertext rejects coordinates that are not points of the prime
// order subgroup.
func (b *Backend) decodeCiphertext(data []byte) (*elgamal.Ciphertext, error) {
	ct := elgamal.NewCiphertext(b.PublicKey)
	if err := ct.Deserialize(data); err != nil {
		return nil, err
	}
	for _, p := range []ecc.Point{ct.C1, ct.C2} {
		check := p.New()
		if err := check.Unmarshal(p.Marshal()); err != nil || !check.Equal(p) {
			return nil, fmt.Errorf("ciphertext point is not on the curve")
		}
		if !elgamal.InSubgroup(p) {
			return nil, fmt.Errorf("ciphertext point is not in the prime order subgroup")
		}
	}
	return ct, nil
}
