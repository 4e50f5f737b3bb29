package elgamal

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/confidential-jury/crypto/ecc"
)

// RandK function generates a random k value for encryption, reduced to the
// BN254 scalar field (the BabyJubJub base field).
func RandK() (*big.Int, error) {
	kBytes := make([]byte, 32)
	if _, err := rand.Read(kBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random k: %v", err)
	}
	k := new(big.Int).SetBytes(kBytes)
	return arbo.BigToFF(arbo.BN254BaseField, k), nil
}

// Encrypt function encrypts a message using the public key provided as
// elliptic curve point. It generates a random k and returns the two points
// that represent the encrypted message and the random k used to encrypt it.
func Encrypt(publicKey ecc.Point, msg *big.Int) (ecc.Point, ecc.Point, *big.Int, error) {
	k, err := RandK()
	if err != nil {
		return nil, nil, nil, err
	}
	c1, c2, err := EncryptWithK(publicKey, msg, k)
	if err != nil {
		return nil, nil, nil, err
	}
	return c1, c2, k, nil
}

// EncryptWithK function encrypts a message using the public key provided as
// elliptic curve point and the random k value provided. The message is
// encoded as M = msg*G, so C1 = k*G and C2 = M + k*pubKey.
func EncryptWithK(pubKey ecc.Point, msg, k *big.Int) (ecc.Point, ecc.Point, error) {
	if msg.Sign() < 0 {
		return nil, nil, fmt.Errorf("negative message")
	}
	m := new(big.Int).Mod(msg, pubKey.Order())
	c1 := pubKey.New()
	c1.ScalarBaseMult(k)
	s := pubKey.New()
	s.ScalarMult(pubKey, k)
	mPoint := pubKey.New()
	mPoint.ScalarBaseMult(m)
	c2 := pubKey.New()
	c2.Add(mPoint, s)
	return c1, c2, nil
}

// GenerateKey generates a new public/private ElGamal encryption key pair.
func GenerateKey(curve ecc.Point) (publicKey ecc.Point, privateKey *big.Int, err error) {
	d, err := rand.Int(rand.Reader, curve.Order())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate private key scalar: %v", err)
	}
	if d.Sign() == 0 {
		d = big.NewInt(1)
	}
	publicKey = curve.New()
	publicKey.ScalarBaseMult(d)
	return publicKey, d, nil
}

// Decrypt decrypts the given ciphertext (c1, c2) using the private key.
// It returns the point M = c2 - d*c1 and the discrete log message scalar,
// searched in [0, maxMessage].
func Decrypt(publicKey ecc.Point, privateKey *big.Int, c1, c2 ecc.Point, maxMessage uint64) (M ecc.Point, message *big.Int, err error) {
	return DecryptWithTable(NewBabyStepTable(publicKey, maxMessage), privateKey, c1, c2)
}

// DecryptWithTable is Decrypt using a precomputed baby step table, which
// can be shared between decryptions with the same bound.
func DecryptWithTable(table *BabyStepTable, privateKey *big.Int, c1, c2 ecc.Point) (ecc.Point, *big.Int, error) {
	dC1 := c2.New()
	dC1.ScalarMult(c1, privateKey)
	dC1.Neg(dC1)

	M := c2.New()
	M.Add(c2, dC1)

	message, err := table.Solve(M)
	if err != nil {
		return nil, nil, err
	}
	return M, message, nil
}

// BabyStepTable holds the baby steps j*G for j in [0, m) together with the
// giant step -m*G, with m = ceil(sqrt(maxMessage)).
type BabyStepTable struct {
	m     uint64
	steps map[string]uint64
	giant ecc.Point
}

// NewBabyStepTable precomputes the baby steps for messages up to maxMessage
// on the curve of the given point.
func NewBabyStepTable(curve ecc.Point, maxMessage uint64) *BabyStepTable {
	m := uint64(math.Sqrt(float64(maxMessage))) + 1
	t := &BabyStepTable{
		m:     m,
		steps: make(map[string]uint64, m),
	}
	g := curve.New()
	g.SetGenerator()
	step := curve.New()
	for j := uint64(0); j < m; j++ {
		t.steps[string(step.Marshal())] = j
		step.Add(step, g)
	}
	t.giant = curve.New()
	t.giant.ScalarBaseMult(new(big.Int).SetUint64(m))
	t.giant.Neg(t.giant)
	return t
}

// Solve finds x such that M = x*G with x in [0, m*m].
func (t *BabyStepTable) Solve(M ecc.Point) (*big.Int, error) {
	giantStep := M.New()
	giantStep.Set(M)
	for i := uint64(0); i <= t.m; i++ {
		if j, found := t.steps[string(giantStep.Marshal())]; found {
			return new(big.Int).SetUint64(i*t.m + j), nil
		}
		giantStep.Add(giantStep, t.giant)
	}
	return nil, fmt.Errorf("failed to compute discrete logarithm using Baby-Step Giant-Step algorithm")
}

// BabyStepGiantStepECC solves M = x*G for x in [0, maxMessage].
func BabyStepGiantStepECC(M, G ecc.Point, maxMessage uint64) (*big.Int, error) {
	return NewBabyStepTable(G, maxMessage).Solve(M)
}

// CheckK checks if a given k was used to produce the ciphertext (c1, c2).
// It returns true if c1 == k * G, false otherwise.
func CheckK(c1 ecc.Point, k *big.Int) bool {
	kCheck := c1.New()
	kCheck.ScalarBaseMult(k)
	return kCheck.Equal(c1)
}
