package elgamal

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vocdoni/confidential-jury/crypto/ecc"
	"github.com/vocdoni/confidential-jury/crypto/hash/poseidon"
)

// RangeBits is the bit length of the values a RangeProof accepts.
const RangeBits = 16

const (
	sizeScalar   = 32
	sizeBitProof = 2*32 + 4*sizeScalar
	// SizeRangeProof is the size of a serialized RangeProof.
	SizeRangeProof = RangeBits * sizeBitProof
)

// RangeProof shows that a ciphertext encrypts a value in [0, 2^RangeBits).
//
// The ciphertext is split into one encryption per bit, so that the sum of
// Bits[i] weighted by 2^i is the ciphertext itself. Every bit encryption
// carries a disjunctive Chaum-Pedersen proof that it encrypts 0 or 1. The
// challenges are bound to the ciphertext, the bit position and a caller
// provided context. Proving a bit also proves knowledge of its randomness,
// so the whole proof shows knowledge of the encryption randomness.
type RangeProof struct {
	Bits   [RangeBits]*Ciphertext
	Proofs [RangeBits]BitProof
}

// BitProof is the OR proof of a single bit encryption, with a challenge and
// a response for each of the two branches.
type BitProof struct {
	E0, E1 *big.Int
	S0, S1 *big.Int
}

// ProveRange creates a RangeProof for ct, the encryption of msg under
// publicKey with randomness k.
func ProveRange(publicKey ecc.Point, ct *Ciphertext, msg, k *big.Int, context ...*big.Int) (*RangeProof, error) {
	if msg.Sign() < 0 || msg.BitLen() > RangeBits {
		return nil, fmt.Errorf("message does not fit in %d bits", RangeBits)
	}
	order := publicKey.Order()
	kMod := new(big.Int).Mod(k, order)
	// the randomness of the last bit makes the weighted sum equal to k
	acc := new(big.Int)
	lastWeightInv := new(big.Int).ModInverse(new(big.Int).Lsh(big.NewInt(1), RangeBits-1), order)

	proof := &RangeProof{}
	for i := 0; i < RangeBits; i++ {
		var ki *big.Int
		if i < RangeBits-1 {
			r, err := rand.Int(rand.Reader, order)
			if err != nil {
				return nil, fmt.Errorf("failed to generate bit randomness: %w", err)
			}
			ki = r
			acc.Add(acc, new(big.Int).Lsh(ki, uint(i)))
		} else {
			ki = new(big.Int).Sub(kMod, acc)
			ki.Mul(ki, lastWeightInv)
			ki.Mod(ki, order)
		}
		bit := msg.Bit(i)
		c1, c2, err := EncryptWithK(publicKey, new(big.Int).SetUint64(uint64(bit)), ki)
		if err != nil {
			return nil, err
		}
		proof.Bits[i] = &Ciphertext{C1: c1, C2: c2}
		bp, err := proveBit(publicKey, ct, proof.Bits[i], i, bit, ki, context)
		if err != nil {
			return nil, err
		}
		proof.Proofs[i] = *bp
	}
	return proof, nil
}

// Verify checks the proof for ct under publicKey and context.
func (p *RangeProof) Verify(publicKey ecc.Point, ct *Ciphertext, context ...*big.Int) error {
	if p == nil {
		return fmt.Errorf("incomplete proof")
	}
	if !InSubgroup(ct.C1) || !InSubgroup(ct.C2) {
		return fmt.Errorf("ciphertext is not in the prime order subgroup")
	}
	sum := NewCiphertext(publicKey)
	weighted := NewCiphertext(publicKey)
	for i := 0; i < RangeBits; i++ {
		bitCt := p.Bits[i]
		if bitCt == nil || bitCt.C1 == nil || bitCt.C2 == nil {
			return fmt.Errorf("incomplete proof")
		}
		if !InSubgroup(bitCt.C1) || !InSubgroup(bitCt.C2) {
			return fmt.Errorf("bit %d is not in the prime order subgroup", i)
		}
		if err := verifyBit(publicKey, ct, bitCt, i, &p.Proofs[i], context); err != nil {
			return err
		}
		w := new(big.Int).Lsh(big.NewInt(1), uint(i))
		weighted.C1.ScalarMult(bitCt.C1, w)
		weighted.C2.ScalarMult(bitCt.C2, w)
		sum.Add(sum, weighted)
	}
	if !sum.C1.Equal(ct.C1) || !sum.C2.Equal(ct.C2) {
		return fmt.Errorf("bit encryptions do not add up to the ciphertext")
	}
	return nil
}

// Serialize returns, for every bit, the compressed bit encryption points
// followed by E0, E1, S0 and S1 as 32 byte big-endian integers.
func (p *RangeProof) Serialize() []byte {
	buf := make([]byte, 0, SizeRangeProof)
	scalar := make([]byte, sizeScalar)
	for i := 0; i < RangeBits; i++ {
		buf = append(buf, p.Bits[i].C1.Marshal()...)
		buf = append(buf, p.Bits[i].C2.Marshal()...)
		bp := p.Proofs[i]
		for _, s := range []*big.Int{bp.E0, bp.E1, bp.S0, bp.S1} {
			s.FillBytes(scalar)
			buf = append(buf, scalar...)
		}
	}
	return buf
}

// Deserialize reads a proof produced by Serialize, using curve to build the
// points. Scalars must be reduced modulo the group order.
func (p *RangeProof) Deserialize(curve ecc.Point, data []byte) error {
	if len(data) != SizeRangeProof {
		return fmt.Errorf("invalid proof length: got %d bytes, expected %d bytes", len(data), SizeRangeProof)
	}
	order := curve.Order()
	for i := 0; i < RangeBits; i++ {
		chunk := data[i*sizeBitProof : (i+1)*sizeBitProof]
		bitCt := NewCiphertext(curve)
		if err := bitCt.C1.Unmarshal(chunk[:32]); err != nil {
			return err
		}
		if err := bitCt.C2.Unmarshal(chunk[32:64]); err != nil {
			return err
		}
		var scalars [4]*big.Int
		for j := range scalars {
			off := 64 + j*sizeScalar
			scalars[j] = new(big.Int).SetBytes(chunk[off : off+sizeScalar])
			if scalars[j].Cmp(order) >= 0 {
				return fmt.Errorf("bit %d: scalar out of range", i)
			}
		}
		p.Bits[i] = bitCt
		p.Proofs[i] = BitProof{E0: scalars[0], E1: scalars[1], S0: scalars[2], S1: scalars[3]}
	}
	return nil
}

// InSubgroup reports whether p belongs to the prime order subgroup.
func InSubgroup(p ecc.Point) bool {
	q := p.New()
	q.ScalarMult(p, p.Order())
	return q.Equal(p.New())
}

// proveBit proves that bitCt = (k*G, bit*G + k*H) with bit in {0, 1}. The
// real branch is proven with a fresh nonce and the other one is simulated.
func proveBit(publicKey ecc.Point, ct, bitCt *Ciphertext, index int, bit uint, k *big.Int, context []*big.Int) (*BitProof, error) {
	order := publicKey.Order()
	targets := bitTargets(publicKey, bitCt)
	var e, s [2]*big.Int
	var tG, tH [2]ecc.Point

	fake := 1 - bit
	var err error
	if e[fake], err = rand.Int(rand.Reader, order); err != nil {
		return nil, err
	}
	if s[fake], err = rand.Int(rand.Reader, order); err != nil {
		return nil, err
	}
	tG[fake], tH[fake] = commitments(publicKey, bitCt.C1, targets[fake], s[fake], e[fake])

	w, err := rand.Int(rand.Reader, order)
	if err != nil {
		return nil, err
	}
	tG[bit] = publicKey.New()
	tG[bit].ScalarBaseMult(w)
	tH[bit] = publicKey.New()
	tH[bit].ScalarMult(publicKey, w)

	c, err := bitChallenge(ct, bitCt, index, tG, tH, context)
	if err != nil {
		return nil, err
	}
	e[bit] = new(big.Int).Sub(c, e[fake])
	e[bit].Mod(e[bit], order)
	s[bit] = new(big.Int).Mul(e[bit], k)
	s[bit].Add(s[bit], w)
	s[bit].Mod(s[bit], order)
	return &BitProof{E0: e[0], E1: e[1], S0: s[0], S1: s[1]}, nil
}

func verifyBit(publicKey ecc.Point, ct, bitCt *Ciphertext, index int, bp *BitProof, context []*big.Int) error {
	if bp.E0 == nil || bp.E1 == nil || bp.S0 == nil || bp.S1 == nil {
		return fmt.Errorf("incomplete proof")
	}
	targets := bitTargets(publicKey, bitCt)
	var tG, tH [2]ecc.Point
	tG[0], tH[0] = commitments(publicKey, bitCt.C1, targets[0], bp.S0, bp.E0)
	tG[1], tH[1] = commitments(publicKey, bitCt.C1, targets[1], bp.S1, bp.E1)
	c, err := bitChallenge(ct, bitCt, index, tG, tH, context)
	if err != nil {
		return err
	}
	sum := new(big.Int).Add(bp.E0, bp.E1)
	sum.Mod(sum, publicKey.Order())
	if sum.Cmp(c) != 0 {
		return fmt.Errorf("bit %d does not encrypt 0 or 1", index)
	}
	return nil
}

// bitTargets returns the points that equal k*H when the bit is 0 and 1.
func bitTargets(publicKey ecc.Point, bitCt *Ciphertext) [2]ecc.Point {
	g := publicKey.New()
	g.SetGenerator()
	g.Neg(g)
	one := publicKey.New()
	one.Add(bitCt.C2, g)
	return [2]ecc.Point{bitCt.C2, one}
}

// commitments returns s*G - e*A and s*H - e*Y.
func commitments(publicKey, a, y ecc.Point, s, e *big.Int) (ecc.Point, ecc.Point) {
	tG := publicKey.New()
	tG.ScalarBaseMult(s)
	eA := publicKey.New()
	eA.ScalarMult(a, e)
	eA.Neg(eA)
	tG.Add(tG, eA)

	tH := publicKey.New()
	tH.ScalarMult(publicKey, s)
	eY := publicKey.New()
	eY.ScalarMult(y, e)
	eY.Neg(eY)
	tH.Add(tH, eY)
	return tG, tH
}

func bitChallenge(ct, bitCt *Ciphertext, index int, tG, tH [2]ecc.Point, context []*big.Int) (*big.Int, error) {
	inputs := append([]*big.Int{}, context...)
	inputs = append(inputs, big.NewInt(int64(index)))
	inputs = append(inputs, ct.Coordinates()...)
	inputs = append(inputs, bitCt.Coordinates()...)
	for _, p := range []ecc.Point{tG[0], tH[0], tG[1], tH[1]} {
		x, y := p.Point()
		inputs = append(inputs, x, y)
	}
	h, err := poseidon.MultiPoseidon(inputs...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute proof challenge: %w", err)
	}
	return h.Mod(h, ct.C1.Order()), nil
}
