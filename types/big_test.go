package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

// 2^255 - 19, wider than a machine word
var wideInt, _ = new(big.Int).SetString("57896044618658097711785492504343953926634992332820282019728792003956564819949", 10)

func TestBigIntJSON(t *testing.T) {
	c := qt.New(t)
	for _, v := range []*big.Int{big.NewInt(0), big.NewInt(1234567890), big.NewInt(-42), wideInt} {
		data, err := json.Marshal(map[string]*BigInt{"bi": new(BigInt).SetBigInt(v)})
		c.Assert(err, qt.IsNil)
		c.Assert(string(data), qt.Equals, `{"bi":"`+v.String()+`"}`)

		var out map[string]*BigInt
		c.Assert(json.Unmarshal(data, &out), qt.IsNil)
		c.Assert(out["bi"].MathBigInt().Cmp(v), qt.Equals, 0)
	}

	var bi BigInt
	c.Assert(json.Unmarshal([]byte(`"12a"`), &bi), qt.ErrorMatches, `invalid big int "12a".*`)
}

func TestBigIntCBOR(t *testing.T) {
	c := qt.New(t)
	for _, v := range []*big.Int{big.NewInt(0), big.NewInt(1234567890), wideInt} {
		data, err := cbor.Marshal(map[string]*BigInt{"bi": new(BigInt).SetBigInt(v)})
		c.Assert(err, qt.IsNil)

		var out map[string]*BigInt
		c.Assert(cbor.Unmarshal(data, &out), qt.IsNil)
		c.Assert(out["bi"].String(), qt.Equals, v.String())
	}
}

func TestBigIntSetters(t *testing.T) {
	c := qt.New(t)
	bi := new(BigInt).SetUint64(1 << 40)
	c.Assert(bi.String(), qt.Equals, "1099511627776")

	// SetBigInt copies the value
	src := new(big.Int).Set(wideInt)
	bi.SetBigInt(src)
	src.SetInt64(7)
	c.Assert(bi.MathBigInt().Cmp(wideInt), qt.Equals, 0)

	// MathBigInt shares the value
	bi.MathBigInt().SetInt64(9)
	c.Assert(bi.String(), qt.Equals, "9")
}
