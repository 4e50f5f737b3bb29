package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals to and from a decimal string in
// json and to a cbor bignum.
type BigInt big.Int

func (i *BigInt) MarshalText() ([]byte, error) {
	return (*big.Int)(i).MarshalText()
}

func (i *BigInt) UnmarshalText(data []byte) error {
	if err := (*big.Int)(i).UnmarshalText(data); err != nil {
		return fmt.Errorf("invalid big int %q: %w", data, err)
	}
	return nil
}

func (i BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal((*big.Int)(&i))
}

func (i *BigInt) UnmarshalCBOR(data []byte) error {
	return cbor.Unmarshal(data, (*big.Int)(i))
}

// MathBigInt returns the *big.Int representation.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// SetUint64 sets the value of i to x and returns i.
func (i *BigInt) SetUint64(x uint64) *BigInt {
	(*big.Int)(i).SetUint64(x)
	return i
}

// SetBigInt sets the value of i to x and returns i.
func (i *BigInt) SetBigInt(x *big.Int) *BigInt {
	(*big.Int)(i).Set(x)
	return i
}
