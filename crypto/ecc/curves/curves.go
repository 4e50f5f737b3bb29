package curves

import (
	"fmt"

	"github.com/vocdoni/confidential-jury/crypto/ecc"
	bjj_gnark "github.com/vocdoni/confidential-jury/crypto/ecc/bjj_gnark"
)

const (
	CurveTypeBabyJubJub      = "bjj_gnark" // Default bjj curve type
	CurveTypeBabyJubJubGnark = "bjj_gnark"
)

// New creates a new instance of a Curve implementation based on the provided type string.
// The supported types are defined as constants in this package.
// If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	switch curveType {
	case CurveTypeBabyJubJubGnark:
		return bjj_gnark.New()
	default:
		panic(fmt.Sprintf("unsupported curve type: %s", curveType))
	}
}

// IsValid reports whether the curve type is supported.
func IsValid(curveType string) bool {
	return curveType == CurveTypeBabyJubJubGnark
}
