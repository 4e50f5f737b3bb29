package types

const (
	// Dimensions is the number of scored dimensions per work.
	Dimensions = 4
	// MaxDimensionScore is the highest score a reviewer can give on a
	// dimension, and the highest publishable average.
	MaxDimensionScore = 100
	// DefaultDisclosureDays is the validity of a decryption authorization
	// when none is given.
	DefaultDisclosureDays = 7
)

// DimensionNames are the names of the scored dimensions, in order.
var DimensionNames = [Dimensions]string{"narrative", "cinematography", "sound", "editing"}
