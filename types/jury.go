package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WorkInput holds the organizer supplied fields of a new work.
type WorkInput struct {
	Title          string   `json:"title"          cbor:"0,keyasint,omitempty"`
	Director       string   `json:"director"       cbor:"1,keyasint,omitempty"`
	Duration       uint32   `json:"duration"       cbor:"2,keyasint,omitempty"`
	SubmissionHash HexBytes `json:"submissionHash" cbor:"3,keyasint,omitempty"`
	Metadata       string   `json:"metadata"       cbor:"4,keyasint,omitempty"`
}

// Work is a registered candidate work. Works are immutable once created and
// their ids are assigned sequentially starting at zero.
type Work struct {
	ID             uint64    `json:"id"             cbor:"0,keyasint"`
	Title          string    `json:"title"          cbor:"1,keyasint,omitempty"`
	Director       string    `json:"director"       cbor:"2,keyasint,omitempty"`
	Duration       uint32    `json:"duration"       cbor:"3,keyasint,omitempty"`
	SubmissionHash HexBytes  `json:"submissionHash" cbor:"4,keyasint,omitempty"`
	Metadata       string    `json:"metadata"       cbor:"5,keyasint,omitempty"`
	Exists         bool      `json:"exists"         cbor:"6,keyasint,omitempty"`
	CreatedAt      time.Time `json:"createdAt"      cbor:"7,keyasint,omitempty"`
}

func (w *Work) String() string {
	data, err := json.Marshal(w)
	if err != nil {
		return ""
	}
	return string(data)
}

// Reviewer is a registry entry. Index is the position in the insertion order
// and is reassigned when a removed reviewer is added again.
type Reviewer struct {
	Address common.Address `json:"address" cbor:"0,keyasint"`
	Active  bool           `json:"active"  cbor:"1,keyasint,omitempty"`
	Index   uint64         `json:"index"   cbor:"2,keyasint"`
	AddedAt time.Time      `json:"addedAt" cbor:"3,keyasint,omitempty"`
}

// ScoreInput is the payload of a score submission.
type ScoreInput struct {
	WorkID      uint64             `json:"workId"      cbor:"0,keyasint"`
	Dimensions  [Dimensions]Handle `json:"dimensions"  cbor:"1,keyasint"`
	InputProof  HexBytes           `json:"inputProof"  cbor:"2,keyasint,omitempty"`
	CommentHash HexBytes           `json:"commentHash" cbor:"3,keyasint,omitempty"`
}

// Score is a stored submission, unique per (work, reviewer).
type Score struct {
	WorkID      uint64             `json:"workId"      cbor:"0,keyasint"`
	Reviewer    common.Address     `json:"reviewer"    cbor:"1,keyasint"`
	Dimensions  [Dimensions]Handle `json:"dimensions"  cbor:"2,keyasint"`
	CommentHash HexBytes           `json:"commentHash" cbor:"3,keyasint,omitempty"`
	SubmittedAt time.Time          `json:"submittedAt" cbor:"4,keyasint,omitempty"`
}

// AggregatedScore holds the encrypted per dimension sums of a work. It is
// written exactly once.
type AggregatedScore struct {
	WorkID        uint64             `json:"workId"        cbor:"0,keyasint"`
	Sums          [Dimensions]Handle `json:"sums"          cbor:"1,keyasint"`
	ReviewerCount uint32             `json:"reviewerCount" cbor:"2,keyasint"`
	Aggregated    bool               `json:"aggregated"    cbor:"3,keyasint,omitempty"`
	AggregatedAt  time.Time          `json:"aggregatedAt"  cbor:"4,keyasint,omitempty"`
}

// Threshold is the encrypted qualification threshold.
type Threshold struct {
	Value      Handle    `json:"value"      cbor:"0,keyasint"`
	Configured bool      `json:"configured" cbor:"1,keyasint,omitempty"`
	SetAt      time.Time `json:"setAt"      cbor:"2,keyasint,omitempty"`
}

// DisclosureGrant records that a principal may decrypt the aggregate of a
// work.
type DisclosureGrant struct {
	WorkID    uint64         `json:"workId"    cbor:"0,keyasint"`
	Principal common.Address `json:"principal" cbor:"1,keyasint"`
	GrantedAt time.Time      `json:"grantedAt" cbor:"2,keyasint,omitempty"`
}

// PublicResult is a published plaintext result. Title and director are copied
// from the work when the result is published.
type PublicResult struct {
	WorkID      uint64             `json:"workId"      cbor:"0,keyasint"`
	Title       string             `json:"title"       cbor:"1,keyasint,omitempty"`
	Director    string             `json:"director"    cbor:"2,keyasint,omitempty"`
	Averages    [Dimensions]uint16 `json:"averages"    cbor:"3,keyasint"`
	PublishedAt time.Time          `json:"publishedAt" cbor:"4,keyasint,omitempty"`
}

// Overall returns the mean of the four averages, rounded half up.
func (r *PublicResult) Overall() uint16 {
	var sum uint32
	for _, a := range r.Averages {
		sum += uint32(a)
	}
	return uint16((2*sum + Dimensions) / (2 * Dimensions))
}
