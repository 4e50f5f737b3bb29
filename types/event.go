package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a ledger event.
type EventKind string

const (
	EventReviewerAdded        EventKind = "reviewer-added"
	EventReviewerRemoved      EventKind = "reviewer-removed"
	EventWorkAdded            EventKind = "work-added"
	EventScoreSubmitted       EventKind = "score-submitted"
	EventScoresAggregated     EventKind = "scores-aggregated"
	EventThresholdSet         EventKind = "threshold-set"
	EventDisclosureAuthorized EventKind = "disclosure-authorized"
	EventResultsPublished     EventKind = "results-published"
	EventOwnershipTransferred EventKind = "ownership-transferred"
)

// Event is an entry of the ledger event log. Seq is assigned on commit and is
// strictly increasing.
type Event struct {
	Seq       uint64         `json:"seq"                cbor:"0,keyasint"`
	Kind      EventKind      `json:"kind"               cbor:"1,keyasint"`
	WorkIDs   []uint64       `json:"workIds,omitempty"  cbor:"2,keyasint,omitempty"`
	Principal common.Address `json:"principal"          cbor:"3,keyasint,omitempty"`
	Previous  common.Address `json:"previous"           cbor:"4,keyasint,omitempty"`
	Count     uint32         `json:"count,omitempty"    cbor:"5,keyasint,omitempty"`
	Handle    Handle         `json:"handle"             cbor:"6,keyasint,omitempty"`
	Title     string         `json:"title,omitempty"    cbor:"7,keyasint,omitempty"`
	Director  string         `json:"director,omitempty" cbor:"8,keyasint,omitempty"`
	Time      time.Time      `json:"time"               cbor:"9,keyasint,omitempty"`
}

func (e *Event) String() string {
	return fmt.Sprintf("#%d %s works=%v principal=%s", e.Seq, e.Kind, e.WorkIDs, e.Principal.Hex())
}
