package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/types"
)

// Owner is the ledger owner.
type Owner struct {
	Owner common.Address `json:"owner"`
}

// TransferOwnership is the data of a transfer-ownership request.
type TransferOwnership struct {
	NewOwner common.Address `json:"newOwner"`
}

// Reviewers is the data of an add-reviewers request and the reviewer list
// response.
type Reviewers struct {
	Addresses []common.Address  `json:"addresses,omitempty"`
	Reviewers []*types.Reviewer `json:"reviewers,omitempty"`
}

// ReviewerStatus tells whether an address is an active reviewer.
type ReviewerStatus struct {
	Address  common.Address `json:"address"`
	Reviewer bool           `json:"reviewer"`
}

// RemoveReviewer is the data of a remove-reviewer request. The address must
// match the URL.
type RemoveReviewer struct {
	Address common.Address `json:"address"`
}

// NewWorks is the data of an add-works request.
type NewWorks struct {
	Works []*types.WorkInput `json:"works"`
}

// WorkIDs lists work ids. It is the response of add-works and the data of
// the batch requests.
type WorkIDs struct {
	WorkIDs []uint64 `json:"workIds"`
}

// Works is the work list response.
type Works struct {
	Works []*types.Work `json:"works"`
}

// Scores is the score list response.
type Scores struct {
	Scores []*types.Score `json:"scores"`
}

// Aggregations is the aggregate list response.
type Aggregations struct {
	Aggregations []*types.AggregatedScore `json:"aggregations"`
}

// Qualification holds the encrypted per dimension flags aggregate >= threshold.
type Qualification struct {
	WorkID uint64                         `json:"workId"`
	Flags  [types.Dimensions]types.Handle `json:"flags"`
}

// SetThreshold is the data of a set-threshold request. The handle and proof
// are encrypted inputs bound to the ledger and the caller.
type SetThreshold struct {
	Handle types.Handle   `json:"handle"`
	Proof  types.HexBytes `json:"proof"`
}

// AllowDisclosure is the data of an allow-disclosure request. A zero
// principal grants the caller.
type AllowDisclosure struct {
	WorkIDs   []uint64       `json:"workIds"`
	Principal common.Address `json:"principal,omitempty"`
}

// DisclosureStatus tells whether a principal may decrypt the aggregate of a
// work.
type DisclosureStatus struct {
	WorkID    uint64         `json:"workId"`
	Principal common.Address `json:"principal"`
	Allowed   bool           `json:"allowed"`
}

// Grants is the disclosure grant list response.
type Grants struct {
	Grants []*types.DisclosureGrant `json:"grants"`
}

// Publish is the data of a publish request. Averages holds one list per
// dimension, each with one entry per work.
type Publish struct {
	WorkIDs  []uint64                   `json:"workIds"`
	Averages [types.Dimensions][]uint16 `json:"averages"`
}

// Results is the result list response.
type Results struct {
	Results []*types.PublicResult `json:"results"`
}

// Events is the event list response.
type Events struct {
	Events []*types.Event `json:"events"`
}

// EncryptInputs is the data of an encrypt-inputs request.
type EncryptInputs struct {
	Values []uint16 `json:"values"`
}
