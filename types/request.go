package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Request is the payload of a signed mutation. Action names the operation and
// must match the endpoint it is sent to. Ledger and Path pin the request to
// one ledger and one URL path, so the signature cannot be reused against
// another ledger or another resource. Timestamp is in unix seconds.
type Request struct {
	Action    string          `json:"action"`
	Ledger    common.Address  `json:"ledger"`
	Path      string          `json:"path"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewRequest builds a request for action on the ledger at path carrying data.
func NewRequest(action string, ledger common.Address, path string, data any, now time.Time) (*Request, error) {
	r := &Request{Action: action, Ledger: ledger, Path: path, Timestamp: now.Unix()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request data: %w", err)
		}
		r.Data = raw
	}
	return r, nil
}

// Time returns the request timestamp.
func (r *Request) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// SignedRequest carries the exact payload bytes that were signed, so the
// server recovers the caller from the same bytes the client signed.
type SignedRequest struct {
	Payload   HexBytes `json:"payload"`
	Signature HexBytes `json:"signature"`
}

// Request decodes the payload.
func (s *SignedRequest) Request() (*Request, error) {
	r := &Request{}
	if err := json.Unmarshal(s.Payload, r); err != nil {
		return nil, fmt.Errorf("malformed request payload: %w", err)
	}
	return r, nil
}
