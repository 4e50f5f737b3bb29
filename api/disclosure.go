package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/log"
)

// grants lists the disclosure grants
// GET /disclosures
func (a *API) grants(w http.ResponseWriter, r *http.Request) {
	grants, err := a.ledger.Grants()
	httpWriteResult(w, &Grants{Grants: grants}, err)
}

// allowDisclosure grants the caller, or the given principal, access to the
// aggregates of the works
// POST /disclosures
func (a *API) allowDisclosure(w http.ResponseWriter, r *http.Request) {
	data := &AllowDisclosure{}
	caller, ok := a.signedRequest(w, r, ActionAllowDisclosure, data)
	if !ok {
		return
	}
	principal := data.Principal
	if principal == (common.Address{}) {
		principal = caller
	}
	if err := a.ledger.BatchAllowDisclosureTo(caller, data.WorkIDs, principal); err != nil {
		FromError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// isDisclosureAllowed reports whether a principal may decrypt the aggregate
// of a work
// GET /works/{workId}/disclosures/{address}
func (a *API) isDisclosureAllowed(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	allowed, err := a.ledger.IsDisclosureAllowed(id, addr)
	httpWriteResult(w, &DisclosureStatus{WorkID: id, Principal: addr, Allowed: allowed}, err)
}

// results lists the published results in publication order
// GET /results
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	results, err := a.ledger.Results()
	httpWriteResult(w, &Results{Results: results}, err)
}

// result returns the result at a position of the publication order
// GET /results/{index}
func (a *API) result(w http.ResponseWriter, r *http.Request) {
	i, ok := uintParam(w, r, IndexURLParam)
	if !ok {
		return
	}
	res, err := a.ledger.ResultAt(i)
	httpWriteResult(w, res, err)
}

// publish records the plaintext averages of one or more works
// POST /results
func (a *API) publish(w http.ResponseWriter, r *http.Request) {
	data := &Publish{}
	caller, ok := a.signedRequest(w, r, ActionPublish, data)
	if !ok {
		return
	}
	avg := data.Averages
	if err := a.ledger.Publish(caller, data.WorkIDs, avg[0], avg[1], avg[2], avg[3]); err != nil {
		FromError(err).Write(w)
		return
	}
	log.Infow("results published", "works", data.WorkIDs)
	httpWriteOK(w)
}

// events lists the persisted ledger events
// GET /events?from=N&limit=M
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	from, ok := queryUint(w, r, FromQueryParam, 0)
	if !ok {
		return
	}
	limit, ok := queryUint(w, r, LimitQueryParam, DefaultEventLimit)
	if !ok {
		return
	}
	if limit == 0 || limit > MaxEventLimit {
		limit = MaxEventLimit
	}
	events, err := a.ledger.Events(from, int(limit))
	httpWriteResult(w, &Events{Events: events}, err)
}

// fheInfo describes the fhe backend
// GET /fhe
func (a *API) fheInfo(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, a.ledger.Backend().Info())
}

// encryptInputs encrypts values for the caller, bound to this ledger. It is
// the only way to produce inputs for backends that attest inputs server side.
// POST /fhe/inputs
func (a *API) encryptInputs(w http.ResponseWriter, r *http.Request) {
	data := &EncryptInputs{}
	caller, ok := a.signedRequest(w, r, ActionEncryptInputs, data)
	if !ok {
		return
	}
	if len(data.Values) == 0 {
		ErrInvalidArgument.With("no values").Write(w)
		return
	}
	in, err := a.ledger.Backend().EncryptInputs(fhe.InputContext{Contract: a.ledger.Address(), User: caller}, data.Values...)
	httpWriteResult(w, in, err)
}

// userDecrypt is the decryption oracle. The request carries its own EIP-712
// signature, so it is not wrapped in a signed request.
// POST /fhe/decrypt
func (a *API) userDecrypt(w http.ResponseWriter, r *http.Request) {
	req := &fhe.UserDecryptRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	resp, err := a.ledger.Backend().UserDecrypt(req)
	if err != nil {
		log.Debugw("decryption refused", "user", req.UserAddress.Hex(), "error", err.Error())
	}
	httpWriteResult(w, resp, err)
}
