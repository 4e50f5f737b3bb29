package api

import (
	"net/http"

	"github.com/vocdoni/confidential-jury/log"
)

// info returns a summary of the ledger
// GET /info
func (a *API) info(w http.ResponseWriter, r *http.Request) {
	info, err := a.ledger.Info()
	httpWriteResult(w, info, err)
}

// owner returns the ledger owner
// GET /owner
func (a *API) owner(w http.ResponseWriter, r *http.Request) {
	owner, err := a.ledger.Owner()
	httpWriteResult(w, &Owner{Owner: owner}, err)
}

// transferOwnership hands the ledger to a new owner
// POST /owner
func (a *API) transferOwnership(w http.ResponseWriter, r *http.Request) {
	data := &TransferOwnership{}
	caller, ok := a.signedRequest(w, r, ActionTransferOwnership, data)
	if !ok {
		return
	}
	if err := a.ledger.TransferOwnership(caller, data.NewOwner); err != nil {
		FromError(err).Write(w)
		return
	}
	log.Infow("ownership transferred", "owner", data.NewOwner.Hex())
	httpWriteJSON(w, &Owner{Owner: data.NewOwner})
}

// reviewers lists the active reviewers
// GET /reviewers
func (a *API) reviewers(w http.ResponseWriter, r *http.Request) {
	reviewers, err := a.ledger.Reviewers()
	httpWriteResult(w, &Reviewers{Reviewers: reviewers}, err)
}

// addReviewers registers one or more reviewers atomically
// POST /reviewers
func (a *API) addReviewers(w http.ResponseWriter, r *http.Request) {
	data := &Reviewers{}
	caller, ok := a.signedRequest(w, r, ActionAddReviewers, data)
	if !ok {
		return
	}
	var err error
	if len(data.Addresses) == 1 {
		err = a.ledger.AddReviewer(caller, data.Addresses[0])
	} else {
		err = a.ledger.BatchAddReviewers(caller, data.Addresses)
	}
	if err != nil {
		FromError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// reviewer reports whether an address is an active reviewer
// GET /reviewers/{address}
func (a *API) reviewer(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	active, err := a.ledger.IsReviewer(addr)
	httpWriteResult(w, &ReviewerStatus{Address: addr, Reviewer: active}, err)
}

// removeReviewer deactivates a reviewer
// DELETE /reviewers/{address}
func (a *API) removeReviewer(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	data := &RemoveReviewer{}
	caller, ok := a.signedRequest(w, r, ActionRemoveReviewer, data)
	if !ok {
		return
	}
	if data.Address != addr {
		ErrInvalidArgument.Withf("request is for %s", data.Address.Hex()).Write(w)
		return
	}
	if err := a.ledger.RemoveReviewer(caller, addr); err != nil {
		FromError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// works lists the registered works
// GET /works
func (a *API) works(w http.ResponseWriter, r *http.Request) {
	works, err := a.ledger.Works()
	httpWriteResult(w, &Works{Works: works}, err)
}

// addWorks registers one or more works atomically and returns their ids
// POST /works
func (a *API) addWorks(w http.ResponseWriter, r *http.Request) {
	data := &NewWorks{}
	caller, ok := a.signedRequest(w, r, ActionAddWorks, data)
	if !ok {
		return
	}
	ids, err := a.ledger.BatchAddWorks(caller, data.Works)
	httpWriteResult(w, &WorkIDs{WorkIDs: ids}, err)
}

// work returns a work
// GET /works/{workId}
func (a *API) work(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	work, err := a.ledger.Work(id)
	httpWriteResult(w, work, err)
}
