package api

import (
	"net/http"

	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
)

// scores lists the scores of a work in submission order
// GET /works/{workId}/scores
func (a *API) scores(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	scores, err := a.ledger.Scores(id)
	httpWriteResult(w, &Scores{Scores: scores}, err)
}

// submitScore stores the encrypted score of the caller for a work
// POST /works/{workId}/scores
func (a *API) submitScore(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	data := &types.ScoreInput{}
	caller, ok := a.signedRequest(w, r, ActionSubmitScore, data)
	if !ok {
		return
	}
	if data.WorkID != id {
		ErrInvalidArgument.Withf("score is for work %d", data.WorkID).Write(w)
		return
	}
	if err := a.ledger.SubmitScore(caller, data); err != nil {
		FromError(err).Write(w)
		return
	}
	log.Infow("score submitted", "work", id, "reviewer", caller.Hex())
	httpWriteOK(w)
}

// score returns the score of a reviewer for a work
// GET /works/{workId}/scores/{address}
func (a *API) score(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	score, err := a.ledger.Score(id, addr)
	httpWriteResult(w, score, err)
}

// aggregatedScore returns the aggregate of a work, with Aggregated false
// while it has not been computed
// GET /works/{workId}/aggregate
func (a *API) aggregatedScore(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	agg, err := a.ledger.AggregatedScore(id)
	httpWriteResult(w, agg, err)
}

// aggregate computes the aggregate of a work
// POST /works/{workId}/aggregate
func (a *API) aggregate(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	caller, ok := a.signedRequest(w, r, ActionAggregate, nil)
	if !ok {
		return
	}
	if err := a.ledger.Aggregate(caller, id); err != nil {
		FromError(err).Write(w)
		return
	}
	agg, err := a.ledger.AggregatedScore(id)
	httpWriteResult(w, agg, err)
}

// aggregations lists the computed aggregates
// GET /aggregations
func (a *API) aggregations(w http.ResponseWriter, r *http.Request) {
	aggs, err := a.ledger.Aggregations()
	httpWriteResult(w, &Aggregations{Aggregations: aggs}, err)
}

// batchAggregate computes the aggregates of several works atomically
// POST /aggregations
func (a *API) batchAggregate(w http.ResponseWriter, r *http.Request) {
	data := &WorkIDs{}
	caller, ok := a.signedRequest(w, r, ActionAggregate, data)
	if !ok {
		return
	}
	if err := a.ledger.BatchAggregate(caller, data.WorkIDs); err != nil {
		FromError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// checkQualification computes the encrypted flags aggregate >= threshold of
// a work and grants the caller access to them
// POST /works/{workId}/qualification
func (a *API) checkQualification(w http.ResponseWriter, r *http.Request) {
	id, ok := workIDParam(w, r)
	if !ok {
		return
	}
	caller, ok := a.signedRequest(w, r, ActionCheckQualify, nil)
	if !ok {
		return
	}
	flags, err := a.ledger.CheckQualification(caller, id)
	httpWriteResult(w, &Qualification{WorkID: id, Flags: flags}, err)
}

// threshold returns the encrypted threshold
// GET /threshold
func (a *API) threshold(w http.ResponseWriter, r *http.Request) {
	th, err := a.ledger.Threshold()
	httpWriteResult(w, th, err)
}

// setThreshold replaces the encrypted threshold
// POST /threshold
func (a *API) setThreshold(w http.ResponseWriter, r *http.Request) {
	data := &SetThreshold{}
	caller, ok := a.signedRequest(w, r, ActionSetThreshold, data)
	if !ok {
		return
	}
	if err := a.ledger.SetThreshold(caller, data.Handle, data.Proof); err != nil {
		FromError(err).Write(w)
		return
	}
	httpWriteOK(w)
}
