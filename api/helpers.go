package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data interface{}) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
	log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// httpWriteResult writes data, or the API error for err if not nil.
func httpWriteResult(w http.ResponseWriter, data any, err error) {
	if err != nil {
		FromError(err).Write(w)
		return
	}
	httpWriteJSON(w, data)
}

// signedRequest decodes the signed request in the body, recovers the caller
// and decodes the request data into data. The request must name the action,
// the ledger and the URL path it is sent to. On failure the error response is
// already written and ok is false.
func (a *API) signedRequest(w http.ResponseWriter, r *http.Request, action string, data any) (common.Address, bool) {
	sr := &types.SignedRequest{}
	if err := json.NewDecoder(r.Body).Decode(sr); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return common.Address{}, false
	}
	caller, err := ethereum.AddrFromSignature(sr.Payload, sr.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return common.Address{}, false
	}
	req, err := sr.Request()
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return common.Address{}, false
	}
	if req.Action != action {
		ErrActionMismatch.Withf("got %q, expected %q", req.Action, action).Write(w)
		return common.Address{}, false
	}
	if req.Ledger != a.ledger.Address() {
		ErrLedgerMismatch.Withf("got %s, expected %s", req.Ledger.Hex(), a.ledger.Address().Hex()).Write(w)
		return common.Address{}, false
	}
	if req.Path != r.URL.Path {
		ErrPathMismatch.Withf("got %q, expected %q", req.Path, r.URL.Path).Write(w)
		return common.Address{}, false
	}
	skew := a.now().Sub(req.Time())
	if skew > MaxRequestSkew || skew < -MaxRequestSkew {
		ErrStaleRequest.Withf("skew %s", skew).Write(w)
		return common.Address{}, false
	}
	if data != nil {
		if len(req.Data) == 0 {
			ErrMalformedBody.With("missing request data").Write(w)
			return common.Address{}, false
		}
		if err := json.Unmarshal(req.Data, data); err != nil {
			ErrMalformedBody.Withf("could not decode request data: %v", err).Write(w)
			return common.Address{}, false
		}
	}
	log.Debugw("signed request", "action", action, "caller", caller.Hex())
	return caller, true
}

// workIDParam parses the work id URL parameter.
func workIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	return uintParam(w, r, WorkIDURLParam)
}

func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("%s: %v", name, err).Write(w)
		return 0, false
	}
	return v, true
}

// addressParam parses the address URL parameter.
func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := ethereum.HexToAddress(chi.URLParam(r, AddressURLParam))
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return common.Address{}, false
	}
	return addr, true
}

// queryUint parses an optional numeric query parameter.
func queryUint(w http.ResponseWriter, r *http.Request, name string, def uint64) (uint64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("%s: %v", name, err).Write(w)
		return 0, false
	}
	return v, true
}
