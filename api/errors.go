package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus is ignored.
//
// Example output: {"error":"not found: work 7 does not exist","code":40001}
func (e Error) MarshalJSON() ([]byte, error) {
	// This anon struct is needed to actually include the error string,
	// since it wouldn't be marshaled otherwise. (json.Marshal doesn't call Err.Error())
	return json.Marshal(
		struct {
			Err  string `json:"error"`
			Code int    `json:"code"`
		}{
			Err:  e.Err.Error(),
			Code: e.Code,
		})
}

// Error returns the Message contained inside the APIerror
func (e Error) Error() string {
	return e.Err.Error()
}

// Write serializes a JSON msg using APIerror.Message and APIerror.Code
// and passes that to ctx.Send()
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("API error response", "error", e.Error(), "code", e.Code, "httpStatus", e.HTTPstatus)
	}
	// set the content type to JSON
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(msg), e.HTTPstatus)
}

// Withf returns a copy of APIerror with the Sprintf formatted string appended at the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// With returns a copy of APIerror with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of APIerror with err.Error() appended at the end of e.Err
func (e Error) WithErr(err error) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, err.Error()),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// sentinels pairs the domain errors with their API errors. Ledger errors come
// first since they may wrap an fhe error.
var sentinels = []struct {
	err error
	api Error
}{
	{ledger.ErrNotFound, ErrResourceNotFound},
	{ledger.ErrUnauthorized, ErrUnauthorized},
	{ledger.ErrDuplicate, ErrDuplicate},
	{ledger.ErrState, ErrInvalidState},
	{ledger.ErrProofVerification, ErrProofVerification},
	{ledger.ErrShape, ErrShape},
	{ledger.ErrInvalidArgument, ErrInvalidArgument},
	{fhe.ErrExpiredGrant, ErrExpiredGrant},
	{fhe.ErrUnauthorized, ErrDecryptNotAllowed},
	{fhe.ErrInvalidSignature, ErrInvalidAuthSignature},
	{fhe.ErrUnknownHandle, ErrUnknownHandle},
	{fhe.ErrTypeMismatch, ErrTypeMismatch},
	{fhe.ErrInvalidRequest, ErrInvalidDecryptRequest},
	{fhe.ErrInvalidProof, ErrInvalidInputProof},
}

// FromError returns the API error for a ledger or fhe error. Unknown errors
// are internal server errors.
func FromError(err error) Error {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return Error{Err: err, Code: s.api.Code, HTTPstatus: s.api.HTTPstatus}
		}
	}
	return ErrGenericInternalServerError.WithErr(err)
}

// Sentinel returns the ledger or fhe error behind an API error code, or nil
// if the code does not correspond to a domain error.
func Sentinel(code int) error {
	for _, s := range sentinels {
		if s.api.Code == code {
			return s.err
		}
	}
	return nil
}
