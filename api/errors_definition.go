//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// api/client maps the codes back to the ledger and fhe sentinel errors, so a renumbered code silently
// changes the errors seen by remote callers.
var (
	ErrResourceNotFound      = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody         = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedParam        = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed URL parameter")}
	ErrUnauthorized          = Error{Code: 40007, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrDuplicate             = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("duplicate")}
	ErrInvalidState          = Error{Code: 40009, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("invalid state")}
	ErrProofVerification     = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("input proof verification failed")}
	ErrShape                 = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("mismatched input lengths")}
	ErrInvalidArgument       = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid argument")}
	ErrStaleRequest          = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("request timestamp out of range")}
	ErrActionMismatch        = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("request action does not match the endpoint")}
	ErrExpiredGrant          = Error{Code: 40015, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("authorization outside its validity window")}
	ErrDecryptNotAllowed     = Error{Code: 40016, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("not allowed to decrypt")}
	ErrInvalidAuthSignature  = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid authorization signature")}
	ErrUnknownHandle         = Error{Code: 40018, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown handle")}
	ErrTypeMismatch          = Error{Code: 40019, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("handle type mismatch")}
	ErrInvalidDecryptRequest = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid decryption request")}
	ErrInvalidInputProof     = Error{Code: 40021, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid input proof")}
	ErrLedgerMismatch        = Error{Code: 40022, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("request is signed for another ledger")}
	ErrPathMismatch          = Error{Code: 40023, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("request path does not match the endpoint")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
