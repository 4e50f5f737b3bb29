// Package disclosure runs the client side flow that turns an aggregated,
// disclosure-granted work into published averages: it creates an ephemeral
// key pair, has the owner sign a time-bounded decryption authorization, asks
// the decryption oracle for the sums sealed to the ephemeral key, computes
// the rounded averages and publishes them.
//
// The flow can be cancelled until the authorization is signed. From the
// decryption request on it runs to completion, so that a signed
// authorization is never left without a recorded outcome.
package disclosure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
)

// Step names a stage of the flow.
type Step string

const (
	StepLoad      Step = "load"
	StepKeypair   Step = "keypair"
	StepAuthorize Step = "authorize"
	StepSign      Step = "sign"
	StepDecrypt   Step = "decrypt"
	StepCompute   Step = "compute"
	StepPublish   Step = "publish"
)

// Status is the final state of a run.
type Status string

const (
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// ErrDeclined is returned by a Signer when the user refuses to sign.
var ErrDeclined = errors.New("signature declined")

// StepError reports the step at which a run failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("disclosure %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Signer signs typed data on behalf of a principal. It may block waiting for
// a human and must honour ctx cancellation.
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error)
}

// Oracle is the decryption service of the fhe backend.
type Oracle interface {
	Info(ctx context.Context) (*fhe.Info, error)
	UserDecrypt(ctx context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error)
}

// Ledger is the part of the ledger the flow reads and writes, acting as the
// signer.
type Ledger interface {
	Address() common.Address
	AggregatedScore(ctx context.Context, workID uint64) (*types.AggregatedScore, error)
	Publish(ctx context.Context, workID uint64, averages [types.Dimensions]uint16) error
}

// Options tune an Orchestrator.
type Options struct {
	// DurationDays is the validity of the authorization,
	// types.DefaultDisclosureDays if zero.
	DurationDays uint64
	// Now returns the current time; time.Now if nil.
	Now func() time.Time
	// MaxRetryTime bounds the retries of the decryption and publication
	// steps. Defaults to one minute.
	MaxRetryTime time.Duration
}

// Outcome is the result of a run. Sums and Averages are set once the
// decryption step succeeded, even if publication failed.
type Outcome struct {
	SessionID     string                   `json:"sessionId"`
	WorkID        uint64                   `json:"workId"`
	Status        Status                   `json:"status"`
	ReviewerCount uint32                   `json:"reviewerCount"`
	Sums          [types.Dimensions]uint64 `json:"sums"`
	Averages      [types.Dimensions]uint16 `json:"averages"`
	Authorization *fhe.Authorization       `json:"authorization,omitempty"`
}

// Orchestrator runs the disclosure flow.
type Orchestrator struct {
	signer Signer
	oracle Oracle
	ledger Ledger
	opts   Options
}

// New returns an Orchestrator.
func New(signer Signer, oracle Oracle, l Ledger, opts Options) *Orchestrator {
	if opts.DurationDays == 0 {
		opts.DurationDays = types.DefaultDisclosureDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetryTime == 0 {
		opts.MaxRetryTime = time.Minute
	}
	return &Orchestrator{signer: signer, oracle: oracle, ledger: l, opts: opts}
}

// Run discloses and publishes the averages of a work. A declined or
// cancelled signature yields a cancelled outcome and no error. Any other
// failure is a *StepError.
func (o *Orchestrator) Run(ctx context.Context, workID uint64) (*Outcome, error) {
	out := &Outcome{SessionID: uuid.NewString(), WorkID: workID, Status: StatusFailed}
	logger := func(msg string, kv ...any) {
		log.Infow(msg, append([]any{"session", out.SessionID, "work", workID}, kv...)...)
	}
	logger("disclosure started", "signer", o.signer.Address().Hex())

	// 1. load the aggregate
	agg, err := o.ledger.AggregatedScore(ctx, workID)
	if err != nil {
		return o.cancelledOr(ctx, out, StepLoad, err)
	}
	if !agg.Aggregated {
		return out, &StepError{Step: StepLoad, Err: fmt.Errorf("%w: work %d not aggregated yet", ledger.ErrState, workID)}
	}
	if agg.ReviewerCount == 0 {
		return out, &StepError{Step: StepLoad, Err: fmt.Errorf("%w: work %d has no reviewers", ledger.ErrState, workID)}
	}
	out.ReviewerCount = agg.ReviewerCount
	info, err := o.oracle.Info(ctx)
	if err != nil {
		return o.cancelledOr(ctx, out, StepLoad, err)
	}

	// 2. ephemeral key pair
	key, err := fhe.NewEphemeralKey()
	if err != nil {
		return out, &StepError{Step: StepKeypair, Err: err}
	}

	// 3. authorization
	contract := o.ledger.Address()
	auth := &fhe.Authorization{
		PublicKey:         key.PublicKeyBytes(),
		ContractAddresses: []common.Address{contract},
		StartTimestamp:    uint64(o.opts.Now().Unix()),
		DurationDays:      o.opts.DurationDays,
	}
	if auth.DurationDays > fhe.MaxDurationDays {
		return out, &StepError{Step: StepAuthorize, Err: fmt.Errorf("%w: duration above %d days",
			fhe.ErrInvalidRequest, fhe.MaxDurationDays)}
	}
	out.Authorization = auth

	// 4. signature, the last point where the user can walk away
	sig, err := o.signer.SignTypedData(ctx, auth.TypedData(info.Domain))
	if errors.Is(err, ErrDeclined) {
		logger("disclosure declined")
		out.Status = StatusCancelled
		return out, nil
	}
	if err != nil {
		return o.cancelledOr(ctx, out, StepSign, err)
	}
	if err := ctx.Err(); err != nil {
		return o.cancelledOr(ctx, out, StepSign, err)
	}
	ctx = context.WithoutCancel(ctx)

	// 5. decryption
	req := &fhe.UserDecryptRequest{
		Handles:         agg.Sums[:],
		ContractAddress: contract,
		UserAddress:     o.signer.Address(),
		Authorization:   *auth,
		Signature:       sig,
	}
	var resp *fhe.UserDecryptResponse
	if err := o.retry(ctx, StepDecrypt, out.SessionID, func() error {
		var err error
		resp, err = o.oracle.UserDecrypt(ctx, req)
		if isPermanentOracleError(err) {
			return backoff.Permanent(err)
		}
		return err
	}); err != nil {
		return out, &StepError{Step: StepDecrypt, Err: err}
	}
	values, err := fhe.Open(key, resp)
	if err != nil {
		return out, &StepError{Step: StepDecrypt, Err: err}
	}
	for d, h := range agg.Sums {
		v, ok := values[h]
		if !ok {
			return out, &StepError{Step: StepDecrypt, Err: fmt.Errorf("%w: no value for %s", fhe.ErrUnknownHandle, h)}
		}
		out.Sums[d] = v
	}

	// 6. averages
	averages, err := Averages(out.Sums, agg.ReviewerCount)
	if err != nil {
		return out, &StepError{Step: StepCompute, Err: err}
	}
	out.Averages = averages
	logger("averages computed", "averages", averages)

	// 7. publication
	if err := o.retry(ctx, StepPublish, out.SessionID, func() error {
		err := o.ledger.Publish(ctx, workID, averages)
		if isPermanentLedgerError(err) {
			return backoff.Permanent(err)
		}
		return err
	}); err != nil {
		return out, &StepError{Step: StepPublish, Err: err}
	}
	out.Status = StatusPublished
	logger("disclosure published")
	return out, nil
}

// cancelledOr turns a failure caused by ctx cancellation into a cancelled
// outcome.
func (o *Orchestrator) cancelledOr(ctx context.Context, out *Outcome, step Step, err error) (*Outcome, error) {
	if ctx.Err() != nil {
		log.Infow("disclosure cancelled", "session", out.SessionID, "step", step)
		out.Status = StatusCancelled
		return out, nil
	}
	return out, &StepError{Step: step, Err: err}
}

func (o *Orchestrator) retry(ctx context.Context, step Step, session string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = o.opts.MaxRetryTime
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Warnw("disclosure step failed, retrying", "session", session, "step", step,
			"error", err.Error(), "next", next.String())
	})
}

func isPermanentOracleError(err error) bool {
	for _, target := range []error{
		fhe.ErrExpiredGrant, fhe.ErrUnauthorized, fhe.ErrInvalidSignature,
		fhe.ErrUnknownHandle, fhe.ErrInvalidRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isPermanentLedgerError(err error) bool {
	for _, target := range []error{
		ledger.ErrUnauthorized, ledger.ErrNotFound, ledger.ErrDuplicate, ledger.ErrState,
		ledger.ErrShape, ledger.ErrInvalidArgument, ledger.ErrProofVerification,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Averages divides each sum by count, rounding half up.
func Averages(sums [types.Dimensions]uint64, count uint32) ([types.Dimensions]uint16, error) {
	var averages [types.Dimensions]uint16
	if count == 0 {
		return averages, fmt.Errorf("no reviewers")
	}
	n := uint64(count)
	for d, sum := range sums {
		avg := (2*sum + n) / (2 * n)
		if avg > types.MaxDimensionScore {
			return averages, fmt.Errorf("%s average %d above %d", types.DimensionNames[d], avg, types.MaxDimensionScore)
		}
		averages[d] = uint16(avg)
	}
	return averages, nil
}

// KeySigner signs with a local key, without user interaction.
type KeySigner struct {
	Keys *ethereum.SignKeys
}

// Address implements Signer.
func (s *KeySigner) Address() common.Address {
	return s.Keys.Address()
}

// SignTypedData implements Signer.
func (s *KeySigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Keys.SignTypedData(td)
}

// LocalOracle exposes an in-process backend as an Oracle.
func LocalOracle(b fhe.Backend) Oracle {
	return &localOracle{backend: b}
}

type localOracle struct {
	backend fhe.Backend
}

func (l *localOracle) Info(ctx context.Context) (*fhe.Info, error) {
	return l.backend.Info(), ctx.Err()
}

func (l *localOracle) UserDecrypt(_ context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error) {
	return l.backend.UserDecrypt(req)
}
