package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/vocdoni/confidential-jury/api/client"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/disclosure"
	"github.com/vocdoni/confidential-jury/fhe"
	"github.com/vocdoni/confidential-jury/fhe/backends"
	"github.com/vocdoni/confidential-jury/types"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(data))
	return err
}

func parseIDs(args []string) ([]uint64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing work id")
	}
	ids := make([]uint64, len(args))
	for i, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid work id %q", a)
		}
		ids[i] = id
	}
	return ids, nil
}

func parseAddrs(args []string) ([]common.Address, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing address")
	}
	addrs := make([]common.Address, len(args))
	for i, a := range args {
		addr, err := ethereum.HexToAddress(a)
		if err != nil {
			return nil, err
		}
		addrs[i] = addr
	}
	return addrs, nil
}

// parseDimensions reads a work id followed by one value per dimension.
func parseDimensions(args []string) (uint64, [types.Dimensions]uint16, error) {
	var dims [types.Dimensions]uint16
	if len(args) != 1+types.Dimensions {
		return 0, dims, fmt.Errorf("expected a work id and %d values", types.Dimensions)
	}
	ids, err := parseIDs(args[:1])
	if err != nil {
		return 0, dims, err
	}
	for d, a := range args[1:] {
		v, err := strconv.ParseUint(a, 10, 16)
		if err != nil || v > types.MaxDimensionScore {
			return 0, dims, fmt.Errorf("invalid %s value %q, expected 0 to %d", types.DimensionNames[d], a,
				types.MaxDimensionScore)
		}
		dims[d] = uint16(v)
	}
	return ids[0], dims, nil
}

// encrypt produces inputs for the caller, locally when the backend allows it.
func encrypt(ctx context.Context, e *env, values ...uint16) (*fhe.EncryptedInput, error) {
	if e.keys == nil {
		return nil, client.ErrNoSigner
	}
	info, err := e.cli.Info(ctx)
	if err != nil {
		return nil, err
	}
	enc, local, err := backends.Encryptor(info)
	if err != nil {
		return nil, err
	}
	if !local {
		return e.cli.EncryptInputs(ctx, values...)
	}
	return enc.EncryptInputs(fhe.InputContext{Contract: e.cli.Address(), User: e.keys.Address()}, values...)
}

// decrypt user-decrypts handles the caller has access to.
func decrypt(ctx context.Context, e *env, handles []types.Handle) (map[types.Handle]uint64, error) {
	if e.keys == nil {
		return nil, client.ErrNoSigner
	}
	info, err := e.cli.Info(ctx)
	if err != nil {
		return nil, err
	}
	key, err := fhe.NewEphemeralKey()
	if err != nil {
		return nil, err
	}
	auth := fhe.Authorization{
		PublicKey:         key.PublicKeyBytes(),
		ContractAddresses: []common.Address{e.cli.Address()},
		StartTimestamp:    uint64(time.Now().Unix()),
		DurationDays:      1,
	}
	sig, err := e.keys.SignTypedData(auth.TypedData(info.Domain))
	if err != nil {
		return nil, err
	}
	resp, err := e.cli.UserDecrypt(ctx, &fhe.UserDecryptRequest{
		Handles:         handles,
		ContractAddress: e.cli.Address(),
		UserAddress:     e.keys.Address(),
		Authorization:   auth,
		Signature:       sig,
	})
	if err != nil {
		return nil, err
	}
	return fhe.Open(key, resp)
}

func runInfo(ctx context.Context, e *env, _ []string) error {
	info, err := e.cli.LedgerInfo(ctx)
	if err != nil {
		return err
	}
	return printJSON(info)
}

func runAddReviewer(ctx context.Context, e *env, args []string) error {
	addrs, err := parseAddrs(args)
	if err != nil {
		return err
	}
	if err := e.cli.AddReviewers(ctx, addrs...); err != nil {
		return err
	}
	fmt.Printf("%d reviewer(s) added\n", len(addrs))
	return nil
}

func runRemoveReviewer(ctx context.Context, e *env, args []string) error {
	addrs, err := parseAddrs(args)
	if err != nil {
		return err
	}
	if len(addrs) != 1 {
		return fmt.Errorf("expected one address")
	}
	return e.cli.RemoveReviewer(ctx, addrs[0])
}

func runListReviewers(ctx context.Context, e *env, _ []string) error {
	reviewers, err := e.cli.Reviewers(ctx)
	if err != nil {
		return err
	}
	for _, r := range reviewers {
		fmt.Printf("%3d  %s\n", r.Index, r.Address.Hex())
	}
	return nil
}

func runAddWork(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("add-work", flag.ContinueOnError)
	in := &types.WorkInput{}
	var hash, file string
	fs.StringVar(&in.Title, "title", "", "title")
	fs.StringVar(&in.Director, "director", "", "director")
	fs.Uint32Var(&in.Duration, "duration", 0, "duration in seconds")
	fs.StringVar(&in.Metadata, "metadata", "", "metadata URI")
	fs.StringVar(&hash, "submission-hash", "", "hex hash of the submitted file")
	fs.StringVar(&file, "file", "", "JSON file with a list of works")
	if err := fs.Parse(args); err != nil {
		return err
	}
	works := []*types.WorkInput{in}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		works = nil
		if err := json.Unmarshal(data, &works); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	} else if hash != "" {
		var err error
		if in.SubmissionHash, err = types.HexStringToHexBytes(hash); err != nil {
			return err
		}
	}
	ids, err := e.cli.AddWorks(ctx, works...)
	if err != nil {
		return err
	}
	for i, id := range ids {
		fmt.Printf("work %d: %s\n", id, works[i].Title)
	}
	return nil
}

func runListWorks(ctx context.Context, e *env, _ []string) error {
	works, err := e.cli.Works(ctx)
	if err != nil {
		return err
	}
	for _, w := range works {
		fmt.Printf("%3d  %s (%s)\n", w.ID, w.Title, w.Director)
	}
	return nil
}

func runScore(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	comment := fs.String("comment", "", "comment, only its hash is stored")
	if err := fs.Parse(args); err != nil {
		return err
	}
	workID, dims, err := parseDimensions(fs.Args())
	if err != nil {
		return err
	}
	in, err := encrypt(ctx, e, dims[:]...)
	if err != nil {
		return err
	}
	score := &types.ScoreInput{WorkID: workID, InputProof: in.Proof}
	copy(score.Dimensions[:], in.Handles)
	if *comment != "" {
		score.CommentHash = ethereum.HashRaw([]byte(*comment))
	}
	if err := e.cli.SubmitScore(ctx, score); err != nil {
		return err
	}
	fmt.Printf("score submitted for work %d\n", workID)
	return nil
}

func runAggregate(ctx context.Context, e *env, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if err := e.cli.Aggregate(ctx, ids...); err != nil {
		return err
	}
	for _, id := range ids {
		agg, err := e.cli.AggregatedScore(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("work %d aggregated over %d reviewer(s)\n", id, agg.ReviewerCount)
	}
	return nil
}

func runAuthorize(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("authorize", flag.ContinueOnError)
	to := fs.String("to", "", "principal to authorize, the caller if empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}
	var principal common.Address
	if *to != "" {
		if principal, err = ethereum.HexToAddress(*to); err != nil {
			return err
		}
	}
	return e.cli.AllowDisclosure(ctx, principal, ids...)
}

func runThreshold(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected a threshold value")
	}
	v, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid threshold %q", args[0])
	}
	in, err := encrypt(ctx, e, uint16(v))
	if err != nil {
		return err
	}
	return e.cli.SetThreshold(ctx, in.Handles[0], in.Proof)
}

func runQualify(ctx context.Context, e *env, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("expected one work id")
	}
	flags, err := e.cli.CheckQualification(ctx, ids[0])
	if err != nil {
		return err
	}
	values, err := decrypt(ctx, e, flags[:])
	if err != nil {
		return err
	}
	for d, h := range flags {
		verdict := "below"
		if values[h] == 1 {
			verdict = "meets"
		}
		fmt.Printf("%-15s %s threshold\n", types.DimensionNames[d], verdict)
	}
	return nil
}

func runDisclose(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("disclose", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "sign without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids, err := parseIDs(fs.Args())
	if err != nil {
		return err
	}
	if e.keys == nil {
		return client.ErrNoSigner
	}
	signer := &promptSigner{keys: e.keys, in: os.Stdin, out: os.Stderr, yes: *yes}
	orch := disclosure.New(signer, e.cli, e.cli, disclosure.Options{
		DurationDays: e.cfg.DurationDays,
		MaxRetryTime: e.cfg.RetryLimit,
	})
	for _, id := range ids {
		out, err := orch.Run(ctx, id)
		if err != nil {
			return err
		}
		if out.Status == disclosure.StatusCancelled {
			fmt.Printf("work %d: cancelled\n", id)
			continue
		}
		if err := printJSON(out); err != nil {
			return err
		}
	}
	return nil
}

func runPublish(ctx context.Context, e *env, args []string) error {
	workID, averages, err := parseDimensions(args)
	if err != nil {
		return err
	}
	return e.cli.Publish(ctx, workID, averages)
}

func runResults(ctx context.Context, e *env, _ []string) error {
	results, err := e.cli.Results(ctx)
	if err != nil {
		return err
	}
	for i, r := range results {
		fmt.Printf("%3d  work %d  %s (%s)  %v  overall %d\n", i, r.WorkID, r.Title, r.Director, r.Averages, r.Overall())
	}
	return nil
}

func runTransferOwnership(ctx context.Context, e *env, args []string) error {
	addrs, err := parseAddrs(args)
	if err != nil {
		return err
	}
	if len(addrs) != 1 {
		return fmt.Errorf("expected one address")
	}
	return e.cli.TransferOwnership(ctx, addrs[0])
}

func runEvents(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	from := fs.Uint64("from", 0, "first sequence number")
	limit := fs.Int("limit", 100, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	events, err := e.cli.Events(ctx, *from, *limit)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Println(ev.String())
	}
	return nil
}
