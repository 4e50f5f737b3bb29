package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/disclosure"
)

// promptSigner asks for confirmation before signing with a local key.
type promptSigner struct {
	keys *ethereum.SignKeys
	in   io.Reader
	out  io.Writer
	yes  bool

	once  sync.Once
	lines chan lineResult
}

type lineResult struct {
	line string
	err  error
}

func (p *promptSigner) Address() common.Address {
	return p.keys.Address()
}

func (p *promptSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) ([]byte, error) {
	if !p.yes {
		fmt.Fprintf(p.out, "Signer:   %s\n", p.keys.Address().Hex())
		fmt.Fprintf(p.out, "Domain:   %s v%s chain %s contract %s\n",
			td.Domain.Name, td.Domain.Version, (*big.Int)(td.Domain.ChainId), td.Domain.VerifyingContract)
		fmt.Fprintf(p.out, "Request:  %s\n", td.PrimaryType)
		fmt.Fprintf(p.out, "Contracts: %v\n", td.Message["contractAddresses"])
		if start, ok := td.Message["startTimestamp"].(string); ok {
			fmt.Fprintf(p.out, "Start:    %s (%s days)\n", formatUnix(start), td.Message["durationDays"])
		}
		fmt.Fprint(p.out, "Sign this decryption authorization? [y/N] ")
		answer, err := p.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			return nil, disclosure.ErrDeclined
		}
	}
	return p.keys.SignTypedData(td)
}

func formatUnix(s string) string {
	var ts int64
	if _, err := fmt.Sscan(s, &ts); err != nil {
		return s
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

// readLine reads the next answer, giving up when ctx is done. A single
// goroutine reads p.in for the life of the signer. A prompt that gives up
// leaves that read pending and its line goes to the next prompt.
func (p *promptSigner) readLine(ctx context.Context) (string, error) {
	p.once.Do(func() {
		p.lines = make(chan lineResult)
		go func() {
			defer close(p.lines)
			r := bufio.NewReader(p.in)
			for {
				line, err := r.ReadString('\n')
				if err == io.EOF && line != "" {
					err = nil
				}
				p.lines <- lineResult{line, err}
				if err != nil {
					return
				}
			}
		}()
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.lines:
		if !ok || res.err == io.EOF {
			return "", disclosure.ErrDeclined
		}
		return res.line, res.err
	}
}
