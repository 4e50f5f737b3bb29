package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-jury/api"
	"github.com/vocdoni/confidential-jury/crypto/ethereum"
	"github.com/vocdoni/confidential-jury/ledger"
	"github.com/vocdoni/confidential-jury/log"
	"github.com/vocdoni/confidential-jury/types"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost
	// HTTPDELETE is the method string used for calling Request()
	HTTPDELETE = http.MethodDelete

	errCodeNot200 = "API error"

	// DefaultRetries this enables Request() to handle the situation where the server connection fails
	DefaultRetries = 3
	// DefaultTimeout is the default timeout for the HTTP client
	DefaultTimeout = 10 * time.Second
)

// ErrNoSigner is returned by mutations when the client has no signing key.
var ErrNoSigner = errors.New("client has no signing key")

// APIError is an error response of the API. It unwraps to the ledger or fhe
// error behind the code, so callers can use errors.Is as with an in-process
// ledger.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d (code %d): %s", errCodeNot200, e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return api.Sentinel(e.Code)
}

// HTTPclient is the jury ledger API HTTP client.
type HTTPclient struct {
	c       *http.Client
	host    *url.URL
	retries int
	signer  *ethereum.SignKeys
	ledger  common.Address
}

// New connects to the API host and returns the handle. Mutations are signed
// with signer, which may be nil for a read only client.
func New(host string, signer *ethereum.SignKeys) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		IdleConnTimeout:    DefaultTimeout,
		DisableCompression: false,
		WriteBufferSize:    1 * 1024 * 1024, // 1 MiB
		ReadBufferSize:     1 * 1024 * 1024, // 1 MiB
	}
	c := &HTTPclient{
		c:       &http.Client{Transport: tr, Timeout: DefaultTimeout},
		host:    hostURL,
		retries: DefaultRetries,
		signer:  signer,
	}
	log.Debugw("http client created", "host", hostURL.String())
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	info, err := c.LedgerInfo(context.Background())
	if err != nil {
		return nil, err
	}
	c.ledger = info.Address
	return c, nil
}

// SetRetries configures the number of retries for the HTTP client.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = n
}

// SetTimeout configures the timeout for the HTTP client.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
	if tr, ok := c.c.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = d
	}
}

// Address returns the address of the ledger behind the API.
func (c *HTTPclient) Address() common.Address {
	return c.ledger
}

// Caller returns the address requests are signed with.
func (c *HTTPclient) Caller() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// Request performs a `method` type raw request to the endpoint specified in urlPath parameter.
// Method is either GET, POST or DELETE. If jsonBody is not nil it is sent as JSON. Returns the
// response, the status code and an error.
//
// Supports query parameters via `params` slice. If the slice is not empty, it should contain pairs of strings;
// the first element of each pair is the key, and the second element is the value.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	return c.RequestContext(context.Background(), method, jsonBody, params, urlPath...)
}

// RequestContext is Request bound to ctx. Connection failures are retried
// until ctx is done.
func (c *HTTPclient) RequestContext(ctx context.Context, method string, jsonBody any, params []string,
	urlPath ...string,
) ([]byte, int, error) {
	var (
		body []byte
		err  error
	)

	// Marshal the JSON body if provided.
	if jsonBody != nil {
		body, err = json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	// Parse the base host URL
	u, err := url.Parse(c.host.String())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse host URL: %w", err)
	}

	// Join path segments
	u.Path = path.Join(u.Path, path.Join(urlPath...))

	// Expecting even-length slice: [key1, val1, key2, val2, ...]
	if len(params) > 0 {
		values := url.Values{}
		for i := 0; i < len(params)-1; i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}

	headers := http.Header{}
	if jsonBody != nil {
		headers.Set("Content-Type", "application/json")
		headers.Set("Accept", "application/json")
	}

	// Log the request details, truncating body if large
	log.Debugw("http client request",
		"type", method,
		"url", u.String(),
		"body", func() string {
			if len(body) > 512 {
				return string(body[:512]) + "..."
			}
			return string(body)
		}(),
	)

	var resp *http.Response
	for i := 1; i <= c.retries; i++ {
		// Create a fresh request each attempt
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, rerr := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if rerr != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", rerr)
		}
		req.Header = headers

		resp, err = c.c.Do(req)
		if err == nil {
			break
		}
		log.Warnw("http request failed", "error", err.Error(), "attempt", i, "retries", c.retries)
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("http request ultimately failed after retries: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, resp.StatusCode, nil
}

// call performs a request and decodes the JSON response into out, which may
// be nil. Error responses are returned as *APIError.
func (c *HTTPclient) call(ctx context.Context, method string, body, out any, params []string,
	urlPath ...string,
) error {
	data, status, err := c.RequestContext(ctx, method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &APIError{Status: status}
		if jerr := json.Unmarshal(data, apiErr); jerr != nil {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

// signed sends a signed request for action carrying data.
func (c *HTTPclient) signed(ctx context.Context, method, action string, data, out any, urlPath ...string) error {
	if c.signer == nil {
		return ErrNoSigner
	}
	endpoint := path.Join(append([]string{"/"}, urlPath...)...)
	req, err := types.NewRequest(action, c.ledger, endpoint, data, time.Now())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("cannot encode request: %w", err)
	}
	sig, err := c.signer.SignEthereum(payload)
	if err != nil {
		return fmt.Errorf("cannot sign request: %w", err)
	}
	return c.call(ctx, method, &types.SignedRequest{Payload: payload, Signature: sig}, out, nil, urlPath...)
}

// LedgerInfo returns a summary of the ledger.
func (c *HTTPclient) LedgerInfo(ctx context.Context) (*ledger.Info, error) {
	info := &ledger.Info{}
	return info, c.call(ctx, HTTPGET, nil, info, nil, api.InfoEndpoint)
}
