// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blinklabs-io/minstrel/internal/ttlcache"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultCacheTTL    = 60 * time.Second

	cacheKeyMainnet  = "mainnet"
	cacheKeyMinUtxo  = "minUtxo"
	cacheKeyAdaPrice = "adaUsdPrice"
)

// Client is an HTTP client for the chain-interface service REST API.
type Client struct {
	baseURL     string
	authToken   string
	httpClient  *http.Client
	boolCache   *ttlcache.Cache[string, bool]
	amountCache *ttlcache.Cache[string, int64]
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAuthToken sets a bearer token sent on every request.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithCacheTTL overrides the expiry of the mainnet/min-UTXO/price caches.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.boolCache = ttlcache.New[string, bool](ttl)
		c.amountCache = ttlcache.New[string, int64](ttl)
	}
}

// NewClient creates a new chain-interface service client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:       defaultHTTPTimeout,
			CheckRedirect: httpsOnlyRedirect,
		},
		boolCache:   ttlcache.New[string, bool](defaultCacheTTL),
		amountCache: ttlcache.New[string, int64](defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// httpsOnlyRedirect rejects redirects to non-HTTPS URLs to prevent
// downgrade attacks and SSRF.
func httpsOnlyRedirect(
	req *http.Request,
	via []*http.Request,
) error {
	if len(via) >= 10 {
		return errors.New("too many redirects")
	}
	if req.URL.Scheme != "https" {
		return fmt.Errorf(
			"redirect to non-HTTPS URL blocked: %s",
			req.URL,
		)
	}
	return nil
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"chain service %s returned status %d: %s",
		e.Path,
		e.StatusCode,
		e.Body,
	)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	reqBody any,
	respBody any,
) error {
	var bodyReader io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(
		ctx,
		method,
		c.baseURL+path,
		bodyReader,
	)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if respBody != nil {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}
	return nil
}

// QueryLiveUtxos implements ChainService.
func (c *Client) QueryLiveUtxos(
	ctx context.Context,
	address string,
) ([]Utxo, error) {
	if address == "" {
		return nil, errors.New("address is required")
	}
	var ret []Utxo
	err := c.do(
		ctx,
		http.MethodGet,
		"/v1/utxos/"+url.PathEscape(address),
		nil,
		&ret,
	)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// BuildTransaction implements ChainService.
func (c *Client) BuildTransaction(
	ctx context.Context,
	req BuildTxRequest,
) (BuildTxResponse, error) {
	var ret BuildTxResponse
	err := c.do(ctx, http.MethodPost, "/v1/transactions/build", req, &ret)
	if err != nil {
		return BuildTxResponse{}, err
	}
	return ret, nil
}

// SubmitTransaction implements ChainService.
func (c *Client) SubmitTransaction(
	ctx context.Context,
	txCbor string,
) (SubmitTxResponse, error) {
	req := struct {
		TransactionCbor string `json:"transactionCbor"`
	}{TransactionCbor: txCbor}
	var ret SubmitTxResponse
	err := c.do(ctx, http.MethodPost, "/v1/transactions/submit", req, &ret)
	if err != nil {
		return SubmitTxResponse{}, err
	}
	return ret, nil
}

// MonitorPaymentAddress implements ChainService. The timeout is enforced by
// the service; the local HTTP client allows a little extra so the server,
// not the transport, decides the outcome.
func (c *Client) MonitorPaymentAddress(
	ctx context.Context,
	address string,
	lovelace int64,
	timeout time.Duration,
) (bool, error) {
	req := struct {
		Address   string `json:"address"`
		Lovelace  int64  `json:"lovelace"`
		TimeoutMs int64  `json:"timeoutMs"`
	}{
		Address:   address,
		Lovelace:  lovelace,
		TimeoutMs: timeout.Milliseconds(),
	}
	var ret struct {
		Success bool `json:"success"`
	}
	// Per-call client whose transport timeout exceeds the server-side
	// monitor window
	monitor := *c
	monitor.httpClient = &http.Client{
		Timeout:       timeout + defaultHTTPTimeout,
		CheckRedirect: httpsOnlyRedirect,
	}
	err := monitor.do(ctx, http.MethodPost, "/v1/payments/monitor", req, &ret)
	if err != nil {
		return false, err
	}
	return ret.Success, nil
}

// IsMainnet implements ChainService. The flag is cached; it carries no
// correctness requirement beyond staleness tolerance.
func (c *Client) IsMainnet(ctx context.Context) (bool, error) {
	return c.boolCache.GetOrFill(cacheKeyMainnet, func() (bool, error) {
		var ret struct {
			IsMainnet bool `json:"isMainnet"`
		}
		if err := c.do(ctx, http.MethodGet, "/v1/network", nil, &ret); err != nil {
			return false, err
		}
		return ret.IsMainnet, nil
	})
}

// QueryStreamTokenMinUtxo implements ChainService, with a short-lived cache.
func (c *Client) QueryStreamTokenMinUtxo(ctx context.Context) (int64, error) {
	return c.amountCache.GetOrFill(cacheKeyMinUtxo, func() (int64, error) {
		var ret struct {
			Lovelace int64 `json:"lovelace"`
		}
		err := c.do(ctx, http.MethodGet, "/v1/protocol/min-utxo", nil, &ret)
		if err != nil {
			return 0, err
		}
		return ret.Lovelace, nil
	})
}

// QueryAdaUSDPrice implements ChainService, with a short-lived cache.
func (c *Client) QueryAdaUSDPrice(ctx context.Context) (int64, error) {
	return c.amountCache.GetOrFill(cacheKeyAdaPrice, func() (int64, error) {
		var ret struct {
			UsdPerAda int64 `json:"usdPerAda"`
		}
		err := c.do(ctx, http.MethodGet, "/v1/prices/ada-usd", nil, &ret)
		if err != nil {
			return 0, err
		}
		return ret.UsdPerAda, nil
	})
}

// Compile-time interface check
var _ ChainService = (*Client)(nil)
