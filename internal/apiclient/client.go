// Copyright 2025 James Ross
// Package apiclient implements the search API client (C2): a single
// search operation with page-bounds validation, 5xx retry with
// exponential backoff, and circuit-breaker gating.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goldilockshq/profile-crawler/internal/breaker"
	"github.com/goldilockshq/profile-crawler/internal/config"
	"github.com/goldilockshq/profile-crawler/internal/errs"
	"github.com/goldilockshq/profile-crawler/internal/obs"
	"github.com/goldilockshq/profile-crawler/internal/paramset"
	"go.uber.org/zap"
)

// SearchResponse is the subset of the API's JSON body the core inspects.
// Anything else in the body is opaque and passed through to the writer
// untouched via RawBody.
type SearchResponse struct {
	Counts struct {
		ProfilesTotalResults int `json:"profiles_total_results"`
	} `json:"counts"`
	RawBody []byte `json:"-"`
}

// Client executes search requests against the configured endpoint.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	cb         *breaker.CircuitBreaker
	log        *zap.Logger
}

// New builds a Client with its own breaker and HTTP transport. Each
// downloader worker owns one Client instance; they share no mutable state.
func New(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.API.RequestTimeout,
		},
		cb:  breaker.New(cfg.CircuitBreaker.Window, cfg.CircuitBreaker.CooldownPeriod, cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.MinSamples),
		log: log,
	}
}

type requestBody struct {
	RevealAllData bool                             `json:"reveal_all_data"`
	PageNumber    int                              `json:"page_number"`
	PageSize      int                              `json:"page_size"`
	Parameters    map[string]paramset.FilterValue `json:"parameters"`
}

// fixedDoublingBackOff implements backoff.BackOff with the exact 1s, 2s,
// 4s sequence the retry policy specifies; cenkalti/backoff/v4's built-in
// exponential backoff jitters and grows by a configurable multiplier,
// neither of which matches the fixed doubling this API's retry policy
// requires, so the sequence is expressed directly against the library's
// BackOff interface instead.
type fixedDoublingBackOff struct {
	base    time.Duration
	attempt int
}

func (b *fixedDoublingBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(1<<uint(b.attempt-1))
}

func (b *fixedDoublingBackOff) Reset() { b.attempt = 0 }

// Search executes one page request. Preconditions 1<=pageNumber<=100 and
// 1<=pageSize<=100 are enforced fail-fast as InvalidArgument.
func (c *Client) Search(ctx context.Context, pageNumber, pageSize int, params paramset.Set) (*SearchResponse, error) {
	if pageNumber < 1 || pageNumber > 100 {
		return nil, errs.NewInvalidArgument(fmt.Sprintf("page_number %d out of range [1,100]", pageNumber))
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, errs.NewInvalidArgument(fmt.Sprintf("page_size %d out of range [1,100]", pageSize))
	}

	if !c.cb.Allow() {
		return nil, errs.NewTransientRemote(fmt.Errorf("circuit breaker open"))
	}

	reqBody := requestBody{
		RevealAllData: false,
		PageNumber:    pageNumber,
		PageSize:      pageSize,
		Parameters:    params.Raw(),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errs.NewProgrammerError(fmt.Errorf("marshal request body: %w", err))
	}

	maxAttempts := c.cfg.API.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	bo := backoff.WithMaxRetries(&fixedDoublingBackOff{base: c.cfg.API.RetryBase}, uint64(maxAttempts-1))

	var resp *SearchResponse
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		start := time.Now()
		r, attemptErr := c.doAttempt(ctx, payload)
		obs.PageFetchDuration.Observe(time.Since(start).Seconds())
		if attemptErr == nil {
			resp = r
			return nil
		}
		if errs.IsTransientRemote(attemptErr) && attempt < maxAttempts {
			return attemptErr
		}
		return backoff.Permanent(attemptErr)
	}, bo)

	prevState := c.cb.State()
	c.cb.Record(err == nil)
	newState := c.cb.State()
	obs.CircuitBreakerState.Set(float64(newState))
	if newState == breaker.Open && prevState != breaker.Open {
		obs.CircuitBreakerTrips.Inc()
	}
	if err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return nil, perm.Err
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) doAttempt(ctx context.Context, payload []byte) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.API.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errs.NewProgrammerError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.API.APIKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errs.NewTransientRemote(err)
		}
		if isTimeout(err) {
			return nil, errs.NewTransientRemote(err)
		}
		return nil, errs.NewPermanentRemote(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errs.NewPermanentRemote(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode >= 500 && httpResp.StatusCode <= 599 {
		return nil, errs.NewTransientRemote(fmt.Errorf("server error: status %d", httpResp.StatusCode))
	}
	if httpResp.StatusCode >= 400 {
		return nil, errs.NewPermanentRemote(fmt.Errorf("client error: status %d", httpResp.StatusCode))
	}

	var decoded SearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errs.NewPermanentRemote(fmt.Errorf("decode response: %w", err))
	}
	decoded.RawBody = body
	return &decoded, nil
}

type timeouter interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}
