package acs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"breakwatch/internal/config"
	"breakwatch/internal/credstore"
	"breakwatch/internal/metrics"
	"breakwatch/internal/model"
)

// ErrUpstream covers any failure talking to the vendor access-control
// API. Requests that hit it fail whole; nothing is retried here.
var ErrUpstream = errors.New("access control api request failed")

// tokenSlack refreshes the cached credential slightly before the
// vendor-reported expiry to avoid racing it.
const tokenSlack = 30 * time.Second

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        *http.Client
	creds        credstore.Store
	logger       *slog.Logger
	mu           sync.Mutex
}

func NewClient(cfg config.VendorConfig, creds credstore.Store, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpc:        &http.Client{Timeout: timeout},
		creds:        creds,
		logger:       logger,
	}
}

type doorListResponse struct {
	Result struct {
		Doors []model.Door `json:"doors"`
	} `json:"result"`
}

func (c *Client) FetchDoors(ctx context.Context, siteID string) ([]model.Door, error) {
	q := url.Values{}
	if siteID != "" {
		q.Set("siteId", siteID)
	}
	var resp doorListResponse
	if err := c.get(ctx, "/v1/doors", q, &resp); err != nil {
		return nil, err
	}
	return resp.Result.Doors, nil
}

type eventListResponse struct {
	Result struct {
		Events []model.RawEvent `json:"events"`
		Token  string           `json:"token"`
	} `json:"result"`
}

// FetchAccessEvents pulls every event in [startUnix, endUnix), following
// the vendor's continuation token until the window is exhausted, and
// returns the fully materialized list.
func (c *Client) FetchAccessEvents(ctx context.Context, startUnix, endUnix int64) ([]model.RawEvent, error) {
	var events []model.RawEvent
	token := ""
	for {
		q := url.Values{}
		q.Set("start", strconv.FormatInt(startUnix, 10))
		q.Set("end", strconv.FormatInt(endUnix, 10))
		if token != "" {
			q.Set("pageToken", token)
		}
		var resp eventListResponse
		if err := c.get(ctx, "/v1/events", q, &resp); err != nil {
			return nil, err
		}
		events = append(events, resp.Result.Events...)
		if resp.Result.Token == "" || resp.Result.Token == token {
			return events, nil
		}
		token = resp.Result.Token
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// token returns a bearer token, reusing the cached credential while it
// is still valid and requesting a fresh one otherwise.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if cred, ok, err := c.creds.Load(ctx); err == nil && ok && cred.Valid(now.Add(tokenSlack)) {
		return cred.AccessToken, nil
	} else if err != nil && c.logger != nil {
		c.logger.Warn("credential cache read failed", "err", err)
	}

	body, _ := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	metrics.VendorRequests.WithLabelValues("token", "attempt").Inc()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.VendorRequests.WithLabelValues("token", "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.VendorRequests.WithLabelValues("token", "error").Inc()
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrUpstream, resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		metrics.VendorRequests.WithLabelValues("token", "error").Inc()
		return "", fmt.Errorf("%w: decode token response: %v", ErrUpstream, err)
	}
	if tr.AccessToken == "" {
		metrics.VendorRequests.WithLabelValues("token", "error").Inc()
		return "", fmt.Errorf("%w: token endpoint returned empty token", ErrUpstream)
	}
	metrics.VendorRequests.WithLabelValues("token", "ok").Inc()

	cred := model.Credential{
		AccessToken: tr.AccessToken,
		ExpiresAt:   now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if err := c.creds.Save(ctx, cred); err != nil && c.logger != nil {
		c.logger.Warn("credential cache write failed", "err", err)
	}
	return cred.AccessToken, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	metrics.VendorRequests.WithLabelValues(path, "attempt").Inc()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.VendorRequests.WithLabelValues(path, "error").Inc()
		return fmt.Errorf("%w: GET %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.VendorRequests.WithLabelValues(path, "error").Inc()
		return fmt.Errorf("%w: GET %s returned %d", ErrUpstream, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.VendorRequests.WithLabelValues(path, "error").Inc()
		return fmt.Errorf("%w: decode %s response: %v", ErrUpstream, path, err)
	}
	metrics.VendorRequests.WithLabelValues(path, "ok").Inc()
	return nil
}
