// Package dataapi is the client for the managed GraphQL data API that owns
// all business records. The API exposes generated CRUD per model
// (getContacts, listContacts, createContacts, ...); Collection wraps that
// surface per model so callers never build GraphQL documents by hand.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/errors"
	"github.com/realtechee/platform/internal/httpclient"
)

// Client posts GraphQL documents to the data API endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *httpclient.SaferClient
	log      *zap.SugaredLogger
}

// New creates a data API client from configuration. The configured
// endpoint host is exempted from the SSRF private-IP block so staging
// setups pointing at an internal or local mock keep working.
func New(cfg am.DataAPI, log *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var allowedHosts []string
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Hostname() != "" {
		allowedHosts = []string{u.Hostname()}
	}

	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     httpclient.NewWithOptions(timeout, httpclient.Options{AllowedHosts: allowedHosts}),
		log:      log.Named("dataapi"),
	}
}

// NewWithHTTP creates a client with a custom HTTP client (tests).
func NewWithHTTP(endpoint, apiKey string, hc *httpclient.SaferClient, log *zap.SugaredLogger) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     hc,
		log:      log.Named("dataapi"),
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

// Execute posts a GraphQL document and unmarshals the data envelope into out.
// When both data and errors are present, the error wins.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.Wrap(err, "failed to marshal GraphQL request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to build data API request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.Wrap(errors.ErrUpstream, err.Error()), "data API request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return errors.Wrap(err, "failed to read data API response")
	}

	c.log.Debugw("Data API call",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrap(errors.ErrUnauthorized, "data API rejected API key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrThrottled, "data API throttled request")
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrUpstream, "data API returned HTTP %d", resp.StatusCode)
	}

	var envelope gqlResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return errors.Wrap(err, "failed to decode data API response")
	}

	if len(envelope.Errors) > 0 {
		return classifyGQLError(envelope.Errors[0])
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return errors.Wrap(err, "failed to decode data envelope")
		}
	}

	return nil
}

// classifyGQLError maps data API error classes onto platform sentinels
func classifyGQLError(e gqlError) error {
	switch e.ErrorType {
	case "Unauthorized", "UnauthorizedException":
		return errors.Wrap(errors.ErrUnauthorized, e.Message)
	case "ConditionalCheckFailedException", "ConflictUnhandled":
		return errors.Wrap(errors.ErrConflict, e.Message)
	case "DynamoDB:ProvisionedThroughputExceededException", "Throttled":
		return errors.Wrap(errors.ErrThrottled, e.Message)
	default:
		return errors.Wrap(errors.ErrUpstream, e.Message)
	}
}

// Ping checks data API reachability with a minimal introspection query.
func (c *Client) Ping(ctx context.Context) error {
	return c.Execute(ctx, `query Ping { __typename }`, nil, nil)
}
