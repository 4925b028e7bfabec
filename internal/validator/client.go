// Package validator calls the validation endpoint and classifies its responses.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"worklist-sentinel/common"
	"worklist-sentinel/internal/models"
	"worklist-sentinel/internal/session"
)

// Default endpoint layout, relative to the configured base URL.
const (
	DefaultApplyPath   = "/api/cart/apply-voucher"
	DefaultResetPath   = "/api/cart/reset-voucher"
	DefaultRefererPath = "/cart"
	DefaultClientType  = "web"
)

// Endpoint call bounds.
const (
	DefaultProbeTimeout       = 10 * time.Second
	DefaultAcknowledgeTimeout = 5 * time.Second
	maxResponseBytes          = 1 << 20
)

// Validator probes tokens and acknowledges the ones that stay in the worklist.
type Validator interface {
	Probe(ctx context.Context, token models.Token, sc *session.Context) (*models.ProbeResponse, error)
	Acknowledge(ctx context.Context, token models.Token, sc *session.Context)
}

// Config locates the endpoint and bounds each call.
type Config struct {
	ApplyURL           string
	ResetURL           string
	ProbeTimeout       time.Duration
	AcknowledgeTimeout time.Duration
}

// Client is the HTTP Validator.
type Client struct {
	client *http.Client
	cfg    Config
}

// NewClient returns a Client using httpClient for both calls.
func NewClient(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.AcknowledgeTimeout <= 0 {
		cfg.AcknowledgeTimeout = DefaultAcknowledgeTimeout
	}
	return &Client{client: httpClient, cfg: cfg}
}

// EndpointURL joins base and path.
func EndpointURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

type device struct {
	ClientType string `json:"client_type"`
}

type tokenRequest struct {
	VoucherID string `json:"voucherId"`
	Device    device `json:"device"`
}

// Probe submits the token and decodes the response. Any transport failure, timeout or
// undecodable body is returned as an error; the HTTP status itself is not inspected.
func (c *Client) Probe(ctx context.Context, token models.Token, sc *session.Context) (*models.ProbeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	body, err := c.post(ctx, c.cfg.ApplyURL, token, sc)
	if err != nil {
		return nil, err
	}
	return models.ParseProbeResponse(body)
}

// Acknowledge resets server-side state for the token. The result is never inspected.
func (c *Client) Acknowledge(ctx context.Context, token models.Token, sc *session.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AcknowledgeTimeout)
	defer cancel()

	if _, err := c.post(ctx, c.cfg.ResetURL, token, sc); err != nil {
		log.Printf("acknowledge token=%s: %v", common.MaskToken(string(token)), err)
	}
}

func (c *Client) post(ctx context.Context, url string, token models.Token, sc *session.Context) ([]byte, error) {
	payload, err := json.Marshal(tokenRequest{
		VoucherID: string(token),
		Device:    device{ClientType: DefaultClientType},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if sc != nil {
		sc.Apply(req)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}
