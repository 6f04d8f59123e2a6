// Package client provides a Go client for the contradeploy ledger API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a ledger API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new ledger API client for a server such as http://127.0.0.1:8090
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DeploymentSummary is a deployment as returned in listings
type DeploymentSummary struct {
	ChainID      int64     `json:"chainId"`
	Network      string    `json:"network"`
	Address      string    `json:"address"`
	ContractName string    `json:"contractName"`
	Verified     bool      `json:"verified"`
	TxHash       string    `json:"txHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Deployment is a full ledger entry
type Deployment struct {
	ID              string     `json:"id"`
	ContractName    string     `json:"contractName"`
	Network         string     `json:"network"`
	ChainID         int64      `json:"chainId"`
	Address         string     `json:"address"`
	DeployerAddress string     `json:"deployerAddress"`
	TxHash          string     `json:"txHash"`
	BlockNumber     uint64     `json:"blockNumber"`
	GasUsed         uint64     `json:"gasUsed"`
	ExportPath      string     `json:"exportPath"`
	TimestampedPath string     `json:"timestampedPath"`
	Verified        bool       `json:"verified"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	VerifiedOn      []string   `json:"verifiedOn"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ListOptions filters and pages a deployment listing
type ListOptions struct {
	Network  string
	ChainID  int64
	Contract string
	Verified *bool
	Limit    int
	Cursor   string
}

// ListDeploymentsResponse is the response for listing deployments
type ListDeploymentsResponse struct {
	Data       []DeploymentSummary `json:"data"`
	Pagination Pagination          `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ListDeployments lists recorded deployments, newest first
func (c *Client) ListDeployments(ctx context.Context, opts ListOptions) (*ListDeploymentsResponse, error) {
	q := url.Values{}
	if opts.Network != "" {
		q.Set("network", opts.Network)
	}
	if opts.ChainID != 0 {
		q.Set("chain_id", strconv.FormatInt(opts.ChainID, 10))
	}
	if opts.Contract != "" {
		q.Set("contract", opts.Contract)
	}
	if opts.Verified != nil {
		q.Set("verified", strconv.FormatBool(*opts.Verified))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/api/v1/deployments"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListDeploymentsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDeployment gets a deployment by chain ID and address
func (c *Client) GetDeployment(ctx context.Context, chainID int64, address string) (*Deployment, error) {
	var resp Deployment
	path := fmt.Sprintf("/api/v1/deployments/%d/%s", chainID, url.PathEscape(address))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns nil when the server answers its health check
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	errResp.Error.Status = resp.StatusCode
	return &errResp.Error
}
