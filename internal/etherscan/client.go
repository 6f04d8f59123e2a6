// Package etherscan submits contract source verification to Etherscan-compatible
// block explorers (Etherscan, Polygonscan) and polls for the result.
package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrVerificationFailed is returned when the explorer rejects the submission
var ErrVerificationFailed = errors.New("verification failed")

// Response messages the explorer uses for states that are not errors
const (
	resultPending         = "Pending in queue"
	resultAlreadyVerified = "Already Verified"
	resultPass            = "Pass - Verified"
)

// Client is an Etherscan API client
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	interval   time.Duration
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithPollInterval sets how often the verification status is checked.
// Every request to the explorer is spaced by at least this interval.
func WithPollInterval(d time.Duration) Option {
	return func(client *Client) {
		client.interval = d
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(client *Client) {
		client.logger = l
	}
}

// New creates a new explorer client for apiURL (e.g. https://api.etherscan.io/api)
func New(apiURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		interval: 5 * time.Second,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.limiter = rate.NewLimiter(rate.Every(c.interval), 1)

	return c
}

// SubmitRequest is a standard-JSON source verification request
type SubmitRequest struct {
	Address         string
	ContractName    string // fully qualified, "contracts/ChainBattles.sol:ChainBattles"
	CompilerVersion string // "v0.8.10+commit.fc410830"
	StandardJSON    []byte
	ConstructorArgs string // hex without 0x
}

// apiResponse is the envelope every explorer endpoint returns
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r *apiResponse) resultString() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return string(r.Result)
	}
	return s
}

// APIError is a status "0" response from the explorer
type APIError struct {
	Message string
	Result  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Result)
}

// Submit sends the source for verification and returns the job GUID. A
// contract that is already verified returns an empty GUID and no error.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	compiler := req.CompilerVersion
	if compiler != "" && !strings.HasPrefix(compiler, "v") {
		compiler = "v" + compiler
	}

	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.Address)
	form.Set("sourceCode", string(req.StandardJSON))
	form.Set("codeformat", "solidity-standard-json-input")
	form.Set("contractname", req.ContractName)
	form.Set("compilerversion", compiler)
	// the explorer's parameter name is misspelled
	form.Set("constructorArguements", strings.TrimPrefix(req.ConstructorArgs, "0x"))

	resp, err := c.post(ctx, form)
	if err != nil {
		return "", err
	}

	result := resp.resultString()
	if resp.Status != "1" {
		if strings.Contains(result, resultAlreadyVerified) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrVerificationFailed, &APIError{Message: resp.Message, Result: result})
	}
	return result, nil
}

// CheckStatus returns whether the job finished, and an error when it failed
func (c *Client) CheckStatus(ctx context.Context, guid string) (bool, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("module", "contract")
	q.Set("action", "checkverifystatus")
	q.Set("guid", guid)

	resp, err := c.get(ctx, q)
	if err != nil {
		return false, err
	}

	result := resp.resultString()
	switch {
	case resp.Status == "1":
		return true, nil
	case strings.Contains(result, resultPending):
		return false, nil
	case strings.Contains(result, resultAlreadyVerified):
		return true, nil
	default:
		return true, fmt.Errorf("%w: %w", ErrVerificationFailed, &APIError{Message: resp.Message, Result: result})
	}
}

// Verify submits the source and polls until the explorer has a verdict
func (c *Client) Verify(ctx context.Context, req SubmitRequest) error {
	guid, err := c.Submit(ctx, req)
	if err != nil {
		return err
	}
	if guid == "" {
		c.logger.Info("contract already verified", slog.String("address", req.Address))
		return nil
	}

	c.logger.Info("verification submitted", slog.String("guid", guid))
	for {
		done, err := c.CheckStatus(ctx, guid)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		c.logger.Debug("verification pending", slog.String("guid", guid))
	}
}

// IsVerified reports whether the explorer already has source for address
func (c *Client) IsVerified(ctx context.Context, address string) (bool, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address)

	resp, err := c.get(ctx, q)
	if err != nil {
		return false, err
	}
	if resp.Status != "1" {
		return false, &APIError{Message: resp.Message, Result: resp.resultString()}
	}

	var entries []struct {
		SourceCode string `json:"SourceCode"`
	}
	if err := json.Unmarshal(resp.Result, &entries); err != nil {
		return false, fmt.Errorf("decoding getsourcecode result: %w", err)
	}
	return len(entries) > 0 && entries[0].SourceCode != "", nil
}

func (c *Client) get(ctx context.Context, q url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, form url.Values) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding explorer response: %w", err)
	}
	return &out, nil
}
