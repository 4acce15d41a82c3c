package telos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the queried row or transaction does not exist
// on the chain. Callers translate it into their own domain errors.
var ErrNotFound = errors.New("not found on telos")

// Client is a read-only facade over the Telos chain API. All queries are
// plain HTTP POSTs with JSON bodies against the v1 chain/history endpoints.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the Telos client configuration.
type Config struct {
	RPCEndpoint    string
	RequestTimeout time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewClient creates a new Telos chain API client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("telos RPC endpoint cannot be empty")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		endpoint: cfg.RPCEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.Named("telos"),
	}, nil
}

// tableRowsRequest is the body for /v1/chain/get_table_rows.
type tableRowsRequest struct {
	Code       string `json:"code"`
	Scope      string `json:"scope"`
	Table      string `json:"table"`
	LowerBound string `json:"lower_bound"`
	UpperBound string `json:"upper_bound"`
	Limit      int    `json:"limit"`
	KeyType    string `json:"key_type"`
	JSON       bool   `json:"json"`
}

// tableRowsResponse carries raw rows; their shape varies by endpoint, so
// rows are kept undecoded here.
type tableRowsResponse struct {
	Rows []json.RawMessage `json:"rows"`
}

// GetTableRow queries a table for the single row whose primary key equals
// key. The row is returned as delivered, positionally indexed or
// field-named; normalization happens at the caller's boundary. Returns
// ErrNotFound when no row matches.
func (c *Client) GetTableRow(ctx context.Context, code, scope, table, key string) (json.RawMessage, error) {
	req := tableRowsRequest{
		Code:       code,
		Scope:      scope,
		Table:      table,
		LowerBound: key,
		UpperBound: key,
		Limit:      1,
		KeyType:    "name",
		JSON:       true,
	}

	var resp tableRowsResponse
	if err := c.post(ctx, "/v1/chain/get_table_rows", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 {
		return nil, ErrNotFound
	}
	return resp.Rows[0], nil
}

// Action is a single action within a Telos transaction. Data is left raw
// because its shape depends on the contract's ABI.
type Action struct {
	Account string          `json:"account"`
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data"`
}

// Transaction is a flattened view of a historical transaction: its receipt
// status, block position, and action list.
type Transaction struct {
	ID        string
	Status    string
	BlockNum  uint64
	BlockTime string
	Actions   []Action
}

// transactionResponse matches /v1/history/get_transaction. The action list
// may live at trx.trx.actions or trx.actions depending on node version.
type transactionResponse struct {
	ID        string `json:"id"`
	BlockNum  uint64 `json:"block_num"`
	BlockTime string `json:"block_time"`
	Trx       struct {
		Receipt struct {
			Status string `json:"status"`
		} `json:"receipt"`
		Actions []Action `json:"actions"`
		Trx     struct {
			Actions []Action `json:"actions"`
		} `json:"trx"`
	} `json:"trx"`
}

// GetTransaction fetches a transaction by id including its receipt status
// and full action list. Returns ErrNotFound when the node does not know the
// transaction.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction id cannot be empty")
	}

	req := struct {
		ID string `json:"id"`
	}{ID: id}

	var resp transactionResponse
	if err := c.post(ctx, "/v1/history/get_transaction", req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" && resp.BlockNum == 0 {
		return nil, ErrNotFound
	}

	actions := resp.Trx.Trx.Actions
	if len(actions) == 0 {
		actions = resp.Trx.Actions
	}

	return &Transaction{
		ID:        resp.ID,
		Status:    resp.Trx.Receipt.Status,
		BlockNum:  resp.BlockNum,
		BlockTime: resp.BlockTime,
		Actions:   actions,
	}, nil
}

// ChainInfo holds the subset of get_info used for health reporting.
type ChainInfo struct {
	ChainID      string `json:"chain_id"`
	HeadBlockNum uint64 `json:"head_block_num"`
}

// GetInfo queries basic chain state, used by the health endpoint to probe
// Telos connectivity.
func (c *Client) GetInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.post(ctx, "/v1/chain/get_info", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// post executes one rate-limited JSON request against the chain API.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telos request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Telos chain API call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// History nodes answer 404 for unknown transactions.
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: telos returned status %d", ErrNotFound, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telos returned status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse telos response: %w", err)
	}
	return nil
}
