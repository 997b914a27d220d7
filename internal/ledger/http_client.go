package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/rewards"
)

// HTTPClient talks to the ledger gateway over its REST API.
type HTTPClient struct {
	BaseURL    string
	Token      string
	PolicyID   string
	HTTPClient *http.Client
}

func NewHTTPClient(cfg config.LedgerConfig) *HTTPClient {
	return &HTTPClient{
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		Token:    cfg.APIToken,
		PolicyID: cfg.PolicyID,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *HTTPClient) Submit(ctx context.Context, policy rewards.CallPolicy, req SubmitRequest) (string, error) {
	if req.PolicyID == "" {
		req.PolicyID = c.PolicyID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var txRef string
	err = policy.Do(ctx, func(ctx context.Context) error {
		var out struct {
			TxRef string `json:"tx_ref"`
		}
		if err := c.do(ctx, http.MethodPost, "/v1/mints", req.IdempotencyKey, body, &out); err != nil {
			return err
		}
		if out.TxRef == "" {
			return fmt.Errorf("ledger submit: empty tx_ref")
		}
		txRef = out.TxRef
		return nil
	})
	return txRef, err
}

func (c *HTTPClient) Confirm(ctx context.Context, policy rewards.CallPolicy, txRef string) (Confirmation, error) {
	var conf Confirmation
	err := policy.Do(ctx, func(ctx context.Context) error {
		var out Confirmation
		err := c.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(txRef), "", nil, &out)
		if err != nil {
			return err
		}
		switch out.Status {
		case StatusPending, StatusFinalized, StatusFailed:
			conf = out
			return nil
		case "":
			// not yet visible on the gateway
			conf = Confirmation{Status: StatusPending}
			return nil
		default:
			return rewards.Permanent(fmt.Errorf("ledger confirm: unknown status %q", out.Status))
		}
	})
	return conf, err
}

func (c *HTTPClient) do(ctx context.Context, method, path, idempotencyKey string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return rewards.Permanent(fmt.Errorf("ledger request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if method == http.MethodGet && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("ledger %s %s returned status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusRequestTimeout {
			return rewards.Permanent(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger decode: %w", err)
	}
	return nil
}
