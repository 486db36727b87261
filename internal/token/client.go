package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agriguard/internal/config"
	"agriguard/internal/models"
)

// SecurityDepositUnits is the minimal non-zero deposit attached to every
// outbound transfer so the issuer can distinguish ledger-initiated calls from
// spoofed ones.
const SecurityDepositUnits = 1

// Client talks to the fungible token issuer's API. Outbound transfers are
// asynchronous: the issuer returns a transfer id immediately and reports
// settlement later through the transfer-status callback.
type Client struct {
	cfg        config.TokenIssuerConfig
	httpClient *http.Client
}

func NewClient(cfg config.TokenIssuerConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type transferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Deposit string `json:"deposit"`
	Memo    string `json:"memo,omitempty"`
	Message string `json:"message,omitempty"`
}

type transferResponse struct {
	TransferID string `json:"transfer_id"`
}

// Transfer moves tokens from the custody account to the recipient and returns
// the issuer's transfer id for later settlement confirmation.
func (c *Client) Transfer(ctx context.Context, to string, amount models.TokenAmount, memo string) (string, error) {
	return c.post(ctx, "/v1/transfer", transferRequest{
		From:    c.cfg.CustodyAccount,
		To:      to,
		Amount:  amount.String(),
		Deposit: models.NewTokenAmount(SecurityDepositUnits).String(),
		Memo:    memo,
	})
}

// TransferWithCallback additionally carries a message the issuer delivers to
// the recipient's on-tokens-received hook once the credit lands.
func (c *Client) TransferWithCallback(ctx context.Context, to string, amount models.TokenAmount, memo, message string) (string, error) {
	return c.post(ctx, "/v1/transfer-call", transferRequest{
		From:    c.cfg.CustodyAccount,
		To:      to,
		Amount:  amount.String(),
		Deposit: models.NewTokenAmount(SecurityDepositUnits).String(),
		Memo:    memo,
		Message: message,
	})
}

func (c *Client) post(ctx context.Context, path string, body transferRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &models.TransientError{Op: "token transfer", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.TransientError{Op: "token transfer", Err: err}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("token issuer returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed transferResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse transfer response: %w", err)
	}
	if parsed.TransferID == "" {
		return "", fmt.Errorf("token issuer returned no transfer id")
	}

	return parsed.TransferID, nil
}
