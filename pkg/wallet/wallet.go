// Package wallet submits unsigned execution requests to an external signing
// service.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/casperlink/intent-engine/pkg/engine"
	"github.com/casperlink/intent-engine/pkg/logger"
)

// signResponse represents the structure of the signer response
type signResponse struct {
	DeployHash string `json:"deployHash,omitempty"`
	Hash       string `json:"hash,omitempty"` // Some signers use "hash" as the key
	Error      string `json:"error,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
}

// Client forwards execution requests to a signer endpoint. The signer holds
// the keys, prompts the user where applicable, and submits the signed deploy
// to the network.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new signer client
func New(endpoint string, log logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Send submits the request for signing and returns the deploy hash. A signer
// response marked cancelled maps to engine.ErrWalletCancelled.
func (c *Client) Send(ctx context.Context, request json.RawMessage, account string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"account": account,
		"request": request,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode signing request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/sign", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build signing request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach signer: %v", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read signer response: %v", err)
	}

	var signResp signResponse
	if err := json.Unmarshal(bodyBytes, &signResp); err != nil {
		return "", fmt.Errorf("failed to decode signer response: %v, body: %s", err, string(bodyBytes))
	}

	if signResp.Cancelled {
		return "", engine.ErrWalletCancelled
	}
	if resp.StatusCode != http.StatusOK {
		if signResp.Error != "" {
			return "", fmt.Errorf("signer rejected request: %s", signResp.Error)
		}
		return "", fmt.Errorf("unexpected signer status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	hash := signResp.DeployHash
	if hash == "" {
		hash = signResp.Hash
	}
	if hash == "" {
		return "", fmt.Errorf("signer returned no deploy hash, body: %s", string(bodyBytes))
	}

	c.logger.DebugWith(logger.Exec, "signer accepted request, deploy hash %s", hash)
	return hash, nil
}

// createHTTPClient creates an HTTP client with proper timeout settings
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
