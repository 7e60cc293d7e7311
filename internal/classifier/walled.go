package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const defaultWalledBaseURL = "https://services.walled.ai"

// WalledClient calls the Walled AI guardrail moderation endpoint.
type WalledClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// WalledConfig holds configuration for the Walled client.
type WalledConfig struct {
	APIKey  string
	BaseURL string
}

type walledRequest struct {
	Text               string   `json:"text"`
	GenericSafetyCheck bool     `json:"generic_safety_check"`
	ComplianceList     []string `json:"compliance_list,omitempty"`
}

type walledResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Safety *[]wireFinding `json:"safety"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewWalledClient creates a new Walled client.
func NewWalledClient(cfg WalledConfig, logger *zap.Logger) (*WalledClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("walled API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWalledBaseURL
	}

	logger.Info("Walled client initialized", zap.String("base_url", cfg.BaseURL))

	return &WalledClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// The gateway bounds each call with its own context deadline.
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Guard sends text to the moderation endpoint.
func (c *WalledClient) Guard(ctx context.Context, text string, rules []string) (*Response, error) {
	jsonData, err := json.Marshal(walledRequest{
		Text:               text,
		GenericSafetyCheck: true,
		ComplianceList:     rules,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/guardrail/moderate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("walled API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Walled API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("walled API returned status %d", resp.StatusCode)
	}

	var apiResp walledResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("walled API error: %s", apiResp.Error.Message)
	}
	if apiResp.Data == nil || apiResp.Data.Safety == nil {
		return nil, fmt.Errorf("%w: missing data.safety", ErrMalformedResponse)
	}

	result := toResponse(*apiResp.Data.Safety)

	c.logger.Debug("Walled classification received",
		zap.Int("findings", len(result.Findings)),
		zap.Int("rules", len(rules)))

	return result, nil
}

// Name identifies the provider.
func (c *WalledClient) Name() string {
	return "walled"
}

// Close closes the client and releases resources.
func (c *WalledClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
