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

// ChatClient classifies comments through an OpenAI-compatible chat
// completion API (Groq, OpenRouter).
type ChatClient struct {
	name       string
	apiKey     string
	baseURL    string
	modelName  string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

// ChatConfig holds configuration for a chat completion provider.
type ChatConfig struct {
	Name      string
	APIKey    string
	BaseURL   string
	ModelName string
	Headers   map[string]string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GroqConfig returns the chat settings for Groq.
func GroqConfig(apiKey, model, baseURL string) ChatConfig {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return ChatConfig{Name: "groq", APIKey: apiKey, BaseURL: baseURL, ModelName: model}
}

// OpenRouterConfig returns the chat settings for OpenRouter.
func OpenRouterConfig(apiKey, model, baseURL string) ChatConfig {
	if model == "" {
		model = "meta-llama/llama-3.2-3b-instruct:free"
	}
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return ChatConfig{
		Name:      "openrouter",
		APIKey:    apiKey,
		BaseURL:   baseURL,
		ModelName: model,
		Headers:   map[string]string{"X-Title": "Comment Moderation"},
	}
}

// NewChatClient creates a chat completion classifier.
func NewChatClient(cfg ChatConfig, logger *zap.Logger) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Name)
	}
	if cfg.BaseURL == "" || cfg.ModelName == "" {
		return nil, fmt.Errorf("%s base URL and model are required", cfg.Name)
	}

	logger.Info("Chat classifier initialized",
		zap.String("provider", cfg.Name),
		zap.String("model", cfg.ModelName))

	return &ChatClient{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		modelName:  cfg.ModelName,
		headers:    cfg.Headers,
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// Guard asks the model for a safety finding list.
func (c *ChatClient) Guard(ctx context.Context, text string, rules []string) (*Response, error) {
	reqBody := chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: BuildPrompt(text, rules)},
		},
		Temperature: 0.1,
		MaxTokens:   300,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Chat classifier API error",
			zap.String("provider", c.name),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("%s API returned status %d", c.name, resp.StatusCode)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("%s API error: %s", c.name, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in %s response", ErrMalformedResponse, c.name)
	}

	result, err := parseFindings(apiResp.Choices[0].Message.Content)
	if err != nil {
		c.logger.Error("Failed to parse model output",
			zap.String("provider", c.name),
			zap.String("content", apiResp.Choices[0].Message.Content),
			zap.Error(err))
		return nil, err
	}

	return result, nil
}

// Name identifies the provider.
func (c *ChatClient) Name() string {
	return c.name
}

// Close closes the client and releases resources.
func (c *ChatClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
