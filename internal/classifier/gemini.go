package classifier

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient wraps the Gemini API client
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	logger    *zap.Logger
	modelName string
}

// NewGeminiClient creates a new Gemini classifier
func NewGeminiClient(apiKey, modelName string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr[float32](0.1),
		MaxOutputTokens:  genai.Ptr[int32](300),
		ResponseMIMEType: "application/json",
	}

	logger.Info("Gemini client initialized", zap.String("model", modelName))

	return &GeminiClient{
		client:    client,
		model:     model,
		logger:    logger,
		modelName: modelName,
	}, nil
}

// Guard classifies a single comment
func (c *GeminiClient) Guard(ctx context.Context, text string, rules []string) (*Response, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(BuildPrompt(text, rules)))
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty response from gemini", ErrMalformedResponse)
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("%w: gemini returned %T instead of text", ErrUnsupported, resp.Candidates[0].Content.Parts[0])
	}

	result, err := parseFindings(string(textPart))
	if err != nil {
		c.logger.Error("Failed to parse gemini output",
			zap.String("content", string(textPart)),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Name identifies the provider.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
