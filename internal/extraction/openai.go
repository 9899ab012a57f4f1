package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI implements the Extractor interface using the OpenAI vision API
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Extractor instance
func NewOpenAI(apiKey string, modelName string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		// gpt-4o-mini for cost-effectiveness and speed
		modelName = "gpt-4o-mini"
	}

	return &OpenAI{
		client: openai.NewClient(apiKey),
		model:  modelName,
	}, nil
}

// Extract sends the receipt image to the vision API and returns the raw reply text
func (o *OpenAI) Extract(ctx context.Context, imageData []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	// The normalizer always hands us JPEG bytes except in its fallback case,
	// where the provider is left to make sense of the original upload
	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageData)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: extractionPrompt(time.Now().Format("2006-01-02")),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrProvider)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyOpenAIError maps provider failures onto the package sentinel errors
func classifyOpenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == "invalid_api_key" || apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return ErrUnauthorized
		case apiErr.Code == "insufficient_quota" || apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return ErrQuotaExceeded
		default:
			return fmt.Errorf("%w: %s", ErrProvider, apiErr.Message)
		}
	}

	return fmt.Errorf("%w: %v", ErrProvider, err)
}

// Close closes the OpenAI client (no-op for HTTP client)
func (o *OpenAI) Close() error {
	return nil
}
