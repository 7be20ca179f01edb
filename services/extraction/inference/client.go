// Package inference is the OpenAI-compatible extraction backend. It talks to
// the DigitalOcean inference endpoint by default; any endpoint that supports
// json_schema response formats works.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sahilchouksey/course-ingest/services/extraction"
)

const (
	// DefaultBaseURL is the DigitalOcean AI Inference API base URL
	DefaultBaseURL = "https://inference.do-ai.run/v1"
	// DefaultTimeout is longer than usual because documents can be large
	DefaultTimeout   = 3 * time.Minute
	DefaultModel     = "openai-gpt-4o"
	DefaultMaxTokens = 16384
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client implements extraction.Extractor on the chat completions API.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

// New creates a new inference client
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Extract issues one structured-output request. It never retries.
func (c *Client) Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error) {
	part, err := documentPart(req)
	if err != nil {
		return nil, &extraction.Error{Kind: extraction.KindInvalidRequest, Err: err}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, buildRequest(c.model, c.maxTokens, req, part))
	latency := time.Since(start)
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, extraction.Malformed(errors.New("response has no choices"))
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, extraction.Malformed(errors.New("response truncated at max tokens"))
	}
	if choice.Message.Refusal != "" {
		return nil, extraction.Malformed(fmt.Errorf("model refused: %s", choice.Message.Refusal))
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, extraction.Malformed(errors.New("empty response content"))
	}

	return &extraction.Result{
		Raw:              []byte(content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Latency:          latency,
	}, nil
}

// documentPart renders the document for a chat message. image_url only
// accepts image types, so anything else is sent as its text layer.
func documentPart(req extraction.Request) (openai.ChatMessagePart, error) {
	if extraction.IsImage(req.MimeType) {
		docURL, err := extraction.DataURL(req.MimeType, req.Document)
		if err != nil {
			return openai.ChatMessagePart{}, fmt.Errorf("encode document: %w", err)
		}
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    docURL,
				Detail: openai.ImageURLDetailHigh,
			},
		}, nil
	}
	if strings.TrimSpace(req.Text) == "" {
		return openai.ChatMessagePart{}, fmt.Errorf("%s document has no text layer", req.MimeType)
	}
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: "Document text:\n" + req.Text,
	}, nil
}

func buildRequest(model string, maxTokens int, req extraction.Request, document openai.ChatMessagePart) openai.ChatCompletionRequest {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.Prompt.User},
		document,
	}

	def := req.Schema.Definition
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Prompt.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      &def,
				Strict:      true,
			},
		},
		Temperature: 0,
		MaxTokens:   maxTokens,
	}
}

// classify maps transport and API errors onto extraction failure kinds.
func classify(err error) *extraction.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &extraction.Error{Kind: extraction.KindForStatus(apiErr.HTTPStatusCode), Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &extraction.Error{Kind: extraction.KindForStatus(reqErr.HTTPStatusCode), Status: reqErr.HTTPStatusCode, Err: err}
	}
	// network failures, timeouts and cancellations
	return &extraction.Error{Kind: extraction.KindUpstreamUnavailable, Err: err}
}
