package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/bito-analyst/internal/domain/ai"
)

const (
	defaultModel     = "gpt-oss-120b"
	defaultMaxTokens = 4096

	// CerebrasBaseURL speaks the OpenAI chat completions protocol.
	CerebrasBaseURL = "https://api.cerebras.ai/v1"
)

// chatCompleter is the part of *openai.Client we use, so tests can swap it.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	api       chatCompleter
	Model     string
	MaxTokens int
	// JSONMode sets response_format=json_object. Not every backend supports it.
	JSONMode bool
}

type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	JSONMode  bool
	Timeout   time.Duration
}

func NewClient(o Options) *Client {
	cfg := openai.DefaultConfig(o.APIKey)
	if o.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.BaseURL, "/")
	}
	if o.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	return &Client{
		api:       openai.NewClientWithConfig(cfg),
		Model:     o.Model,
		MaxTokens: o.MaxTokens,
		JSONMode:  o.JSONMode,
	}
}

func (c *Client) Complete(ctx context.Context, r ai.Request) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.System},
			{Role: openai.ChatMessageRoleUser, Content: r.User},
		},
	}
	if r.JSON && c.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens and skip temperature
	if isReasoningModel(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = float32(r.Temperature)
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuota(err) {
			return "", eris.Wrapf(ai.ErrQuotaExceeded, "openai: %v", err)
		}
		return "", eris.Wrap(err, "openai: create chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", eris.Wrap(ai.ErrEmptyResponse, "openai: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func isQuota(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	return errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests
}
