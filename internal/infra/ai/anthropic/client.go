package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/domain/ai"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

// Client implements ai.Client on the Messages API.
type Client struct {
	client    sdk.Client
	Model     string
	MaxTokens int64
}

func NewClient(apiKey, model string, maxTokens int, opts ...option.RequestOption) *Client {
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:    sdk.NewClient(opts...),
		Model:     model,
		MaxTokens: int64(maxTokens),
	}
}

func (c *Client) Complete(ctx context.Context, r ai.Request) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.Model),
		MaxTokens:   c.MaxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(r.User))},
		Temperature: sdk.Float(r.Temperature),
	}
	if r.System != "" {
		params.System = []sdk.TextBlockParam{{Text: r.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", eris.Wrapf(ai.ErrQuotaExceeded, "anthropic: %v", err)
		}
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", eris.Wrap(ai.ErrEmptyResponse, "anthropic: no text blocks")
	}
	return b.String(), nil
}
