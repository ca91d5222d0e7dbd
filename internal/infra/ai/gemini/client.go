package gemini

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/bryanwahyu/bito-analyst/internal/domain/ai"
)

const defaultModel = "gemini-2.5-flash"

// Client implements ai.Client on Models.GenerateContent.
type Client struct {
	client    *genai.Client
	Model     string
	MaxTokens int32
}

type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the Gemini API endpoint, e.g. a proxy or a test server.
	BaseURL string
	Timeout time.Duration
}

func NewClient(ctx context.Context, o Options) (*Client, error) {
	if o.APIKey == "" {
		return nil, eris.New("gemini: API key is required")
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:      o.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: o.BaseURL},
	}
	if o.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &Client{client: client, Model: o.Model, MaxTokens: int32(o.MaxTokens)}, nil
}

func (c *Client) Complete(ctx context.Context, r ai.Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(r.Temperature)),
	}
	if r.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(r.System, genai.RoleUser)
	}
	if r.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if c.MaxTokens > 0 {
		cfg.MaxOutputTokens = c.MaxTokens
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.Model, genai.Text(r.User), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", eris.Wrapf(ai.ErrQuotaExceeded, "gemini: %v", err)
		}
		return "", eris.Wrap(err, "gemini: generate content")
	}
	text := resp.Text()
	if text == "" {
		return "", eris.Wrap(ai.ErrEmptyResponse, "gemini: no text")
	}
	return text, nil
}
