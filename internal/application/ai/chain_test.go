package ai

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/bito-analyst/internal/domain/ai"
	"github.com/bryanwahyu/bito-analyst/internal/infra/ai/prompt"
)

// scriptedClient answers each call with the next reply in order.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []domain.Request
}

func (c *scriptedClient) Complete(_ context.Context, req domain.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i >= len(c.replies) {
		return "", errors.New("unexpected call")
	}
	return c.replies[i], nil
}

func TestChainRun(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"red_flags":[],"data_quality_score":80}`,
		"```json\n{\"top_problems\":[{\"rank\":1}]}\n```",
		`{"configuration_summary":"tune reorder points"}`,
	}}
	chain := NewChain(client)

	raw := json.RawMessage(`{"sales":{"total_orders":100,"cancelled":20}}`)
	res, err := chain.Run(context.Background(), raw)
	require.NoError(t, err)

	assert.JSONEq(t, `{"red_flags":[],"data_quality_score":80}`, string(res.CleaningAnalysis))
	assert.JSONEq(t, `{"top_problems":[{"rank":1}]}`, string(res.BusinessStrategy))
	assert.JSONEq(t, `{"configuration_summary":"tune reorder points"}`, string(res.ERPActions))

	require.Len(t, client.requests, 3)
	assert.Equal(t, prompt.DataQualitySystem, client.requests[0].System)
	assert.Equal(t, 0.3, client.requests[0].Temperature)
	assert.Contains(t, client.requests[0].User, `"cancellation_rate": 20`)

	assert.Equal(t, prompt.StrategySystem, client.requests[1].System)
	assert.Equal(t, 0.4, client.requests[1].Temperature)
	assert.Contains(t, client.requests[1].User, `"data_quality_score": 80`)

	assert.Equal(t, prompt.ERPConfigSystem, client.requests[2].System)
	assert.Equal(t, 0.3, client.requests[2].Temperature)
	assert.Contains(t, client.requests[2].User, `"rank": 1`)
}

func TestChainStopsAtFailingStage(t *testing.T) {
	boom := errors.New("connection reset")
	client := &scriptedClient{
		replies: []string{`{"ok":true}`},
		errs:    []error{nil, boom},
	}
	_, err := NewChain(client).Run(context.Background(), json.RawMessage(`{"crm":{}}`))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StageBusinessStrategy, StageOf(err))
	assert.Len(t, client.requests, 2)
}

func TestChainMalformedReply(t *testing.T) {
	client := &scriptedClient{replies: []string{"sorry, no json today"}}
	_, err := NewChain(client).Run(context.Background(), json.RawMessage(`[1,2]`))
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Equal(t, StageDataQuality, StageOf(err))
}

func TestStageOfUnknown(t *testing.T) {
	assert.Equal(t, StageOther, StageOf(errors.New("x")))
}
