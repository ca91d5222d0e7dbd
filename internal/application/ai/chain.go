package ai

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/ai"
	"github.com/bryanwahyu/bito-analyst/internal/infra/ai/prompt"
)

// Stage names one step of the chain.
type Stage string

const (
	StageDataQuality      Stage = "data_quality"
	StageBusinessStrategy Stage = "business_strategy"
	StageERPConfig        Stage = "erp_config"
	StageOther            Stage = "other"
)

const (
	tempDataQuality = 0.3
	tempStrategy    = 0.4
	tempERPConfig   = 0.3
)

// StageError tags a chain failure with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage an error came from, StageOther if unknown.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageOther
}

// Chain runs data quality -> business strategy -> ERP config. Each stage
// feeds the next, so the calls are strictly sequential.
type Chain struct {
	client domain.Client
}

func NewChain(client domain.Client) *Chain {
	return &Chain{client: client}
}

// AnalyzeDataQuality critiques the snapshot against pre-computed ratios.
func (c *Chain) AnalyzeDataQuality(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	normalized, err := prompt.Normalize(raw)
	if err != nil {
		return nil, &StageError{Stage: StageDataQuality, Err: err}
	}
	user := prompt.DataQualityUser(normalized, prompt.ComputeRatios(normalized))
	return c.call(ctx, StageDataQuality, prompt.DataQualitySystem, user, tempDataQuality)
}

// GenerateBusinessStrategy ranks the top problems using the data quality output.
func (c *Chain) GenerateBusinessStrategy(ctx context.Context, raw, cleaning json.RawMessage) (json.RawMessage, error) {
	normalized, err := prompt.Normalize(raw)
	if err != nil {
		return nil, &StageError{Stage: StageBusinessStrategy, Err: err}
	}
	return c.call(ctx, StageBusinessStrategy, prompt.StrategySystem, prompt.StrategyUser(normalized, cleaning), tempStrategy)
}

// GenerateERPConfig maps the strategy onto ERP module settings.
func (c *Chain) GenerateERPConfig(ctx context.Context, strategy json.RawMessage) (json.RawMessage, error) {
	return c.call(ctx, StageERPConfig, prompt.ERPConfigSystem, prompt.ERPConfigUser(strategy), tempERPConfig)
}

// Run executes all three stages. Nothing is returned unless all succeed.
func (c *Chain) Run(ctx context.Context, raw json.RawMessage) (analysis.Results, error) {
	log := zap.L().With(zap.String("component", "chain"))

	log.Info("starting data quality analysis")
	cleaning, err := c.AnalyzeDataQuality(ctx, raw)
	if err != nil {
		return analysis.Results{}, err
	}

	log.Info("generating business strategy")
	strategy, err := c.GenerateBusinessStrategy(ctx, raw, cleaning)
	if err != nil {
		return analysis.Results{}, err
	}

	log.Info("generating ERP configuration")
	actions, err := c.GenerateERPConfig(ctx, strategy)
	if err != nil {
		return analysis.Results{}, err
	}

	return analysis.Results{
		CleaningAnalysis: cleaning,
		BusinessStrategy: strategy,
		ERPActions:       actions,
	}, nil
}

func (c *Chain) call(ctx context.Context, stage Stage, system, user string, temperature float64) (json.RawMessage, error) {
	content, err := c.client.Complete(ctx, domain.Request{
		System:      system,
		User:        user,
		Temperature: temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, &StageError{Stage: stage, Err: err}
	}
	out, err := ParseReply(content)
	if err != nil {
		zap.L().Error("unparseable model reply",
			zap.String("stage", string(stage)),
			zap.Int("length", len(content)),
			zap.Error(err))
		return nil, &StageError{Stage: stage, Err: err}
	}
	return out, nil
}
