package main

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	appai "github.com/bryanwahyu/bito-analyst/internal/application/ai"
	appanalysis "github.com/bryanwahyu/bito-analyst/internal/application/analysis"
	appjobs "github.com/bryanwahyu/bito-analyst/internal/application/jobs"
	"github.com/bryanwahyu/bito-analyst/internal/config"
	"github.com/bryanwahyu/bito-analyst/internal/domain/ai"
	"github.com/bryanwahyu/bito-analyst/internal/infra/ai/anthropic"
	"github.com/bryanwahyu/bito-analyst/internal/infra/ai/gemini"
	"github.com/bryanwahyu/bito-analyst/internal/infra/ai/openai"
	"github.com/bryanwahyu/bito-analyst/internal/infra/db/mysql"
	"github.com/bryanwahyu/bito-analyst/internal/infra/db/postgres"
	"github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlite"
	"github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlrepo"
	"github.com/bryanwahyu/bito-analyst/internal/infra/storage"
)

// openStore connects to the configured database and migrates it.
func openStore(ctx context.Context, c *config.Config) (*sqlrepo.Store, error) {
	var (
		db      *sql.DB
		dialect sqlrepo.Dialect
		err     error
	)
	switch c.DB.Driver {
	case "mysql":
		db, err = mysql.Connect(ctx, c.DSN())
		dialect = mysql.Dialect
	case "postgres":
		db, err = postgres.Connect(ctx, c.DSN())
		dialect = postgres.Dialect
	case "sqlite":
		db, err = sqlite.Connect(ctx, c.DSN())
		dialect = sqlite.Dialect
	default:
		return nil, eris.Errorf("unknown db driver %q", c.DB.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := sqlrepo.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return sqlrepo.New(db, dialect, application.SystemClock{}), nil
}

func newLLMClient(ctx context.Context, c config.LLMConfig) (ai.Client, error) {
	switch c.Provider {
	case "cerebras", "openai":
		base := c.BaseURL
		if base == "" && c.Provider == "cerebras" {
			base = openai.CerebrasBaseURL
		}
		return openai.NewClient(openai.Options{
			APIKey:    c.APIKey,
			BaseURL:   base,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			JSONMode:  c.JSONMode,
			Timeout:   c.Timeout,
		}), nil
	case "anthropic":
		return anthropic.NewClient(c.APIKey, c.Model, c.MaxTokens), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:    c.APIKey,
			Model:     c.Model,
			MaxTokens: c.MaxTokens,
			BaseURL:   c.BaseURL,
			Timeout:   c.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, eris.Errorf("unknown llm provider %q", c.Provider)
	}
}

// newReportStore returns nil when the archive is disabled.
func newReportStore(ctx context.Context, c config.MinioConfig) (*storage.ReportStore, error) {
	if !c.Enabled {
		return nil, nil
	}
	return storage.New(ctx, storage.Options{
		Endpoint:   c.Endpoint,
		Region:     c.Region,
		Bucket:     c.Bucket,
		AccessKey:  c.AccessKey,
		SecretKey:  c.SecretKey,
		UseSSL:     c.UseSSL,
		PresignTTL: c.PresignTTL,
	})
}

func retryPolicy(c config.WorkerConfig) appjobs.RetryPolicy {
	p := appjobs.DefaultRetryPolicy()
	p.MaxRetries = c.MaxRetries
	if c.RetryDelay > 0 {
		p.BaseDelay = c.RetryDelay
	}
	if c.RetryMaxDelay > 0 {
		p.MaxDelay = c.RetryMaxDelay
	}
	return p
}

// app is everything a command needs, built from config.
type app struct {
	store  *sqlrepo.Store
	svc    *appanalysis.Service
	policy appjobs.RetryPolicy
}

func (a *app) Close() error { return a.store.Close() }

// newApp wires the service. withLLM is false for commands that never run jobs.
func newApp(ctx context.Context, c *config.Config, withLLM bool) (*app, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	clock := application.SystemClock{}
	policy := retryPolicy(c.Worker)
	svc := &appanalysis.Service{
		Repo:     store.Analyses,
		Failures: store.Failures,
		Queue:    &appjobs.Queue{Store: store.Jobs, Policy: policy, Clock: clock},
		Clock:    clock,
	}

	if withLLM {
		client, err := newLLMClient(ctx, c.LLM)
		if err != nil {
			store.Close()
			return nil, err
		}
		svc.Chain = appai.NewChain(client)
	}

	reports, err := newReportStore(ctx, c.Minio)
	if err != nil {
		store.Close()
		return nil, err
	}
	if reports != nil {
		svc.Reports = reports
	}

	return &app{store: store, svc: svc, policy: policy}, nil
}

func (a *app) pool(c config.WorkerConfig) *appjobs.Pool {
	return appjobs.NewPool(c.Count, appjobs.Worker{
		Store:             a.store.Jobs,
		Handler:           a.svc,
		Policy:            a.policy,
		Clock:             a.svc.Clock,
		PollInterval:      c.PollInterval,
		VisibilityTimeout: c.VisibilityTimeout,
	})
}
