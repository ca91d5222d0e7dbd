package ai

import "context"

// Request is a single system+user completion.
type Request struct {
	System      string
	User        string
	Temperature float64
	// JSON asks the provider for a JSON object reply when it supports it.
	JSON bool
}

type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
