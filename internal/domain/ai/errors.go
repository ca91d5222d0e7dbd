package ai

import "errors"

var (
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrEmptyResponse is returned when the provider answered without content.
	ErrEmptyResponse = errors.New("empty response from AI")
	// ErrMalformedResponse is returned when the reply is not JSON, even after fence stripping.
	ErrMalformedResponse = errors.New("AI response is not valid JSON")
)
