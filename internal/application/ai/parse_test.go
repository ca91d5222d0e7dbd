package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/bito-analyst/internal/domain/ai"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{name: "plain object", content: `{"summary":"ok"}`, want: `{"summary":"ok"}`},
		{name: "surrounding whitespace", content: "\n  {\"a\":1}\n", want: `{"a":1}`},
		{name: "json fence", content: "Here you go:\n```json\n{\"a\": [1, 2]}\n```\nthanks", want: `{"a":[1,2]}`},
		{name: "bare fence", content: "```\n{\"b\": true}\n```", want: `{"b":true}`},
		{name: "array is still json", content: `[1,2,3]`, want: `[1,2,3]`},
		{name: "empty", content: "   ", wantErr: domain.ErrEmptyResponse},
		{name: "prose", content: "I cannot help with that", wantErr: domain.ErrMalformedResponse},
		{name: "broken json fence does not fall back", content: "```json\n{oops\n```\n```\n{\"c\":1}\n```", wantErr: domain.ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.content)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}
