package ai

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	domain "github.com/bryanwahyu/bito-analyst/internal/domain/ai"
)

// ParseReply turns a model reply into JSON. Replies wrapped in a markdown
// fence are unwrapped, ```json first then a bare ```.
func ParseReply(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyResponse
	}
	if json.Valid([]byte(content)) {
		return json.RawMessage(content), nil
	}
	for _, fence := range []string{"```json", "```"} {
		if inner, ok := unfence(content, fence); ok {
			if json.Valid([]byte(inner)) {
				return json.RawMessage(inner), nil
			}
			break
		}
	}
	return nil, eris.Wrapf(domain.ErrMalformedResponse, "reply starts with %q", head(content, 80))
}

// unfence returns the text between the first opening fence and the next ```.
func unfence(content, fence string) (string, bool) {
	_, rest, ok := strings.Cut(content, fence)
	if !ok {
		return "", false
	}
	inner, _, _ := strings.Cut(rest, "```")
	return strings.TrimSpace(inner), true
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
