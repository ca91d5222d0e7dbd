package prompt

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Normalize returns the snapshot as a JSON object. Objects pass through,
// anything else is wrapped as {"raw_data": v}.
func Normalize(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if !json.Valid(trimmed) {
		return nil, eris.New("prompt: snapshot is not valid JSON")
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{"raw_data": trimmed})
	if err != nil {
		return nil, eris.Wrap(err, "prompt: wrap snapshot")
	}
	return wrapped, nil
}

// indent pretty prints JSON with two spaces, keeping key order.
func indent(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
