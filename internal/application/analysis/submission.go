package analysis

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	domain "github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
)

// moduleKeys are the standard ERP modules. When present they must be objects.
var moduleKeys = []string{"sales", "warehouse", "finance", "crm"}

const maxNameLen = 120

// SubmitCommand is a parsed /analyze request.
type SubmitCommand struct {
	Name string
	Data json.RawMessage
}

// ParseSubmission accepts any JSON object. "name" is metadata; "raw_data",
// when present, is the snapshot, otherwise the object minus "name" is.
func ParseSubmission(body []byte) (SubmitCommand, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return SubmitCommand{}, domain.ErrEmptySubmission
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return SubmitCommand{}, eris.Wrap(domain.ErrInvalidSubmission, "body must be a JSON object")
	}

	var cmd SubmitCommand
	raw, named := obj["name"]
	if named {
		if err := json.Unmarshal(raw, &cmd.Name); err != nil {
			return SubmitCommand{}, eris.Wrap(domain.ErrInvalidSubmission, "name must be a string")
		}
		cmd.Name = strings.TrimSpace(cmd.Name)
		if len(cmd.Name) > maxNameLen {
			return SubmitCommand{}, eris.Wrapf(domain.ErrInvalidSubmission, "name longer than %d characters", maxNameLen)
		}
		delete(obj, "name")
	}

	if raw, ok := obj["raw_data"]; ok {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || string(raw) == "null" {
			return SubmitCommand{}, domain.ErrEmptySubmission
		}
		cmd.Data = raw
	} else if len(obj) == 0 {
		if !named {
			return SubmitCommand{}, domain.ErrEmptySubmission
		}
		// a named submission without data gets the standard modules, empty
		cmd.Data = emptyModules()
	} else {
		data, err := json.Marshal(obj)
		if err != nil {
			return SubmitCommand{}, eris.Wrap(err, "analysis: re-encode submission")
		}
		cmd.Data = data
	}

	if err := validateModules(cmd.Data); err != nil {
		return SubmitCommand{}, err
	}
	return cmd, nil
}

func emptyModules() json.RawMessage {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, key := range moduleKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`"` + key + `":{}`)
	}
	b.WriteByte('}')
	return b.Bytes()
}

func validateModules(data json.RawMessage) error {
	var obj map[string]json.RawMessage
	if json.Unmarshal(data, &obj) != nil {
		// arrays and scalars are wrapped later, nothing to check
		return nil
	}
	for _, key := range moduleKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return eris.Wrapf(domain.ErrInvalidSubmission, "%s must be an object", key)
		}
	}
	return nil
}
