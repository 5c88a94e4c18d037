package panel

import (
	"encoding/json"
	"fmt"
	"mime"

	"github.com/objperms/objperms/pkg/fragment"
	"github.com/objperms/objperms/pkg/rowkey"
)

// Outcome is the decoded result of a permissions mutation. Exactly one
// field is set:
//
//   - ValidationErrors when the server rejected the submission, keyed
//     by field name;
//   - DeletionSignal when the subject holds no permissions anymore and
//     its row should go away;
//   - UpsertFragment when the server rendered the subject's updated
//     row.
type Outcome struct {
	ValidationErrors map[string]string
	DeletionSignal   *rowkey.Key
	UpsertFragment   *fragment.Row
}

// DecodeOutcome interprets a mutation response from its Content-Type
// and body. JSON bodies carry either a bare row identifier (deletion)
// or a field-to-message object (validation errors); any other content
// type must be a row fragment. Responses that fit none of the three
// shapes are errors, not guesses.
func DecodeOutcome(contentType string, body []byte) (*Outcome, error) {
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	if mediaType != "application/json" {
		row, err := fragment.ParseRow(string(body))
		if err != nil {
			return nil, fmt.Errorf("decoding row fragment: %w", err)
		}
		return &Outcome{UpsertFragment: &row}, nil
	}

	var rowID string
	if err := json.Unmarshal(body, &rowID); err == nil {
		key, err := rowkey.Parse(rowID)
		if err != nil {
			return nil, fmt.Errorf("decoding deletion signal: %w", err)
		}
		return &Outcome{DeletionSignal: &key}, nil
	}

	var fieldErrors map[string]string
	if err := json.Unmarshal(body, &fieldErrors); err != nil {
		return nil, fmt.Errorf("response is neither a row identifier nor field errors: %w", err)
	}
	return &Outcome{ValidationErrors: fieldErrors}, nil
}
