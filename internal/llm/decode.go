package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when the model reply is not the JSON
// object that was asked for.
var ErrMalformedResponse = errors.New("malformed model response")

// stripFences removes a surrounding markdown code fence, which models add
// even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line ("json")
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type object map[string]json.RawMessage

func decodeObject(content string) (object, error) {
	body := stripFences(content)
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	var obj object
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: reply is null", ErrMalformedResponse)
	}
	return obj, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// text returns the key as a string.  A list is joined with newlines and a
// scalar is kept in its JSON spelling.
func (o object) text(key string) (*string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s, nil
	}
	if lines, err := o.lines(key); err == nil {
		joined := strings.Join(lines, "\n")
		return &joined, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, key, err)
	}
	if _, isObj := v.(map[string]any); isObj {
		return nil, fmt.Errorf("%w: %s: expected text, got object", ErrMalformedResponse, key)
	}
	s = string(bytes.TrimSpace(raw))
	return &s, nil
}

// lines returns the key as a list of strings.  A bare string becomes a one
// element list; non-string items keep their JSON spelling and null items
// are dropped.
func (o object) lines(key string) ([]string, error) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: expected a list", ErrMalformedResponse, key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if isNull(item) {
			continue
		}
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			out = append(out, str)
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, key, err)
		}
		out = append(out, compact.String())
	}
	return out, nil
}

func decodeConversation(content string) (ConversationExtract, error) {
	var out ConversationExtract
	obj, err := decodeObject(content)
	if err != nil {
		return out, err
	}
	if out.Subjective, err = obj.text("subjective"); err != nil {
		return ConversationExtract{}, err
	}
	if out.Assessment, err = obj.text("assessment"); err != nil {
		return ConversationExtract{}, err
	}
	if out.Plan, err = obj.text("plan"); err != nil {
		return ConversationExtract{}, err
	}
	if out.Vitals, err = obj.lines("vitals"); err != nil {
		return ConversationExtract{}, err
	}
	if out.Labs, err = obj.lines("labs"); err != nil {
		return ConversationExtract{}, err
	}
	if out.Medications, err = obj.lines("medications"); err != nil {
		return ConversationExtract{}, err
	}
	return out, nil
}

func decodeImage(content string) (ImageExtract, error) {
	var out ImageExtract
	obj, err := decodeObject(content)
	if err != nil {
		return out, err
	}
	if out.Vitals, err = obj.lines("vitals"); err != nil {
		return ImageExtract{}, err
	}
	if out.Labs, err = obj.lines("labs"); err != nil {
		return ImageExtract{}, err
	}
	if out.OtherData, err = obj.lines("other_data"); err != nil {
		return ImageExtract{}, err
	}
	if out.Medications, err = obj.lines("medications"); err != nil {
		return ImageExtract{}, err
	}
	return out, nil
}

func decodeComparison(content string) (NoteComparison, error) {
	var out NoteComparison
	obj, err := decodeObject(content)
	if err != nil {
		return out, err
	}
	if out.NewFindings, err = obj.lines("new_findings"); err != nil {
		return NoteComparison{}, err
	}
	if out.ResolvedIssues, err = obj.lines("resolved_issues"); err != nil {
		return NoteComparison{}, err
	}
	if out.Trends, err = obj.lines("trends"); err != nil {
		return NoteComparison{}, err
	}
	if out.SignificantChanges, err = obj.lines("significant_changes"); err != nil {
		return NoteComparison{}, err
	}
	return out, nil
}
