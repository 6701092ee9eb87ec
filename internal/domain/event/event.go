package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Type string

const (
	TypeNotification Type = "notification"
	TypeRuleCreated   Type = "ruleCreated"
	TypeRuleExecuted  Type = "ruleExecuted"
)

// Relevant lists the frame types the relay reacts to. Anything else is dropped.
var Relevant = []Type{TypeNotification, TypeRuleCreated, TypeRuleExecuted}

// Kinds carried in data.event_type of a notification frame.
const (
	KindRuleEnabled   = "rule_enabled"
	KindRuleExecution = "rule_execution"
)

// ID is an identifier the backend sends either as a JSON string or a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Text is a free-form field. Strings are kept as-is; any other JSON value is
// kept in its compact literal form so an unexpected shape never fails a parse.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

type Data struct {
	EventType   string `json:"event_type,omitempty"`
	ExecutionID ID     `json:"execution_id,omitempty"`
	ID          ID     `json:"id,omitempty"`
	RuleID      ID     `json:"ruleId,omitempty"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content,omitempty"`
	Result      Text   `json:"result,omitempty"`
	Outcome     Text   `json:"outcome,omitempty"`
}

// DedupKey picks the identifier used for duplicate suppression:
// execution_id, then id, then ruleId, then name. Empty when none is set.
func (d Data) DedupKey() string {
	switch {
	case d.ExecutionID != "":
		return string(d.ExecutionID)
	case d.ID != "":
		return string(d.ID)
	case d.RuleID != "":
		return string(d.RuleID)
	default:
		return d.Name
	}
}

// Verdict returns the execution result, falling back to outcome.
func (d Data) Verdict() string {
	if d.Result != "" {
		return string(d.Result)
	}
	return string(d.Outcome)
}

// Event is the parsed form of one frame.
type Event struct {
	Type Type `json:"type"`
	Data Data `json:"data"`
}

// Parse decodes a frame payload.
func Parse(frame string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(frame), &e); err != nil {
		return Event{}, fmt.Errorf("parsing frame: %w", err)
	}
	return e, nil
}
