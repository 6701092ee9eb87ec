package notification

import (
	"encoding/json"
	"strings"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Position string

const (
	PositionTopRight     Position = "top-right"
	PositionTopLeft      Position = "top-left"
	PositionTopCenter    Position = "top-center"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomCenter Position = "bottom-center"
)

var validPositions = map[Position]bool{
	PositionTopRight:     true,
	PositionTopLeft:      true,
	PositionTopCenter:    true,
	PositionBottomRight:  true,
	PositionBottomLeft:   true,
	PositionBottomCenter: true,
}

// Valid reports whether p is a known placement.
func (p Position) Valid() bool { return validPositions[p] }

// Request is what a sink renders as a transient alert.
type Request struct {
	Title       string
	Description string
	Severity    Severity
	Duration    time.Duration
	Dismissible bool
	Position    Position
}

// MarshalJSON encodes the duration in milliseconds, which is what UI clients expect.
func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Title       string   `json:"title"`
		Description string   `json:"description,omitempty"`
		Severity    Severity `json:"severity"`
		DurationMS  int64    `json:"duration"`
		Dismissible bool     `json:"dismissible"`
		Position    Position `json:"position"`
	}{
		Title:       r.Title,
		Description: r.Description,
		Severity:    r.Severity,
		DurationMS:  r.Duration.Milliseconds(),
		Dismissible: r.Dismissible,
		Position:    r.Position,
	})
}

// Presentation holds the display defaults stamped onto every Request.
type Presentation struct {
	Duration    time.Duration
	Dismissible bool
	Position    Position
}

var DefaultPresentation = Presentation{
	Duration:    5 * time.Second,
	Dismissible: true,
	Position:    PositionTopRight,
}

func (p Presentation) New(title, description string, severity Severity) Request {
	return Request{
		Title:       title,
		Description: description,
		Severity:    severity,
		Duration:    p.Duration,
		Dismissible: p.Dismissible,
		Position:    p.Position,
	}
}

var verdictSeverity = map[string]Severity{
	"success":   SeveritySuccess,
	"succeeded": SeveritySuccess,
	"ok":        SeveritySuccess,
	"passed":    SeveritySuccess,
	"completed": SeveritySuccess,
	"failure":   SeverityError,
	"failed":    SeverityError,
	"error":     SeverityError,
	"warning":   SeverityWarning,
	"partial":   SeverityWarning,
	"skipped":   SeverityWarning,
}

// SeverityFor maps an execution result or outcome to a severity. Unknown
// verdicts are informational.
func SeverityFor(verdict string) Severity {
	if s, ok := verdictSeverity[strings.ToLower(strings.TrimSpace(verdict))]; ok {
		return s
	}
	return SeverityInfo
}
