package classify

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/alanyang/notify-relay/internal/domain/event"
	"github.com/alanyang/notify-relay/internal/domain/notification"
)

// RulesView is the view rule_execution notifications are gated on.
const RulesView = "/rules"

const maxLoggedFrame = 256

type Route int

const (
	// RouteDrop discards the frame.
	RouteDrop Route = iota
	// RouteSurface always notifies, no dedup.
	RouteSurface
	// RouteDedup notifies once per key.
	RouteDedup
	// RouteGated notifies once per key, and only while the user is on View.
	RouteGated
)

func (r Route) String() string {
	switch r {
	case RouteDrop:
		return "drop"
	case RouteSurface:
		return "surface"
	case RouteDedup:
		return "dedup"
	case RouteGated:
		return "gated"
	default:
		return "unknown"
	}
}

type DropReason string

const (
	DropPrefilter   DropReason = "prefilter"
	DropParse       DropReason = "parse"
	DropRuleEnabled DropReason = "rule_enabled"
	DropUnknownType DropReason = "unknown_type"
)

// Decision is the classifier's verdict on one frame.
type Decision struct {
	Route   Route
	Reason  DropReason
	Type    event.Type
	Key     string
	View    string
	Request notification.Request
}

type Classifier struct {
	presentation notification.Presentation
	logger       *slog.Logger
}

func New(presentation notification.Presentation, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		presentation: presentation,
		logger:       logger.With("component", "classifier"),
	}
}

// Prefilter is a cheap check that rejects frames which cannot carry a relevant
// type. It may let irrelevant frames through but never rejects a relevant one:
// frames with JSON escapes are always passed on because an escaped type name
// would not match the plain substring.
func Prefilter(frame string) bool {
	if strings.ContainsRune(frame, '\\') {
		return true
	}
	for _, t := range event.Relevant {
		if strings.Contains(frame, string(t)) {
			return true
		}
	}
	return false
}

// Classify parses a frame and decides how the relay should treat it.
// Malformed frames are logged and dropped; unrecognised ones are dropped quietly.
func (c *Classifier) Classify(frame string) Decision {
	if !Prefilter(frame) {
		return Decision{Route: RouteDrop, Reason: DropPrefilter}
	}

	e, err := event.Parse(frame)
	if err != nil {
		c.logger.Warn("dropping malformed frame", "error", err, "frame", truncate(frame))
		return Decision{Route: RouteDrop, Reason: DropParse}
	}

	d := c.dissect(e)
	if d.Route == RouteDrop && d.Reason == DropUnknownType {
		c.logger.Debug("ignoring frame", "type", string(e.Type), "event_type", e.Data.EventType)
	}
	return d
}

func (c *Classifier) dissect(e event.Event) Decision {
	data := e.Data

	switch e.Type {
	case event.TypeNotification:
		switch data.EventType {
		case event.KindRuleEnabled:
			return Decision{Route: RouteDrop, Reason: DropRuleEnabled, Type: e.Type}
		case event.KindRuleExecution:
			title := data.Title
			if title == "" {
				title = "Rule executed"
			}
			description := data.Content
			if description == "" {
				description = verdictLine(data.Verdict())
			}
			return Decision{
				Route:   RouteGated,
				Type:    e.Type,
				Key:     data.DedupKey(),
				View:    RulesView,
				Request: c.presentation.New(title, description, notification.SeverityFor(data.Verdict())),
			}
		default:
			title := data.Title
			if title == "" {
				title = "Notification"
			}
			return Decision{
				Route:   RouteSurface,
				Type:    e.Type,
				Request: c.presentation.New(title, data.Content, notification.SeverityInfo),
			}
		}

	case event.TypeRuleCreated:
		description := ""
		if data.Name != "" {
			description = fmt.Sprintf("%q has been created.", data.Name)
		}
		return Decision{
			Route:   RouteSurface,
			Type:    e.Type,
			Request: c.presentation.New("Rule created", description, notification.SeveritySuccess),
		}

	case event.TypeRuleExecuted:
		title := "Rule executed"
		if data.Name != "" {
			title = "Rule executed: " + data.Name
		}
		return Decision{
			Route:   RouteDedup,
			Type:    e.Type,
			Key:     data.DedupKey(),
			Request: c.presentation.New(title, verdictLine(data.Verdict()), notification.SeverityFor(data.Verdict())),
		}
	}

	return Decision{Route: RouteDrop, Reason: DropUnknownType, Type: e.Type}
}

func verdictLine(verdict string) string {
	if verdict == "" {
		return ""
	}
	return "Result: " + verdict
}

func truncate(frame string) string {
	if len(frame) <= maxLoggedFrame {
		return frame
	}
	cut := maxLoggedFrame
	for cut > 0 && !utf8.RuneStart(frame[cut]) {
		cut--
	}
	return frame[:cut] + "…"
}
