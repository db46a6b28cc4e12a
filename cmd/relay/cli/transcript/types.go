// Package transcript models Claude Code JSONL transcript records and turns
// the assistant ones into message events.
package transcript

import (
	"encoding/json"
	"strings"
	"time"
)

// Record types written by Claude Code.
const (
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeSummary   = "summary"
)

// Content block types inside an assistant message.
const (
	ContentTypeText     = "text"
	ContentTypeThinking = "thinking"
	ContentTypeToolUse  = "tool_use"
)

// Line is a single transcript record.
type Line struct {
	Type              string          `json:"type"`
	UUID              string          `json:"uuid"`
	SessionID         string          `json:"sessionId,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
	IsSidechain       bool            `json:"isSidechain,omitempty"`
	IsAPIErrorMessage bool            `json:"isApiErrorMessage,omitempty"`
	Message           json.RawMessage `json:"message"`
}

// rawMessage is the API message embedded in a Line. Content is either a
// plain string or an array of blocks.
type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`
}

// SegmentKind distinguishes user-facing text from reasoning traces.
type SegmentKind string

const (
	SegmentText      SegmentKind = "text"
	SegmentReasoning SegmentKind = "reasoning"
)

// Segment is one ordered piece of message content.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Message is an assistant message event decoded from one record.
type Message struct {
	UUID      string
	SessionID string
	Role      string
	Timestamp time.Time
	Sidechain bool
	Segments  []Segment
}

// Text joins the text segments, trimmed.
func (m Message) Text() string {
	return m.join(SegmentText)
}

// Reasoning joins the reasoning segments, trimmed.
func (m Message) Reasoning() string {
	return m.join(SegmentReasoning)
}

func (m Message) join(kind SegmentKind) string {
	var parts []string
	for _, s := range m.Segments {
		if s.Kind != kind {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
