package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// assistantMarker is the cheap pre-filter: every assistant record carries
// the quoted role value, so lines without it never reach the JSON decoder.
var assistantMarker = []byte(`"assistant"`)

// ErrNotAssistant is returned by ParseLine for records that are valid but
// are not assistant messages.
var ErrNotAssistant = errors.New("not an assistant record")

// MayBeAssistant reports whether line could be an assistant record.
func MayBeAssistant(line []byte) bool {
	return bytes.Contains(line, assistantMarker)
}

// ParseLine decodes one transcript line into an assistant message.
func ParseLine(line []byte) (Message, error) {
	var l Line
	if err := json.Unmarshal(line, &l); err != nil {
		return Message{}, fmt.Errorf("decoding transcript line: %w", err)
	}
	if l.Type != TypeAssistant || len(l.Message) == 0 {
		return Message{}, ErrNotAssistant
	}

	var raw rawMessage
	if err := json.Unmarshal(l.Message, &raw); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if raw.Role != "" && raw.Role != TypeAssistant {
		return Message{}, ErrNotAssistant
	}

	segments, err := parseContent(raw.Content)
	if err != nil {
		return Message{}, err
	}

	return Message{
		UUID:      l.UUID,
		SessionID: l.SessionID,
		Role:      TypeAssistant,
		Timestamp: l.Timestamp,
		Sidechain: l.IsSidechain || l.IsAPIErrorMessage,
		Segments:  segments,
	}, nil
}

func parseContent(content json.RawMessage) ([]Segment, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil, nil
	}

	if content[0] == '"' {
		var s string
		if err := json.Unmarshal(content, &s); err != nil {
			return nil, fmt.Errorf("decoding string content: %w", err)
		}
		return []Segment{{Kind: SegmentText, Text: s}}, nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return nil, fmt.Errorf("decoding content blocks: %w", err)
	}

	segments := make([]Segment, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case ContentTypeText:
			segments = append(segments, Segment{Kind: SegmentText, Text: b.Text})
		case ContentTypeThinking:
			segments = append(segments, Segment{Kind: SegmentReasoning, Text: b.Thinking})
		}
	}
	return segments, nil
}

// ScanResult summarizes one pass over a chunk of transcript bytes.
type ScanResult struct {
	Messages  []Message
	Lines     int
	Skipped   int // pre-filtered: no assistant marker
	Oversized int
	Malformed int
}

// Scan splits data into lines and decodes the assistant records. Lines
// longer than maxLineBytes are skipped without decoding (large snapshot
// records); malformed lines are skipped silently. A maxLineBytes of zero
// disables the ceiling.
func Scan(data []byte, maxLineBytes int) ScanResult {
	var res ScanResult
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		res.Lines++

		if maxLineBytes > 0 && len(line) > maxLineBytes {
			res.Oversized++
			continue
		}
		if !MayBeAssistant(line) {
			res.Skipped++
			continue
		}

		msg, err := ParseLine(line)
		if err != nil {
			if errors.Is(err, ErrNotAssistant) {
				res.Skipped++
			} else {
				res.Malformed++
			}
			continue
		}
		res.Messages = append(res.Messages, msg)
	}
	return res
}
