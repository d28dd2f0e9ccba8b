package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reaction is an emoji label and how many people used it.
type Reaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Message is a normalized source message. Source adapters resolve raw API
// records into this shape; the rest of the pipeline never sees the raw form.
type Message struct {
	TS             float64    `json:"ts"`
	AuthorID       string     `json:"author_id"`
	Text           string     `json:"text"`
	Reactions      []Reaction `json:"reactions,omitempty"`
	Attachments    []string   `json:"attachments,omitempty"`
	ReplyCount     int        `json:"reply_count"`
	ParentTS       *float64   `json:"parent_ts,omitempty"`
	ThreadMessages []Message  `json:"thread_messages,omitempty"`
}

// HasThread reports whether the message has replies to expand.
func (m *Message) HasThread() bool {
	return m.ReplyCount > 0
}

// Time converts the source timestamp to wall-clock time in UTC.
func (m *Message) Time() time.Time {
	return TSTime(m.TS)
}

// ParseTS parses a source timestamp such as "1712345678.123456".
func ParseTS(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}

	return ts, nil
}

// FormatTS renders a source timestamp with microsecond precision, the form
// the source API expects back.
func FormatTS(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 6, 64)
}

// TSTime converts a source timestamp to time.Time in UTC.
func TSTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)

	return time.Unix(sec, nsec).UTC()
}
