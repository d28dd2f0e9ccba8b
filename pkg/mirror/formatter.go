package mirror

import (
	"strconv"
	"strings"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
)

const (
	// MaxBodyRunes caps the message body copied into one target item.
	MaxBodyRunes = 1800

	truncationMarker = "…"
	deletedMarker    = "[message deleted]"
	headerSeparator  = " — "
)

// Render turns a message into the text of one target item: a header with the
// UTC timestamp and author, the (possibly truncated) body, then optional
// reactions and attachments lines.
func Render(msg models.Message, author string, isReply bool) string {
	var b strings.Builder

	b.WriteString(msg.Time().Format(time.RFC3339))
	b.WriteString(headerSeparator)
	b.WriteString(author)

	if isReply {
		b.WriteString(" (reply)")
	}

	if body := truncate(strings.TrimSpace(msg.Text), MaxBodyRunes); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}

	if len(msg.Reactions) > 0 {
		parts := make([]string, 0, len(msg.Reactions))
		for _, reaction := range msg.Reactions {
			parts = append(parts, reaction.Name+"×"+strconv.Itoa(reaction.Count))
		}

		b.WriteString("\nReactions: ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if len(msg.Attachments) > 0 {
		b.WriteString("\nAttachments: ")
		b.WriteString(strings.Join(msg.Attachments, ", "))
	}

	return b.String()
}

// RenderDeleted is the terminal rendering of a message removed at the source.
func RenderDeleted(ts float64) string {
	return models.TSTime(ts).Format(time.RFC3339) + headerSeparator + deletedMarker
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit]) + truncationMarker
}
