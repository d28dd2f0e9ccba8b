package mirror_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dukex/chanmirror/pkg/mirror"
	"github.com/dukex/chanmirror/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		name    string
		msg     models.Message
		author  string
		isReply bool
		want    string
	}{
		{
			name:   "header only for empty body",
			msg:    models.Message{TS: 1712345678},
			author: "Ada",
			want:   "2024-04-05T19:34:38Z — Ada",
		},
		{
			name:    "reply suffix",
			msg:     models.Message{TS: 1712345678, Text: "agreed"},
			author:  "Ada",
			isReply: true,
			want:    "2024-04-05T19:34:38Z — Ada (reply)\nagreed",
		},
		{
			name: "reactions keep source order",
			msg: models.Message{
				TS:        1712345678,
				Text:      "ship it",
				Reactions: []models.Reaction{{Name: "rocket", Count: 3}, {Name: "eyes", Count: 1}},
			},
			author: "Ada",
			want:   "2024-04-05T19:34:38Z — Ada\nship it\nReactions: rocket×3, eyes×1",
		},
		{
			name: "attachments without body",
			msg: models.Message{
				TS:          1712345678,
				Attachments: []string{"spec.pdf", "diagram.png"},
			},
			author: "Ada",
			want:   "2024-04-05T19:34:38Z — Ada\nAttachments: spec.pdf, diagram.png",
		},
		{
			name: "everything",
			msg: models.Message{
				TS:          1712345678.5,
				Text:        "  notes  ",
				Reactions:   []models.Reaction{{Name: "+1", Count: 2}},
				Attachments: []string{"notes.txt"},
			},
			author: "Linus",
			want:   "2024-04-05T19:34:38Z — Linus\nnotes\nReactions: +1×2\nAttachments: notes.txt",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mirror.Render(tc.msg, tc.author, tc.isReply))
		})
	}
}

func TestRender_TruncatesLongBodies(t *testing.T) {
	body := strings.Repeat("é", mirror.MaxBodyRunes+10)

	rendered := mirror.Render(models.Message{TS: 1, Text: body}, "Ada", false)
	lines := strings.SplitN(rendered, "\n", 2)

	assert.Equal(t, mirror.MaxBodyRunes+1, utf8.RuneCountInString(lines[1]))
	assert.True(t, strings.HasSuffix(lines[1], "…"))

	exact := strings.Repeat("a", mirror.MaxBodyRunes)
	rendered = mirror.Render(models.Message{TS: 1, Text: exact}, "Ada", false)
	assert.False(t, strings.HasSuffix(rendered, "…"))
}

func TestRender_IsDeterministic(t *testing.T) {
	msg := models.Message{TS: 42, Text: "same", Reactions: []models.Reaction{{Name: "a", Count: 1}}}

	assert.Equal(t, mirror.Render(msg, "Ada", false), mirror.Render(msg, "Ada", false))
}

func TestRenderDeleted(t *testing.T) {
	assert.Equal(t, "2024-04-05T19:34:38Z — [message deleted]", mirror.RenderDeleted(1712345678.123456))
}
