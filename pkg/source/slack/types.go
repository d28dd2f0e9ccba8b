package slack

import (
	"fmt"
	"strings"

	"github.com/dukex/chanmirror/pkg/models"
)

// apiResponse is the envelope shared by every Web API method.
type apiResponse struct {
	OK               bool   `json:"ok"`
	Error            string `json:"error,omitempty"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type historyResponse struct {
	apiResponse

	Messages []rawMessage `json:"messages"`
	HasMore  bool         `json:"has_more"`
}

type rawReaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type rawFile struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type rawAttachment struct {
	Title    string `json:"title"`
	Fallback string `json:"fallback"`
}

type rawMessage struct {
	TS          string          `json:"ts"`
	ThreadTS    string          `json:"thread_ts,omitempty"`
	User        string          `json:"user,omitempty"`
	BotID       string          `json:"bot_id,omitempty"`
	Subtype     string          `json:"subtype,omitempty"`
	Text        string          `json:"text"`
	ReplyCount  int             `json:"reply_count,omitempty"`
	Reactions   []rawReaction   `json:"reactions,omitempty"`
	Files       []rawFile       `json:"files,omitempty"`
	Attachments []rawAttachment `json:"attachments,omitempty"`
}

type userResponse struct {
	apiResponse

	User struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		RealName string `json:"real_name"`
		Profile  struct {
			DisplayName string `json:"display_name"`
			RealName    string `json:"real_name"`
		} `json:"profile"`
	} `json:"user"`
}

type botResponse struct {
	apiResponse

	Bot struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"bot"`
}

// displayName prefers the name people chose for themselves.
func (u *userResponse) displayName() string {
	for _, candidate := range []string{
		u.User.Profile.DisplayName,
		u.User.Profile.RealName,
		u.User.RealName,
		u.User.Name,
	} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}

	return ""
}

// normalize converts a raw record. Replies carry ParentTS.
func (r *rawMessage) normalize() (models.Message, error) {
	ts, err := models.ParseTS(r.TS)
	if err != nil {
		return models.Message{}, fmt.Errorf("message without usable ts: %w", err)
	}

	msg := models.Message{
		TS:         ts,
		AuthorID:   r.User,
		Text:       r.Text,
		ReplyCount: r.ReplyCount,
	}

	if msg.AuthorID == "" {
		msg.AuthorID = r.BotID
	}

	for _, reaction := range r.Reactions {
		msg.Reactions = append(msg.Reactions, models.Reaction{Name: reaction.Name, Count: reaction.Count})
	}

	for _, file := range r.Files {
		name := file.Name
		if name == "" {
			name = file.Title
		}

		if name != "" {
			msg.Attachments = append(msg.Attachments, name)
		}
	}

	for _, attachment := range r.Attachments {
		name := attachment.Title
		if name == "" {
			name = attachment.Fallback
		}

		if name != "" {
			msg.Attachments = append(msg.Attachments, name)
		}
	}

	if r.ThreadTS != "" && r.ThreadTS != r.TS {
		parent, err := models.ParseTS(r.ThreadTS)
		if err != nil {
			return models.Message{}, fmt.Errorf("message %s has invalid thread_ts: %w", r.TS, err)
		}

		msg.ParentTS = &parent
		msg.ReplyCount = 0
	}

	return msg, nil
}
