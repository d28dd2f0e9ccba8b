// Package slack reads channel history from the Slack Web API.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/chanmirror/pkg/apiclient"
	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/protocol"
)

const (
	DefaultBaseURL = "https://slack.com/api"

	// maxPageSize is the largest page conversations.history accepts.
	maxPageSize = 1000
)

var ErrMissingToken = errors.New("slack token is required")

// APIError is a response with "ok": false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s failed: %s", e.Method, e.Code)
}

type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// Slack allows roughly 50 history calls per minute per workspace.
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// Client implements protocol.Source.
type Client struct {
	baseURL string
	token   string
	api     *apiclient.Client
	logger  *slog.Logger
}

var _ protocol.Source = (*Client)(nil)

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrMissingToken
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = 1
	}

	burst := opts.Burst
	if burst == 0 {
		burst = 5
	}

	logger = logger.With("module", "slack-source")

	return &Client{
		baseURL: baseURL,
		token:   token,
		logger:  logger,
		api: apiclient.New(apiclient.Options{
			HTTPClient:        opts.HTTPClient,
			RequestsPerSecond: rps,
			Burst:             burst,
			MaxRetries:        opts.MaxRetries,
			BaseDelay:         opts.BaseDelay,
			MaxDelay:          opts.MaxDelay,
			Logger:            logger,
		}),
	}, nil
}

// NewFactory returns a SourceFactory that checks the token with auth.test
// before handing the client to a run.
func NewFactory(opts Options, logger *slog.Logger) protocol.SourceFactory {
	return func(ctx context.Context, workflow *models.Workflow) (protocol.Source, error) {
		client, err := NewClient(opts, logger)
		if err != nil {
			return nil, err
		}

		err = client.AuthTest(ctx)
		if err != nil {
			return nil, fmt.Errorf("slack source unavailable for workflow %s: %w", workflow.ID, err)
		}

		return client, nil
	}
}

// AuthTest verifies the token.
func (c *Client) AuthTest(ctx context.Context) error {
	var out apiResponse

	return c.call(ctx, "auth.test", url.Values{}, &out)
}

func (c *Client) ListRecentMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	var (
		messages []models.Message
		cursor   string
	)

	for len(messages) < limit {
		params := url.Values{}
		params.Set("channel", channelID)
		params.Set("limit", strconv.Itoa(min(limit-len(messages), maxPageSize)))

		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page historyResponse

		err := c.call(ctx, "conversations.history", params, &page)
		if err != nil {
			return nil, err
		}

		for i := range page.Messages {
			msg, err := page.Messages[i].normalize()
			if err != nil {
				return nil, fmt.Errorf("channel %s: %w", channelID, err)
			}

			messages = append(messages, msg)
		}

		cursor = page.ResponseMetadata.NextCursor
		if !page.HasMore || cursor == "" || len(page.Messages) == 0 {
			break
		}
	}

	if len(messages) > limit {
		messages = messages[:limit]
	}

	return messages, nil
}

func (c *Client) ListThread(ctx context.Context, channelID string, rootTS float64) ([]models.Message, error) {
	var (
		messages []models.Message
		cursor   string
	)

	for {
		params := url.Values{}
		params.Set("channel", channelID)
		params.Set("ts", models.FormatTS(rootTS))
		params.Set("limit", "200")

		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page historyResponse

		err := c.call(ctx, "conversations.replies", params, &page)
		if err != nil {
			return nil, err
		}

		for i := range page.Messages {
			// Every page repeats the root; keep only the first copy.
			if len(messages) > 0 && page.Messages[i].TS == page.Messages[i].ThreadTS {
				continue
			}

			msg, err := page.Messages[i].normalize()
			if err != nil {
				return nil, fmt.Errorf("thread %s: %w", models.FormatTS(rootTS), err)
			}

			messages = append(messages, msg)
		}

		cursor = page.ResponseMetadata.NextCursor
		if !page.HasMore || cursor == "" {
			return messages, nil
		}
	}
}

// ResolveActorName looks up users, and bots for B-prefixed ids.
func (c *Client) ResolveActorName(ctx context.Context, actorID string) (string, error) {
	if strings.HasPrefix(actorID, "B") {
		var out botResponse

		err := c.call(ctx, "bots.info", url.Values{"bot": {actorID}}, &out)
		if err != nil {
			return "", err
		}

		if out.Bot.Name == "" {
			return "", fmt.Errorf("bot %s has no name", actorID)
		}

		return out.Bot.Name, nil
	}

	var out userResponse

	err := c.call(ctx, "users.info", url.Values{"user": {actorID}}, &out)
	if err != nil {
		return "", err
	}

	name := out.displayName()
	if name == "" {
		return "", fmt.Errorf("user %s has no name", actorID)
	}

	return name, nil
}

// envelope lets call check "ok" on any response type.
type envelope interface {
	status() *apiResponse
}

func (r *apiResponse) status() *apiResponse { return r }

func (c *Client) call(ctx context.Context, method string, params url.Values, out envelope) error {
	endpoint := c.baseURL + "/" + method

	resp, err := c.api.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "Bearer "+c.token)

		return req, nil
	})
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}

	if !resp.OK() {
		return fmt.Errorf("slack %s: unexpected status %d", method, resp.StatusCode)
	}

	err = json.Unmarshal(resp.Body, out)
	if err != nil {
		return fmt.Errorf("slack %s: invalid response: %w", method, err)
	}

	if status := out.status(); !status.OK {
		return &APIError{Method: method, Code: status.Error}
	}

	return nil
}
