// Package notion writes mirrored channels into a Notion page tree.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/chanmirror/pkg/apiclient"
	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/protocol"
)

const (
	DefaultBaseURL    = "https://api.notion.com"
	DefaultAPIVersion = "2022-06-28"
)

var ErrMissingToken = errors.New("notion token is required")

// APIError is a non-2xx response from Notion.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion request failed: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("notion request failed: status=%d message=%s", e.StatusCode, e.Message)
}

type Options struct {
	BaseURL    string
	Token      string
	APIVersion string
	HTTPClient *http.Client
	// Notion averages three requests per second per integration.
	RequestsPerSecond float64
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// Client implements protocol.Target.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	api        *apiclient.Client
	logger     *slog.Logger
}

var _ protocol.Target = (*Client)(nil)

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrMissingToken
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = 3
	}

	logger = logger.With("module", "notion-target")

	return &Client{
		baseURL:    baseURL,
		token:      token,
		apiVersion: apiVersion,
		logger:     logger,
		api: apiclient.New(apiclient.Options{
			HTTPClient:        opts.HTTPClient,
			RequestsPerSecond: rps,
			Burst:             3,
			MaxRetries:        opts.MaxRetries,
			BaseDelay:         opts.BaseDelay,
			MaxDelay:          opts.MaxDelay,
			Logger:            logger,
		}),
	}, nil
}

// NewFactory returns a TargetFactory that checks the token and that the
// workflow root page is reachable.
func NewFactory(opts Options, logger *slog.Logger) protocol.TargetFactory {
	return func(ctx context.Context, workflow *models.Workflow) (protocol.Target, error) {
		client, err := NewClient(opts, logger)
		if err != nil {
			return nil, err
		}

		err = client.CheckPage(ctx, workflow.TargetRootID)
		if err != nil {
			return nil, fmt.Errorf("notion target unavailable for workflow %s: %w", workflow.ID, err)
		}

		return client, nil
	}
}

// CheckPage verifies the integration can read pageID.
func (c *Client) CheckPage(ctx context.Context, pageID string) error {
	var out objectResponse

	return c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &out)
}

func (c *Client) CreateSubpage(ctx context.Context, parentID, title string) (string, error) {
	req := createPageRequest{
		Parent: pageParent{PageID: parentID},
		Properties: map[string]titleProperty{
			"title": {Title: splitText(title)},
		},
	}

	var out objectResponse

	err := c.do(ctx, http.MethodPost, "/v1/pages", req, &out)
	if err != nil {
		return "", err
	}

	if out.ID == "" {
		return "", errors.New("notion returned a page without id")
	}

	return out.ID, nil
}

// AppendItems appends in batches of maxChildren. A failed batch fails the
// call; blocks from earlier batches stay in place.
func (c *Client) AppendItems(ctx context.Context, parentID string, items []string) ([]string, error) {
	ids := make([]string, 0, len(items))

	for start := 0; start < len(items); start += maxChildren {
		batch := items[start:min(start+maxChildren, len(items))]

		req := appendRequest{Children: make([]block, 0, len(batch))}
		for _, item := range batch {
			req.Children = append(req.Children, bulletBlock(item))
		}

		var out listResponse

		err := c.do(ctx, http.MethodPatch, "/v1/blocks/"+parentID+"/children", req, &out)
		if err != nil {
			return nil, err
		}

		// Notion returns the appended blocks last.
		if len(out.Results) < len(batch) {
			return nil, fmt.Errorf("notion returned %d blocks for %d items", len(out.Results), len(batch))
		}

		for _, result := range out.Results[len(out.Results)-len(batch):] {
			ids = append(ids, result.ID)
		}
	}

	return ids, nil
}

// UpdateItem returns false when the block no longer exists.
func (c *Client) UpdateItem(ctx context.Context, blockID, text string) (bool, error) {
	req := updateRequest{BulletedListItem: listItem{RichText: splitText(text)}}

	err := c.do(ctx, http.MethodPatch, "/v1/blocks/"+blockID, req, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte

	if payload != nil {
		var err error

		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	resp, err := c.api.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.apiVersion)

		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		return req, nil
	})
	if err != nil {
		return fmt.Errorf("notion %s %s: %w", method, path, err)
	}

	if !resp.OK() {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(resp.Body))}

		var parsed errorResponse
		if json.Unmarshal(resp.Body, &parsed) == nil {
			apiErr.Code = parsed.Code
			if strings.TrimSpace(parsed.Message) != "" {
				apiErr.Message = parsed.Message
			}
		}

		return apiErr
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(resp.Body, out)
	if err != nil {
		return fmt.Errorf("notion %s %s: invalid response: %w", method, path, err)
	}

	return nil
}
