package notion

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:           server.URL,
		Token:             "secret_test",
		HTTPClient:        server.Client(),
		RequestsPerSecond: 1000,
		BaseDelay:         time.Millisecond,
		MaxDelay:          time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	return client
}

func TestClient_CreateSubpage(t *testing.T) {
	var captured createPageRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer secret_test", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("Notion-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{"object": "page", "id": "page-1"}`))
	})

	id, err := client.CreateSubpage(t.Context(), "root", "#general")
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)

	assert.Equal(t, "root", captured.Parent.PageID)
	require.Len(t, captured.Properties["title"].Title, 1)
	assert.Equal(t, "#general", captured.Properties["title"].Title[0].Text.Content)
}

func TestClient_AppendItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/blocks/page-1/children", r.URL.Path)

		var req appendRequest

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Children, 2)
		assert.Equal(t, "bulleted_list_item", req.Children[0].Type)
		assert.Equal(t, "one", req.Children[0].BulletedListItem.RichText[0].Text.Content)

		_, _ = w.Write([]byte(`{"results": [{"id": "old"}, {"id": "b-1"}, {"id": "b-2"}]}`))
	})

	ids, err := client.AppendItems(t.Context(), "page-1", []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1", "b-2"}, ids)
}

func TestClient_AppendItems_Batches(t *testing.T) {
	var calls int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		var req appendRequest

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		results := make([]objectResponse, 0, len(req.Children))
		for _, child := range req.Children {
			results = append(results, objectResponse{ID: "id-" + child.BulletedListItem.RichText[0].Text.Content})
		}

		_ = json.NewEncoder(w).Encode(listResponse{Results: results})
	})

	items := make([]string, 150)
	for i := range items {
		items[i] = fmt.Sprint(i)
	}

	ids, err := client.AppendItems(t.Context(), "page-1", items)
	require.NoError(t, err)
	require.Len(t, ids, 150)
	assert.Equal(t, "id-0", ids[0])
	assert.Equal(t, "id-149", ids[149])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_AppendItems_ShortResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})

	ids, err := client.AppendItems(t.Context(), "page-1", []string{"one"})
	require.Error(t, err)
	assert.Empty(t, ids)
}

func TestClient_UpdateItem(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/blocks/b-1":
			var req updateRequest

			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "edited", req.BulletedListItem.RichText[0].Text.Content)

			_, _ = w.Write([]byte(`{"object": "block", "id": "b-1"}`))
		case "/v1/blocks/gone":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"object": "error", "code": "object_not_found", "message": "Could not find block"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"object": "error", "code": "validation_error", "message": "bad"}`))
		}
	})

	ok, err := client.UpdateItem(t.Context(), "b-1", "edited")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.UpdateItem(t.Context(), "gone", "edited")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = client.UpdateItem(t.Context(), "other", "edited")
	require.Error(t, err)
	assert.False(t, ok)

	var apiErr *APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClient_RetriesTransientFailure(t *testing.T) {
	var calls int32

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"code": "service_unavailable", "message": "try again"}`))

			return
		}

		_, _ = w.Write([]byte(`{"object": "page", "id": "page-2"}`))
	})

	id, err := client.CreateSubpage(t.Context(), "root", "#random")
	require.NoError(t, err)
	assert.Equal(t, "page-2", id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSplitText(t *testing.T) {
	long := strings.Repeat("é", maxTextRunes+5)

	parts := splitText(long)
	require.Len(t, parts, 2)
	assert.Len(t, []rune(parts[0].Text.Content), maxTextRunes)
	assert.Len(t, []rune(parts[1].Text.Content), 5)

	assert.Len(t, splitText(""), 1)
}

func TestNewFactory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/pages/root" {
			_, _ = w.Write([]byte(`{"object": "page", "id": "root"}`))

			return
		}

		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code": "object_not_found", "message": "missing"}`))
	}))
	defer server.Close()

	factory := NewFactory(Options{BaseURL: server.URL, Token: "t", HTTPClient: server.Client()}, slog.New(slog.DiscardHandler))

	target, err := factory(t.Context(), &models.Workflow{ID: "wf-1", TargetRootID: "root"})
	require.NoError(t, err)
	assert.NotNil(t, target)

	_, err = factory(t.Context(), &models.Workflow{ID: "wf-2", TargetRootID: "elsewhere"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object_not_found")

	_, err = NewFactory(Options{}, slog.New(slog.DiscardHandler))(t.Context(), &models.Workflow{ID: "wf-3"})
	require.ErrorIs(t, err, ErrMissingToken)
}
