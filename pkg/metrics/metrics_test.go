package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveRun(t *testing.T) {
	recorder := NewRecorder()

	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	stats := &models.RunStats{
		WorkflowID:        "wf-1",
		MessagesSynced:    3,
		RepliesSynced:     2,
		MessagesUpdated:   1,
		DeletionsMarked:   1,
		ChannelsProcessed: 2,
		StartedAt:         started,
	}
	stats.Finish(started.Add(3 * time.Second))

	recorder.ObserveRun(stats)

	assert.InDelta(t, 1, testutil.ToFloat64(recorder.runs.WithLabelValues("wf-1", "completed", "")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(recorder.items.WithLabelValues("wf-1", "message")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(recorder.items.WithLabelValues("wf-1", "reply")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(recorder.channels.WithLabelValues("wf-1")), 0)
	assert.InDelta(t, float64(stats.FinishedAt.Unix()), testutil.ToFloat64(recorder.lastSuccess.WithLabelValues("wf-1")), 0)
}

func TestRecorder_SkippedAndFailed(t *testing.T) {
	recorder := NewRecorder()

	now := time.Now()
	recorder.ObserveRun(models.NewSkippedRun("wf-1", models.SkipInactive, now, now))
	recorder.ObserveFailure("wf-1")

	assert.InDelta(t, 1, testutil.ToFloat64(recorder.runs.WithLabelValues("wf-1", "skipped", "inactive")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(recorder.runs.WithLabelValues("wf-1", "failed", "")), 0)
}

func TestRecorder_Handler(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveFailure("wf-9")

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chanmirror_runs_total{")
	assert.Contains(t, string(body), `outcome="failed"`)
	assert.Contains(t, string(body), `workflow_id="wf-9"`)
	assert.Contains(t, string(body), "go_goroutines")
}
