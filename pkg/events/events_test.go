package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()

	base := NewBaseEvent("evt-1", MirrorRunRequestedEvent, "wf-1")

	assert.Equal(t, "evt-1", base.ID)
	assert.Equal(t, MirrorRunRequestedEvent, base.Type)
	assert.Equal(t, "wf-1", base.WorkflowID)
	assert.False(t, base.Timestamp.Before(before))
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, MirrorRunRequestedEvent, MirrorRunRequested{}.GetType())
	assert.Equal(t, MirrorRunCompletedEvent, MirrorRunCompleted{}.GetType())
	assert.Equal(t, MirrorRunSkippedEvent, MirrorRunSkipped{}.GetType())
	assert.Equal(t, MirrorRunFailedEvent, MirrorRunFailed{}.GetType())
}

func TestMirrorRunCompleted_JSON(t *testing.T) {
	event := MirrorRunCompleted{
		BaseEvent: NewBaseEvent("evt-2", MirrorRunCompletedEvent, "wf-1"),
		Stats:     &models.RunStats{WorkflowID: "wf-1", MessagesSynced: 3, ChannelsProcessed: 1},
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]any

	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "mirror.run_completed", raw["type"])
	assert.Equal(t, "wf-1", raw["workflow_id"])

	stats, ok := raw["stats"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, stats["messages_synced"], 0)
}
