package models

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Workflow Model Tests

func TestWorkflow_Validation_Valid(t *testing.T) {
	workflow := &Workflow{
		ID:           "wf-1",
		Name:         "Engineering mirror",
		Type:         WorkflowTypeMirror,
		Status:       WorkflowStatusActive,
		TargetRootID: "root-page",
	}

	validate := validator.New()
	assert.NoError(t, validate.Struct(workflow))
}

func TestWorkflow_Validation_InvalidStatus(t *testing.T) {
	workflow := &Workflow{
		Name:   "Engineering mirror",
		Type:   WorkflowTypeMirror,
		Status: "archived",
	}

	validate := validator.New()
	err := validate.Struct(workflow)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors

	require.True(t, errors.As(err, &validationErrors))
	assert.Equal(t, "Status", validationErrors[0].Field())
	assert.Equal(t, "oneof", validationErrors[0].Tag())
}

func TestWorkflow_IsMirrorAndActive(t *testing.T) {
	workflow := &Workflow{Type: WorkflowTypeMirror, Status: WorkflowStatusActive}
	assert.True(t, workflow.IsMirror())
	assert.True(t, workflow.IsActive())

	workflow.Type = "digest"
	workflow.Status = WorkflowStatusPaused
	assert.False(t, workflow.IsMirror())
	assert.False(t, workflow.IsActive())
}

// Schedule Tests

func TestValidateSchedule(t *testing.T) {
	testCases := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "empty means on demand", expr: ""},
		{name: "every five minutes", expr: "*/5 * * * *"},
		{name: "hourly", expr: "0 * * * *"},
		{name: "six fields rejected", expr: "0 */5 * * * *", wantErr: true},
		{name: "garbage", expr: "whenever", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSchedule(tc.expr)
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidSchedule)

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestWorkflow_NextRunAt_UsesLastRun(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	lastRun := time.Date(2026, 1, 1, 12, 7, 0, 0, time.UTC)

	workflow := &Workflow{Schedule: "*/15 * * * *", CreatedAt: created}

	next, ok, err := workflow.NextRunAt()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC), next)

	workflow.LastRunAt = &lastRun

	next, ok, err = workflow.NextRunAt()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC), next)
}

func TestWorkflow_NextRunAt_NoSchedule(t *testing.T) {
	workflow := &Workflow{}

	_, ok, err := workflow.NextRunAt()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWorkflow_ActivationAfter(t *testing.T) {
	workflow := &Workflow{Schedule: "0 * * * *"}

	next, ok, err := workflow.ActivationAfter(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC), next)

	workflow.Schedule = "whenever"

	_, _, err = workflow.ActivationAfter(time.Now())
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestWorkflow_IsDue(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	workflow := &Workflow{
		Type:      WorkflowTypeMirror,
		Status:    WorkflowStatusActive,
		Schedule:  "0 * * * *",
		CreatedAt: created,
	}

	assert.False(t, workflow.IsDue(created.Add(30*time.Minute)))
	assert.True(t, workflow.IsDue(created.Add(time.Hour)))

	workflow.Status = WorkflowStatusPaused
	assert.False(t, workflow.IsDue(created.Add(2*time.Hour)))

	workflow.Status = WorkflowStatusActive
	workflow.Schedule = ""
	assert.False(t, workflow.IsDue(created.Add(2*time.Hour)))
}

// Message Tests

func TestParseTSAndFormatTS(t *testing.T) {
	ts, err := ParseTS("1712345678.123456")
	require.NoError(t, err)
	assert.Equal(t, "1712345678.123456", FormatTS(ts))

	_, err = ParseTS("")
	assert.Error(t, err)

	_, err = ParseTS("yesterday")
	assert.Error(t, err)
}

func TestMessage_Time(t *testing.T) {
	msg := Message{TS: 10}
	assert.Equal(t, time.Unix(10, 0).UTC(), msg.Time())
	assert.False(t, msg.HasThread())

	msg.ReplyCount = 2
	assert.True(t, msg.HasThread())
}

func TestMessageMapping_Flags(t *testing.T) {
	parent := 10.0
	now := time.Now()

	mapping := &MessageMapping{SourceTS: 11, ParentSourceTS: &parent}
	assert.True(t, mapping.IsReply())
	assert.False(t, mapping.IsDeleted())

	mapping.DeletedAt = &now
	assert.True(t, mapping.IsDeleted())
}

func TestNewSkippedRun(t *testing.T) {
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	stats := NewSkippedRun("wf-1", SkipInactive, started, started.Add(time.Second))

	assert.True(t, stats.Skipped)
	assert.Equal(t, SkipInactive, stats.Reason)
	assert.Equal(t, "wf-1", stats.WorkflowID)
	assert.Equal(t, time.Second, stats.Duration)
}

func TestRunStats_FinishAndItems(t *testing.T) {
	started := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	stats := &RunStats{StartedAt: started, MessagesSynced: 2, RepliesSynced: 3}
	stats.Finish(started.Add(90 * time.Second))

	assert.Equal(t, 90*time.Second, stats.Duration)
	assert.Equal(t, 5, stats.Items())
}
