package mirror_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/chanmirror/pkg/mirror"
	"github.com/dukex/chanmirror/pkg/mocks"
	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/dukex/chanmirror/pkg/persistence/file"
	"github.com/dukex/chanmirror/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	workflowID = "wf-eng"
	channelID  = "C1"
)

var fixedNow = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

type harness struct {
	store  persistence.Persistence
	source *fakeSource
	target *fakeTarget
	engine *mirror.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:  file.NewPersistence(t.TempDir()),
		source: newFakeSource(),
		target: newFakeTarget(),
	}

	h.engine = h.newEngine(h.store)

	return h
}

func (h *harness) newEngine(store persistence.Persistence) *mirror.Engine {
	return mirror.NewEngine(store,
		func(context.Context, *models.Workflow) (protocol.Source, error) { return h.source, nil },
		func(context.Context, *models.Workflow) (protocol.Target, error) { return h.target, nil },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		mirror.Options{Clock: func() time.Time { return fixedNow }},
	)
}

func (h *harness) saveWorkflow(t *testing.T, mutate func(*models.Workflow)) {
	t.Helper()

	workflow := &models.Workflow{
		ID:           workflowID,
		Name:         "Engineering mirror",
		Type:         models.WorkflowTypeMirror,
		Status:       models.WorkflowStatusActive,
		TargetRootID: "root",
	}

	if mutate != nil {
		mutate(workflow)
	}

	require.NoError(t, h.store.WorkflowRepository().Save(t.Context(), workflow))
}

func (h *harness) bind(t *testing.T, channel, name, subpage string) {
	t.Helper()

	_, err := h.store.ChannelBindingRepository().BindChannel(t.Context(), &models.ChannelBinding{
		WorkflowID:        workflowID,
		SourceChannelID:   channel,
		SourceChannelName: name,
		TargetSubpageID:   subpage,
	})
	require.NoError(t, err)
}

func (h *harness) run(t *testing.T) *models.RunStats {
	t.Helper()

	stats, err := h.engine.Run(t.Context(), workflowID)
	require.NoError(t, err)
	require.NotNil(t, stats)

	return stats
}

func (h *harness) mappings(t *testing.T, channel string) []*models.MessageMapping {
	t.Helper()

	mappings, err := h.store.MappingRepository().ListSince(t.Context(), workflowID, channel, 0)
	require.NoError(t, err)

	return mappings
}

func msg(ts float64, author, text string) models.Message {
	return models.Message{TS: ts, AuthorID: author, Text: text}
}

func TestRun_SingleMessageBootstrap(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "")
	h.source.history[channelID] = []models.Message{msg(10.0, "U1", "hello")}

	stats := h.run(t)

	assert.False(t, stats.Skipped)
	assert.Equal(t, 1, stats.MessagesSynced)
	assert.Equal(t, 0, stats.RepliesSynced)
	assert.Equal(t, 1, stats.ChannelsProcessed)

	assert.Equal(t, []string{"#general"}, h.target.subpages)
	require.Len(t, h.target.appends, 1)
	assert.Equal(t, "page-1", h.target.appends[0].parentID)
	assert.Equal(t, []string{"1970-01-01T00:00:10Z — Ada\nhello"}, h.target.appends[0].items)

	mappings := h.mappings(t, channelID)
	require.Len(t, mappings, 1)
	assert.Equal(t, "block-1", mappings[0].TargetBlockID)
	assert.False(t, mappings[0].IsReply())

	binding, err := h.store.ChannelBindingRepository().GetBinding(t.Context(), workflowID, channelID)
	require.NoError(t, err)
	assert.Equal(t, "page-1", binding.TargetSubpageID)

	workflow, err := h.store.WorkflowRepository().GetByID(t.Context(), workflowID)
	require.NoError(t, err)
	require.NotNil(t, workflow.LastRunAt)
	assert.True(t, fixedNow.Equal(*workflow.LastRunAt))
}

func TestRun_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "")
	h.source.history[channelID] = []models.Message{
		msg(1, "U1", "one"),
		{TS: 2, AuthorID: "U2", Text: "two", ReplyCount: 1},
	}
	h.source.threads[2] = []models.Message{msg(2, "U2", "two"), msg(3, "U1", "reply")}

	first := h.run(t)
	assert.Equal(t, 2, first.MessagesSynced)
	assert.Equal(t, 1, first.RepliesSynced)

	for range 3 {
		again := h.run(t)
		assert.Equal(t, 0, again.MessagesSynced)
		assert.Equal(t, 0, again.RepliesSynced)
		assert.Equal(t, 0, again.DeletionsMarked)
		assert.Equal(t, 3, again.MessagesUpdated)
	}

	assert.Len(t, h.target.appends, 3)
	assert.Len(t, h.target.subpages, 1)
	assert.Len(t, h.mappings(t, channelID), 3)
}

func TestRun_EditPropagatesAsUpdate(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(5, "U1", "draft")}

	h.run(t)

	h.source.history[channelID] = []models.Message{{
		TS:        5,
		AuthorID:  "U1",
		Text:      "final",
		Reactions: []models.Reaction{{Name: "tada", Count: 2}},
	}}

	stats := h.run(t)

	assert.Equal(t, 0, stats.MessagesSynced)
	assert.Equal(t, 1, stats.MessagesUpdated)
	assert.Len(t, h.target.appends, 1)
	assert.Equal(t, []string{"1970-01-01T00:00:05Z — Ada\nfinal\nReactions: tada×2"}, h.target.updates["block-1"])
	assert.Len(t, h.mappings(t, channelID), 1)
}

func TestRun_OrdersOldestFirst(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(3.0, "U1", "c"), msg(1.0, "U1", "a"), msg(2.0, "U1", "b")}

	h.run(t)

	require.Len(t, h.target.appends, 3)
	assert.Contains(t, h.target.appends[0].items[0], "\na")
	assert.Contains(t, h.target.appends[1].items[0], "\nb")
	assert.Contains(t, h.target.appends[2].items[0], "\nc")

	mappings := h.mappings(t, channelID)
	require.Len(t, mappings, 3)
	assert.Equal(t, "block-1", mappings[0].TargetBlockID)
	assert.Equal(t, "block-2", mappings[1].TargetBlockID)
	assert.Equal(t, "block-3", mappings[2].TargetBlockID)
}

func TestRun_ThreadRepliesNestUnderRootBlock(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 2}}
	h.source.threads[10] = []models.Message{
		msg(10, "U1", "root"),
		msg(12, "U2", "second"),
		msg(11, "U1", "first"),
	}

	stats := h.run(t)

	assert.Equal(t, 1, stats.MessagesSynced)
	assert.Equal(t, 2, stats.RepliesSynced)

	assert.Len(t, h.target.appendsUnder("page-x"), 1)

	replies := h.target.appendsUnder("block-1")
	require.Len(t, replies, 2)
	assert.Equal(t, "1970-01-01T00:00:11Z — Ada (reply)\nfirst", replies[0].items[0])
	assert.Equal(t, "1970-01-01T00:00:12Z — Linus (reply)\nsecond", replies[1].items[0])

	mappings := h.mappings(t, channelID)
	require.Len(t, mappings, 3)

	for _, mapping := range mappings[1:] {
		require.True(t, mapping.IsReply())
		assert.InDelta(t, 10, *mapping.ParentSourceTS, 0)
	}
}

func TestRun_DeletionDetectionWindow(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(10, "U1", "old"), msg(100, "U1", "doomed")}

	h.run(t)

	h.source.history[channelID] = []models.Message{msg(50, "U1", "fifty"), msg(150, "U1", "later")}

	stats := h.run(t)

	assert.Equal(t, 1, stats.DeletionsMarked)
	assert.Equal(t, 2, stats.MessagesSynced)

	byTS := make(map[float64]*models.MessageMapping)
	for _, mapping := range h.mappings(t, channelID) {
		byTS[mapping.SourceTS] = mapping
	}

	require.Contains(t, byTS, 100.0)
	assert.True(t, byTS[100].IsDeleted())
	assert.Equal(t, []string{mirror.RenderDeleted(100)}, h.target.updates[byTS[100].TargetBlockID])

	require.Contains(t, byTS, 10.0)
	assert.False(t, byTS[10].IsDeleted())
	assert.Empty(t, h.target.updates[byTS[10].TargetBlockID])

	again := h.run(t)
	assert.Equal(t, 0, again.DeletionsMarked)
	assert.Len(t, h.target.updates[byTS[100].TargetBlockID], 1)
}

func TestRun_EmptyWindowSkipsDeletionCheck(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(10, "U1", "only")}

	h.run(t)

	h.source.history[channelID] = nil

	stats := h.run(t)

	assert.Equal(t, 1, stats.ChannelsProcessed)
	assert.Equal(t, 0, stats.DeletionsMarked)
	assert.False(t, h.mappings(t, channelID)[0].IsDeleted())
}

func TestRun_DeletedReplyIsMarked(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 2}}
	h.source.threads[10] = []models.Message{msg(10, "U1", "root"), msg(11, "U2", "keep"), msg(12, "U2", "gone")}

	h.run(t)

	h.source.history[channelID] = []models.Message{{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 1}}
	h.source.threads[10] = []models.Message{msg(10, "U1", "root"), msg(11, "U2", "keep")}

	stats := h.run(t)

	assert.Equal(t, 1, stats.DeletionsMarked)

	mapping, err := h.store.MappingRepository().Get(t.Context(), workflowID, channelID, 12)
	require.NoError(t, err)
	assert.True(t, mapping.IsDeleted())
}

func TestRun_ThreadFetchFailureProtectsRepliesOfListedRoot(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 1}}
	h.source.threads[10] = []models.Message{msg(10, "U1", "root"), msg(11, "U2", "reply")}

	h.run(t)

	h.source.failThread[10] = true

	stats := h.run(t)

	assert.Equal(t, 0, stats.DeletionsMarked)

	mapping, err := h.store.MappingRepository().Get(t.Context(), workflowID, channelID, 11)
	require.NoError(t, err)
	assert.False(t, mapping.IsDeleted())
}

func TestRun_DeletedRootMarksItsReplies(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{
		msg(5, "U1", "first"),
		{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 1},
		msg(20, "U1", "last"),
	}
	h.source.threads[10] = []models.Message{msg(10, "U1", "root"), msg(11, "U2", "reply")}

	h.run(t)

	h.source.history[channelID] = []models.Message{msg(5, "U1", "first"), msg(20, "U1", "last")}
	delete(h.source.threads, 10)

	stats := h.run(t)

	assert.Equal(t, 2, stats.DeletionsMarked)

	for _, ts := range []float64{10, 11} {
		mapping, err := h.store.MappingRepository().Get(t.Context(), workflowID, channelID, ts)
		require.NoError(t, err)
		assert.True(t, mapping.IsDeleted(), "ts=%v", ts)
		assert.Equal(t, []string{mirror.RenderDeleted(ts)}, h.target.updates[mapping.TargetBlockID])
	}

	again := h.run(t)
	assert.Equal(t, 0, again.DeletionsMarked)
}

func TestRun_FailedAppendIsRetriedNextRun(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 1}, msg(20, "U1", "next")}
	h.source.threads[10] = []models.Message{msg(10, "U1", "root"), msg(11, "U2", "reply")}

	h.target.failAppend = func(text string) bool { return text == "1970-01-01T00:00:10Z — Ada\nroot" }

	first := h.run(t)

	assert.Equal(t, 1, first.MessagesSynced)
	assert.Equal(t, 0, first.RepliesSynced)
	assert.Len(t, h.mappings(t, channelID), 1)

	h.target.failAppend = nil

	second := h.run(t)

	assert.Equal(t, 1, second.MessagesSynced)
	assert.Equal(t, 1, second.RepliesSynced)
	assert.Equal(t, 0, second.DeletionsMarked)
	assert.Len(t, h.mappings(t, channelID), 3)
}

func TestRun_UpdateFailureKeepsSingleMapping(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(10, "U1", "hello")}

	h.run(t)

	h.target.failUpdates = true

	stats := h.run(t)

	assert.Equal(t, 0, stats.MessagesSynced)
	assert.Equal(t, 0, stats.MessagesUpdated)
	assert.Len(t, h.target.appends, 1)
	assert.Len(t, h.mappings(t, channelID), 1)
}

func TestRun_ChannelFailuresAreIsolated(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, "C1", "broken-page", "")
	h.bind(t, "C2", "broken-fetch", "page-2")
	h.bind(t, "C3", "healthy", "")

	h.target.failCreate["#broken-page"] = true
	h.source.failFetch["C2"] = true
	h.source.history["C1"] = []models.Message{msg(1, "U1", "lost")}
	h.source.history["C3"] = []models.Message{msg(1, "U1", "kept")}

	stats := h.run(t)

	assert.Equal(t, 1, stats.ChannelsProcessed)
	assert.Equal(t, 1, stats.MessagesSynced)
	assert.Equal(t, []string{"#healthy"}, h.target.subpages)

	binding, err := h.store.ChannelBindingRepository().GetBinding(t.Context(), workflowID, "C1")
	require.NoError(t, err)
	assert.False(t, binding.HasSubpage())
}

func TestRun_UnknownAuthorFallsBackToID(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(1, "U404", "a"), msg(2, "U404", "b"), msg(3, "U1", "c")}

	h.run(t)

	assert.Equal(t, "1970-01-01T00:00:01Z — U404\na", h.target.appends[0].items[0])
	assert.Equal(t, 2, h.source.nameCalls)
}

func TestRun_SkipReasons(t *testing.T) {
	testCases := []struct {
		name   string
		setup  func(t *testing.T, h *harness)
		reason models.SkipReason
	}{
		{
			name:   "missing workflow",
			setup:  func(*testing.T, *harness) {},
			reason: models.SkipWorkflowNotFound,
		},
		{
			name: "unsupported type",
			setup: func(t *testing.T, h *harness) {
				h.saveWorkflow(t, func(w *models.Workflow) { w.Type = "digest" })
			},
			reason: models.SkipUnsupportedType,
		},
		{
			name: "paused",
			setup: func(t *testing.T, h *harness) {
				h.saveWorkflow(t, func(w *models.Workflow) { w.Status = models.WorkflowStatusPaused })
			},
			reason: models.SkipInactive,
		},
		{
			name: "no target root",
			setup: func(t *testing.T, h *harness) {
				h.saveWorkflow(t, func(w *models.Workflow) { w.TargetRootID = "" })
			},
			reason: models.SkipMissingTargetRoot,
		},
		{
			name: "no channels",
			setup: func(t *testing.T, h *harness) {
				h.saveWorkflow(t, nil)
			},
			reason: models.SkipNoChannels,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.setup(t, h)

			stats := h.run(t)

			assert.True(t, stats.Skipped)
			assert.Equal(t, tc.reason, stats.Reason)
			assert.Equal(t, workflowID, stats.WorkflowID)
			assert.Empty(t, h.target.appends)
		})
	}
}

func TestRun_AdapterInitFailuresSkip(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	noSource := mirror.NewEngine(h.store,
		func(context.Context, *models.Workflow) (protocol.Source, error) { return nil, errUnavailable },
		func(context.Context, *models.Workflow) (protocol.Target, error) { return h.target, nil },
		logger, mirror.Options{},
	)

	stats, err := noSource.Run(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.SkipSourceUnavailable, stats.Reason)

	noTarget := mirror.NewEngine(h.store,
		func(context.Context, *models.Workflow) (protocol.Source, error) { return h.source, nil },
		func(context.Context, *models.Workflow) (protocol.Target, error) { return nil, errUnavailable },
		logger, mirror.Options{},
	)

	stats, err = noTarget.Run(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, models.SkipTargetUnavailable, stats.Reason)

	workflow, err := h.store.WorkflowRepository().GetByID(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Nil(t, workflow.LastRunAt)
}

func TestRun_FetchLimitIsPassedToSource(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(1, "U1", "a"), msg(2, "U1", "b"), msg(3, "U1", "c")}

	engine := mirror.NewEngine(h.store,
		func(context.Context, *models.Workflow) (protocol.Source, error) { return h.source, nil },
		func(context.Context, *models.Workflow) (protocol.Target, error) { return h.target, nil },
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		mirror.Options{FetchLimit: 2},
	)

	stats, err := engine.Run(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MessagesSynced)
}

// failingWorkflows breaks registry reads.
type failingWorkflows struct {
	persistence.WorkflowRepository
}

func (failingWorkflows) GetByID(context.Context, string) (*models.Workflow, error) {
	return nil, errors.New("connection reset")
}

type brokenRegistry struct {
	persistence.Persistence
}

func (b brokenRegistry) WorkflowRepository() persistence.WorkflowRepository {
	return failingWorkflows{b.Persistence.WorkflowRepository()}
}

func TestRun_RegistryFailureIsReturned(t *testing.T) {
	h := newHarness(t)

	engine := h.newEngine(brokenRegistry{h.store})

	stats, err := engine.Run(t.Context(), workflowID)
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.Contains(t, err.Error(), "connection reset")
}

// racingMappings lets a concurrent writer claim every key right before Put.
type racingMappings struct {
	persistence.MappingRepository
}

func (r racingMappings) Put(ctx context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error) {
	winner := *mapping
	winner.TargetBlockID = "winner-block"

	_, err := r.MappingRepository.Put(ctx, &winner)
	if err != nil {
		return nil, err
	}

	return r.MappingRepository.Put(ctx, mapping)
}

type racingStore struct {
	persistence.Persistence
}

func (r racingStore) MappingRepository() persistence.MappingRepository {
	return racingMappings{r.Persistence.MappingRepository()}
}

func TestRun_LostInsertRaceKeepsWinner(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(10, "U1", "hello")}

	engine := h.newEngine(racingStore{h.store})

	stats, err := engine.Run(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.MessagesSynced)

	mappings := h.mappings(t, channelID)
	require.Len(t, mappings, 1)
	assert.Equal(t, "winner-block", mappings[0].TargetBlockID)
}

func TestRun_SubpageFailureSkipsChannel(t *testing.T) {
	testCases := []struct {
		name      string
		subpageID string
		err       error
	}{
		{name: "create fails", err: errUnavailable},
		{name: "empty id", subpageID: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.saveWorkflow(t, nil)
			h.bind(t, channelID, "general", "")
			h.source.history[channelID] = []models.Message{msg(1, "U1", "hello")}

			target := &mocks.MockTarget{}
			target.On("CreateSubpage", mock.Anything, "root", "#general").Return(tc.subpageID, tc.err)

			engine := mirror.NewEngine(h.store,
				func(context.Context, *models.Workflow) (protocol.Source, error) { return h.source, nil },
				func(context.Context, *models.Workflow) (protocol.Target, error) { return target, nil },
				slog.New(slog.NewTextHandler(io.Discard, nil)),
				mirror.Options{Clock: func() time.Time { return fixedNow }},
			)

			stats, err := engine.Run(t.Context(), workflowID)
			require.NoError(t, err)
			assert.False(t, stats.Skipped)
			assert.Equal(t, 0, stats.ChannelsProcessed)
			assert.Equal(t, 0, stats.MessagesSynced)

			target.AssertExpectations(t)
			target.AssertNotCalled(t, "AppendItems", mock.Anything, mock.Anything, mock.Anything)

			binding, err := h.store.ChannelBindingRepository().GetBinding(t.Context(), workflowID, channelID)
			require.NoError(t, err)
			assert.False(t, binding.HasSubpage())
			assert.Empty(t, h.mappings(t, channelID))
		})
	}
}

// unlistableMappings fails the deletion-pass query.
type unlistableMappings struct {
	persistence.MappingRepository
}

func (unlistableMappings) ListSince(context.Context, string, string, float64) ([]*models.MessageMapping, error) {
	return nil, errors.New("query timeout")
}

type unlistableStore struct {
	persistence.Persistence
}

func (u unlistableStore) MappingRepository() persistence.MappingRepository {
	return unlistableMappings{u.Persistence.MappingRepository()}
}

func TestRun_DeletionQueryFailureSkipsChannel(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{msg(10, "U1", "hello")}

	engine := h.newEngine(unlistableStore{h.store})

	stats, err := engine.Run(t.Context(), workflowID)
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 1, stats.MessagesSynced)
	assert.Equal(t, 0, stats.ChannelsProcessed)
	assert.Equal(t, 0, stats.DeletionsMarked)
}

// forgetfulMappings loses the race and then cannot read the winner back.
type forgetfulMappings struct {
	persistence.MappingRepository

	lost *bool
}

func (f forgetfulMappings) Get(ctx context.Context, workflowID, channelID string, ts float64) (*models.MessageMapping, error) {
	if *f.lost {
		return nil, errors.New("replica lag")
	}

	return f.MappingRepository.Get(ctx, workflowID, channelID, ts)
}

func (f forgetfulMappings) Put(ctx context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error) {
	*f.lost = true

	return nil, persistence.ErrMappingExists
}

type forgetfulStore struct {
	persistence.Persistence

	lost *bool
}

func (f forgetfulStore) MappingRepository() persistence.MappingRepository {
	return forgetfulMappings{MappingRepository: f.Persistence.MappingRepository(), lost: f.lost}
}

func TestRun_LostInsertRaceWithUnreadableWinner(t *testing.T) {
	h := newHarness(t)
	h.saveWorkflow(t, nil)
	h.bind(t, channelID, "general", "page-x")
	h.source.history[channelID] = []models.Message{{TS: 10, AuthorID: "U1", Text: "root", ReplyCount: 1}}
	h.source.threads[10] = []models.Message{msg(10, "U1", "root"), msg(11, "U2", "reply")}

	lost := false
	engine := h.newEngine(forgetfulStore{Persistence: h.store, lost: &lost})

	stats, err := engine.Run(t.Context(), workflowID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.MessagesSynced)
	assert.Equal(t, 0, stats.RepliesSynced)
	require.Len(t, h.target.appends, 1)
	assert.Equal(t, "page-x", h.target.appends[0].parentID)
}
