// Package mirror implements the synchronization pass that mirrors source
// channels into a target document tree.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/otelhelper"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/dukex/chanmirror/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFetchLimit is the number of recent messages read per channel and run.
const DefaultFetchLimit = 200

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	FetchLimit int
	Clock      func() time.Time
	Tracer     trace.Tracer
}

// Engine runs mirror passes. It holds no per-run state and may serve
// concurrent runs of different workflows.
type Engine struct {
	workflows persistence.WorkflowRepository
	bindings  persistence.ChannelBindingRepository
	mappings  persistence.MappingRepository
	sources   protocol.SourceFactory
	targets   protocol.TargetFactory

	fetchLimit int
	now        func() time.Time
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewEngine(
	store persistence.Persistence,
	sources protocol.SourceFactory,
	targets protocol.TargetFactory,
	logger *slog.Logger,
	opts Options,
) *Engine {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}

	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.NewNoopTracer()
	}

	return &Engine{
		workflows:  store.WorkflowRepository(),
		bindings:   store.ChannelBindingRepository(),
		mappings:   store.MappingRepository(),
		sources:    sources,
		targets:    targets,
		fetchLimit: opts.FetchLimit,
		now:        opts.Clock,
		tracer:     opts.Tracer,
		logger:     logger.With("module", "mirror-engine"),
	}
}

// runState accumulates the results of one run across its channels.
type runState struct {
	workflow *models.Workflow
	bindings []*models.ChannelBinding
	source   protocol.Source
	target   protocol.Target
	names    *NameResolver
	stats    *models.RunStats
}

// Run performs one mirror pass for the workflow. Unmet preconditions yield
// skipped stats; only failures to read the workflow registry are returned as errors.
func (e *Engine) Run(ctx context.Context, workflowID string) (*models.RunStats, error) {
	startedAt := e.now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "mirror.run",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", workflowID)

	run, reason, err := e.prepare(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if reason != "" {
		logger.InfoContext(ctx, "Skipping mirror run", "reason", reason)
		span.SetAttributes(attribute.String(otelhelper.SkipReasonKey, string(reason)))

		return models.NewSkippedRun(workflowID, reason, startedAt, e.now()), nil
	}

	run.stats.StartedAt = startedAt

	for _, binding := range run.bindings {
		e.syncChannel(ctx, run, binding)
	}

	finishedAt := e.now()

	err = e.workflows.TouchLastRun(ctx, workflowID, finishedAt)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to record last run", "error", err)
	}

	run.stats.Finish(finishedAt)

	logger.InfoContext(ctx, "Mirror run finished",
		"messages_synced", run.stats.MessagesSynced,
		"replies_synced", run.stats.RepliesSynced,
		"messages_updated", run.stats.MessagesUpdated,
		"deletions_marked", run.stats.DeletionsMarked,
		"channels_processed", run.stats.ChannelsProcessed,
		"channels", len(run.bindings),
		"duration", run.stats.Duration,
	)

	return run.stats, nil
}

// prepare checks the run preconditions in order and initializes the adapters.
func (e *Engine) prepare(ctx context.Context, workflowID string) (*runState, models.SkipReason, error) {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	switch {
	case workflow == nil:
		return nil, models.SkipWorkflowNotFound, nil
	case !workflow.IsMirror():
		return nil, models.SkipUnsupportedType, nil
	case !workflow.IsActive():
		return nil, models.SkipInactive, nil
	case workflow.TargetRootID == "":
		return nil, models.SkipMissingTargetRoot, nil
	}

	bindings, err := e.bindings.ListBindings(ctx, workflowID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list channel bindings of workflow %s: %w", workflowID, err)
	}

	if len(bindings) == 0 {
		return nil, models.SkipNoChannels, nil
	}

	source, err := e.sources(ctx, workflow)
	if err != nil {
		e.logger.WarnContext(ctx, "Source adapter unavailable", "workflow_id", workflowID, "error", err)

		return nil, models.SkipSourceUnavailable, nil
	}

	target, err := e.targets(ctx, workflow)
	if err != nil {
		e.logger.WarnContext(ctx, "Target adapter unavailable", "workflow_id", workflowID, "error", err)

		return nil, models.SkipTargetUnavailable, nil
	}

	return &runState{
		workflow: workflow,
		bindings: bindings,
		source:   source,
		target:   target,
		names:    NewNameResolver(source, e.logger),
		stats:    &models.RunStats{WorkflowID: workflowID},
	}, "", nil
}

// channelRun tracks what one channel's fetch revealed during the run.
type channelRun struct {
	binding   *models.ChannelBinding
	subpageID string
	logger    *slog.Logger

	// seen holds every timestamp observed in the channel and thread fetches.
	seen map[float64]struct{}
	// threads holds the roots whose full reply set is known this run.
	threads map[float64]struct{}
}

func (c *channelRun) observe(ts float64) {
	c.seen[ts] = struct{}{}
}

// threadUnread reports a root that is still listed but whose replies could
// not be fetched. Replies of a root missing from the fetch are judged like
// any other message.
func (c *channelRun) threadUnread(rootTS float64) bool {
	if _, ok := c.seen[rootTS]; !ok {
		return false
	}

	_, read := c.threads[rootTS]

	return !read
}

func (c *channelRun) minSeen() float64 {
	first := true
	low := 0.0

	for ts := range c.seen {
		if first || ts < low {
			low = ts
			first = false
		}
	}

	return low
}

func (e *Engine) syncChannel(ctx context.Context, run *runState, binding *models.ChannelBinding) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "mirror.channel",
		attribute.String(otelhelper.WorkflowIDKey, binding.WorkflowID),
		attribute.String(otelhelper.ChannelIDKey, binding.SourceChannelID),
	)
	defer span.End()

	channel := &channelRun{
		binding: binding,
		logger:  e.logger.With("workflow_id", binding.WorkflowID, "channel_id", binding.SourceChannelID),
		seen:    make(map[float64]struct{}),
		threads: make(map[float64]struct{}),
	}

	subpageID, err := e.ensureSubpage(ctx, run, binding)
	if err != nil {
		channel.logger.ErrorContext(ctx, "Failed to bootstrap channel subpage", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	channel.subpageID = subpageID

	messages, err := run.source.ListRecentMessages(ctx, binding.SourceChannelID, e.fetchLimit)
	if err != nil {
		channel.logger.ErrorContext(ctx, "Failed to fetch channel history", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	if len(messages) == 0 {
		channel.logger.DebugContext(ctx, "No messages in window")

		run.stats.ChannelsProcessed++

		return
	}

	sortByTS(messages)

	for i := range messages {
		msg := &messages[i]
		channel.observe(msg.TS)

		mapping := e.reconcile(ctx, run, channel, msg, subpageID)

		if !msg.HasThread() {
			channel.threads[msg.TS] = struct{}{}

			continue
		}

		e.syncThread(ctx, run, channel, msg, mapping)
	}

	err = e.detectDeletions(ctx, run, channel)
	if err != nil {
		channel.logger.ErrorContext(ctx, "Deletion check failed, skipping channel", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	run.stats.ChannelsProcessed++
}

// ensureSubpage returns the channel's subpage, creating and binding it on first use.
func (e *Engine) ensureSubpage(ctx context.Context, run *runState, binding *models.ChannelBinding) (string, error) {
	if binding.HasSubpage() {
		return binding.TargetSubpageID, nil
	}

	subpageID, err := run.target.CreateSubpage(ctx, run.workflow.TargetRootID, subpageTitle(binding))
	if err != nil {
		return "", fmt.Errorf("failed to create subpage: %w", err)
	}

	if subpageID == "" {
		return "", fmt.Errorf("target returned an empty subpage id")
	}

	stored, err := e.bindings.BindChannel(ctx, &models.ChannelBinding{
		WorkflowID:        binding.WorkflowID,
		SourceChannelID:   binding.SourceChannelID,
		SourceChannelName: binding.SourceChannelName,
		TargetSubpageID:   subpageID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist subpage %s: %w", subpageID, err)
	}

	return stored.TargetSubpageID, nil
}

func subpageTitle(binding *models.ChannelBinding) string {
	if binding.SourceChannelName != "" {
		return "#" + binding.SourceChannelName
	}

	return binding.SourceChannelID
}

func sortByTS(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].TS < messages[j].TS
	})
}
