package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/chanmirror/pkg/eventbus"
	"github.com/dukex/chanmirror/pkg/events"
	"github.com/dukex/chanmirror/pkg/lock"
	"github.com/dukex/chanmirror/pkg/metrics"
	"github.com/dukex/chanmirror/pkg/models"
)

// Runner performs one mirror pass. *mirror.Engine implements it.
type Runner interface {
	Run(ctx context.Context, workflowID string) (*models.RunStats, error)
}

type WorkerManager struct {
	id       string
	logger   *slog.Logger
	runner   Runner
	locker   lock.Locker
	recorder *metrics.Recorder
	eventBus eventbus.EventBus
	lockTTL  time.Duration
}

func NewWorkerManager(
	id string,
	runner Runner,
	locker lock.Locker,
	recorder *metrics.Recorder,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "chanmirror-worker", "worker_id", id),
		runner:   runner,
		locker:   locker,
		recorder: recorder,
		eventBus: eventBus,
		lockTTL:  lock.DefaultTTL,
	}
}

// Listen registers the run request handler and starts consuming.
func (w *WorkerManager) Listen(ctx context.Context) error {
	err := w.eventBus.Handle(events.MirrorRunRequestedEvent, w.handleRunRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	return nil
}

// Start listens until the process is signalled or ctx ends.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.Listen(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleRunRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.MirrorRunRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for MirrorRunRequested")

		return nil
	}

	logger := w.logger.With(
		"workflow_id", requested.WorkflowID,
		"event_id", requested.ID,
		"requested_by", requested.RequestedBy,
	)
	logger.InfoContext(ctx, "Processing mirror run request")

	held, err := w.locker.TryLock(ctx, lock.RunKey(requested.WorkflowID), w.lockTTL)
	if errors.Is(err, lock.ErrLocked) {
		logger.InfoContext(ctx, "Workflow is already running elsewhere")

		now := time.Now().UTC()
		stats := models.NewSkippedRun(requested.WorkflowID, models.SkipAlreadyRunning, now, now)
		w.recorder.ObserveRun(stats)

		return w.publish(ctx, requested.WorkflowID, events.MirrorRunSkipped{
			BaseEvent: w.baseEvent(events.MirrorRunSkippedEvent, requested.WorkflowID),
			Reason:    stats.Reason,
			Stats:     stats,
		})
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire run lock", "error", err)

		return err
	}

	defer func() {
		// Release even when the run was cancelled.
		releaseErr := held.Release(context.WithoutCancel(ctx))
		if releaseErr != nil {
			logger.ErrorContext(ctx, "Failed to release run lock", "error", releaseErr)
		}
	}()

	startedAt := time.Now()

	stats, err := w.runner.Run(ctx, requested.WorkflowID)
	if err != nil {
		logger.ErrorContext(ctx, "Mirror run failed", "error", err)
		w.recorder.ObserveFailure(requested.WorkflowID)

		return w.publish(ctx, requested.WorkflowID, events.MirrorRunFailed{
			BaseEvent: w.baseEvent(events.MirrorRunFailedEvent, requested.WorkflowID),
			Error:     err.Error(),
			Duration:  time.Since(startedAt),
		})
	}

	w.recorder.ObserveRun(stats)

	if stats.Skipped {
		return w.publish(ctx, requested.WorkflowID, events.MirrorRunSkipped{
			BaseEvent: w.baseEvent(events.MirrorRunSkippedEvent, requested.WorkflowID),
			Reason:    stats.Reason,
			Stats:     stats,
		})
	}

	return w.publish(ctx, requested.WorkflowID, events.MirrorRunCompleted{
		BaseEvent: w.baseEvent(events.MirrorRunCompletedEvent, requested.WorkflowID),
		Stats:     stats,
	})
}

func (w *WorkerManager) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(w.eventBus.GenerateID(), eventType, workflowID)
	base.WorkerID = w.id

	return base
}

func (w *WorkerManager) publish(ctx context.Context, workflowID string, event eventbus.Event) error {
	err := w.eventBus.Publish(ctx, workflowID, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish run result", "error", err, "event_type", event.GetType())

		return err
	}

	return nil
}
