// Package scheduler publishes run requests for workflows whose cron schedule is due.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukex/chanmirror/pkg/eventbus"
	"github.com/dukex/chanmirror/pkg/events"
	"github.com/dukex/chanmirror/pkg/persistence"
)

// RequestedBy tags run requests published by the scheduler.
const RequestedBy = "scheduler"

// DefaultInterval is how often due workflows are polled.
const DefaultInterval = time.Minute

var ErrAlreadyStarted = errors.New("scheduler already started")

type Options struct {
	Interval time.Duration
	Clock    func() time.Time
}

// Scheduler is a central poller: every tick it evaluates all workflow
// schedules instead of registering one cron entry per workflow.
type Scheduler struct {
	store     persistence.Persistence
	publisher eventbus.EventBus
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	cron      *cron.Cron
	requested map[string]request
}

// request is the activation last published for a workflow. It is published
// again once retryAt passes without the run being recorded.
type request struct {
	due     time.Time
	retryAt time.Time
}

func New(store persistence.Persistence, publisher eventbus.EventBus, logger *slog.Logger, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Scheduler{
		store:     store,
		publisher: publisher,
		logger:    logger.With("module", "scheduler"),
		interval:  opts.Interval,
		now:       opts.Clock,
		requested: make(map[string]request),
	}
}

// Start begins polling in the background until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New()

	_, err := c.AddFunc("@every "+s.interval.String(), func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("Failed to process due workflows", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron = c
	c.Start()

	s.logger.Info("Scheduler started", "interval", s.interval)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts polling and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()

	s.logger.Info("Scheduler stopped")
}

// Tick publishes one run request per due workflow and returns how many were
// published. A workflow stays due until a worker records its run, so the
// activation already requested is remembered and not published twice before
// the schedule's following activation. Runs that fail or are skipped never
// record a run and are requested again from then on.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now().UTC()

	workflows, err := s.store.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	seen := make(map[string]bool, len(workflows))

	for _, workflow := range workflows {
		seen[workflow.ID] = true

		if !workflow.IsDue(now) {
			continue
		}

		next, _, err := workflow.NextRunAt()
		if err != nil {
			continue
		}

		if s.alreadyRequested(workflow.ID, next, now) {
			continue
		}

		retryAt, _, err := workflow.ActivationAfter(now)
		if err != nil {
			continue
		}

		id := s.publisher.GenerateID()

		err = s.publisher.Publish(ctx, workflow.ID, events.MirrorRunRequested{
			BaseEvent:   events.NewBaseEvent(id, events.MirrorRunRequestedEvent, workflow.ID),
			RequestedBy: RequestedBy,
		})
		if err != nil {
			s.logger.Error("Failed to publish run request",
				"workflow_id", workflow.ID,
				"error", err)

			continue
		}

		s.markRequested(workflow.ID, request{due: next, retryAt: retryAt})
		published++

		s.logger.Info("Run requested",
			"workflow_id", workflow.ID,
			"schedule", workflow.Schedule,
			"due_at", next)
	}

	s.forget(seen)

	return published, nil
}

func (s *Scheduler) alreadyRequested(workflowID string, next, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.requested[workflowID]

	return ok && last.due.Equal(next) && now.Before(last.retryAt)
}

func (s *Scheduler) markRequested(workflowID string, req request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requested[workflowID] = req
}

func (s *Scheduler) forget(seen map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.requested {
		if !seen[id] {
			delete(s.requested, id)
		}
	}
}
