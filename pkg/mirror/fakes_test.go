package mirror_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dukex/chanmirror/pkg/models"
)

var errUnavailable = errors.New("unavailable")

// fakeSource serves canned channel histories and threads.
type fakeSource struct {
	mu         sync.Mutex
	history    map[string][]models.Message
	threads    map[float64][]models.Message
	names      map[string]string
	failFetch  map[string]bool
	failThread map[float64]bool
	nameCalls  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		history:    make(map[string][]models.Message),
		threads:    make(map[float64][]models.Message),
		names:      map[string]string{"U1": "Ada", "U2": "Linus"},
		failFetch:  make(map[string]bool),
		failThread: make(map[float64]bool),
	}
}

func (s *fakeSource) ListRecentMessages(_ context.Context, channelID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFetch[channelID] {
		return nil, errUnavailable
	}

	messages := append([]models.Message(nil), s.history[channelID]...)
	if len(messages) > limit {
		messages = messages[:limit]
	}

	return messages, nil
}

func (s *fakeSource) ListThread(_ context.Context, _ string, rootTS float64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failThread[rootTS] {
		return nil, errUnavailable
	}

	return append([]models.Message(nil), s.threads[rootTS]...), nil
}

func (s *fakeSource) ResolveActorName(_ context.Context, actorID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nameCalls++

	name, ok := s.names[actorID]
	if !ok {
		return "", errUnavailable
	}

	return name, nil
}

type appendCall struct {
	parentID string
	items    []string
}

// fakeTarget records every write and hands out sequential ids.
type fakeTarget struct {
	mu          sync.Mutex
	subpages    []string
	appends     []appendCall
	updates     map[string][]string
	blocks      int
	pages       int
	failCreate  map[string]bool
	failAppend  func(text string) bool
	failUpdates bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		updates:    make(map[string][]string),
		failCreate: make(map[string]bool),
	}
}

func (t *fakeTarget) CreateSubpage(_ context.Context, _ string, title string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failCreate[title] {
		return "", errUnavailable
	}

	t.pages++
	t.subpages = append(t.subpages, title)

	return fmt.Sprintf("page-%d", t.pages), nil
}

func (t *fakeTarget) AppendItems(_ context.Context, parentID string, items []string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, item := range items {
		if t.failAppend != nil && t.failAppend(item) {
			return nil, errUnavailable
		}
	}

	t.appends = append(t.appends, appendCall{parentID: parentID, items: items})

	ids := make([]string, 0, len(items))
	for range items {
		t.blocks++
		ids = append(ids, fmt.Sprintf("block-%d", t.blocks))
	}

	return ids, nil
}

func (t *fakeTarget) UpdateItem(_ context.Context, blockID, text string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failUpdates {
		return false, errUnavailable
	}

	t.updates[blockID] = append(t.updates[blockID], text)

	return true, nil
}

func (t *fakeTarget) appendsUnder(parentID string) []appendCall {
	t.mu.Lock()
	defer t.mu.Unlock()

	var calls []appendCall

	for _, call := range t.appends {
		if call.parentID == parentID {
			calls = append(calls, call)
		}
	}

	return calls
}
