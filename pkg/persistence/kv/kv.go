// Package kv provides an embedded persistence implementation on top of Pebble.
//
// Keys are ordered so that the mappings of one channel form a contiguous
// range sorted by source timestamp:
//
//	wf\x00<workflow>                      workflow JSON
//	bind\x00<workflow>\x00<channel>       binding JSON
//	map\x00<workflow>\x00<channel>\x00<ts> mapping JSON
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/dukex/chanmirror/pkg/persistence"
)

const sep = "\x00"

// Persistence implements persistence.Persistence on a Pebble database.
type Persistence struct {
	db     *pebble.DB
	logger *slog.Logger

	// mu serializes read-modify-write cycles across repositories.
	mu sync.Mutex

	workflows *WorkflowRepository
	bindings  *ChannelBindingRepository
	mappings  *MappingRepository
}

// NewPersistence opens (or creates) the Pebble database at path. The
// pebble:// scheme prefix is accepted.
func NewPersistence(logger *slog.Logger, path string) (*Persistence, error) {
	cleanPath := strings.TrimPrefix(path, "pebble://")

	db, err := pebble.Open(cleanPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database at %s: %w", cleanPath, err)
	}

	p := &Persistence{db: db, logger: logger}
	p.workflows = &WorkflowRepository{store: p}
	p.bindings = &ChannelBindingRepository{store: p}
	p.mappings = &MappingRepository{store: p}

	logger.Info("Opened pebble store", "path", cleanPath)

	return p, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ChannelBindingRepository() persistence.ChannelBindingRepository {
	return p.bindings
}

func (p *Persistence) MappingRepository() persistence.MappingRepository {
	return p.mappings
}

// HealthCheck reads a key to verify the database answers.
func (p *Persistence) HealthCheck(_ context.Context) error {
	_, closer, err := p.db.Get([]byte("health"))
	if closer != nil {
		_ = closer.Close()
	}

	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("pebble health check failed: %w", err)
	}

	return nil
}

// Close flushes and closes the database.
func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close pebble database: %w", err)
	}

	return nil
}

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, sep))
}

// prefixBounds returns the iterator bounds covering every key under prefix.
func prefixBounds(parts ...string) *pebble.IterOptions {
	lower := append(key(parts...), sep...)
	upper := append(key(parts...), sep[0]+1)

	return &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
}

// getJSON decodes the value under k into out. It reports false when the key is absent.
func (p *Persistence) getJSON(k []byte, out any) (bool, error) {
	value, closer, err := p.db.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %q: %w", k, err)
	}

	defer func() {
		_ = closer.Close()
	}()

	err = json.Unmarshal(value, out)
	if err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", k, err)
	}

	return true, nil
}

func (p *Persistence) setJSON(k []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", k, err)
	}

	err = p.db.Set(k, data, pebble.Sync)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", k, err)
	}

	return nil
}

// scan calls fn with every value in opts' range, in key order.
func (p *Persistence) scan(opts *pebble.IterOptions, fn func(value []byte) error) error {
	iter, err := p.db.NewIter(opts)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}

	defer func() {
		_ = iter.Close()
	}()

	for iter.First(); iter.Valid(); iter.Next() {
		err := fn(append([]byte(nil), iter.Value()...))
		if err != nil {
			return err
		}
	}

	return iter.Error()
}
