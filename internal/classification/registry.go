package classification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var (
	// ErrNoSnapshot is returned when no registry snapshot has been loaded yet.
	ErrNoSnapshot = errors.New("classification: no registry snapshot loaded")
)

// NotFoundError indicates that a classification code is absent from the
// registry. Callers decide whether to abort or fall back; the registry
// itself never zero-rates an unknown code.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("classification: code %q not found", e.Code)
}

// IsNotFound reports whether err wraps a missing-classification failure.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// Snapshot is an immutable set of classification entries.
type Snapshot struct {
	loadedAt time.Time
	entries  map[string]Entry
}

// NewSnapshot validates every entry and builds an immutable snapshot.
func NewSnapshot(entries []Entry, loadedAt time.Time) (*Snapshot, error) {
	byCode := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("classification: invalid entry: %w", err)
		}
		key := normalizeCode(entry.Code)
		if _, exists := byCode[key]; exists {
			return nil, fmt.Errorf("classification: duplicate entry for code %q", entry.Code)
		}
		byCode[key] = entry
	}
	return &Snapshot{loadedAt: loadedAt, entries: byCode}, nil
}

// Lookup returns the entry for a code or a NotFoundError.
func (s *Snapshot) Lookup(code string) (Entry, error) {
	if s == nil {
		return Entry{}, ErrNoSnapshot
	}
	entry, ok := s.entries[normalizeCode(code)]
	if !ok {
		return Entry{}, &NotFoundError{Code: code}
	}
	return entry, nil
}

// LoadedAt reports when the snapshot was captured.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Store holds the active snapshot; refreshes swap a new one in atomically.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// Swap installs a new snapshot as the active one.
func (st *Store) Swap(s *Snapshot) {
	st.current.Store(s)
}

// Current returns the active snapshot or ErrNoSnapshot before the first load.
func (st *Store) Current() (*Snapshot, error) {
	s := st.current.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	return s, nil
}

// Source loads classification entries from an external system.
type Source interface {
	LoadClassifications(ctx context.Context) ([]Entry, error)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
