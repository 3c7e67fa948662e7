package regression

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shipq/dicetest/dicetest"
)

// MemoryStore keeps regressions in process memory. It backs runs with no
// configured store, and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, property string) ([]dicetest.RunCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	fp := Fingerprint(property)
	var codes []dicetest.RunCode
	for _, e := range m.entries {
		if e.Fingerprint == fp {
			codes = append(codes, e.Code)
		}
	}
	return codes, nil
}

func (m *MemoryStore) Save(_ context.Context, property string, code dicetest.RunCode, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	fp := Fingerprint(property)
	for _, e := range m.entries {
		if e.Fingerprint == fp && e.Code.Equal(code) {
			return nil
		}
	}
	m.entries = append(m.entries, Entry{
		ID:          uuid.New(),
		Property:    property,
		Fingerprint: fp,
		Code:        code,
		Detail:      detail,
		CreatedAt:   m.now().UTC(),
	})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, property string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	fp := Fingerprint(property)
	before := len(m.entries)
	m.entries = slices.DeleteFunc(m.entries, func(e Entry) bool {
		return e.Fingerprint == fp
	})
	return before - len(m.entries), nil
}

func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := slices.Clone(m.entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Property, b.Property)
	})
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
