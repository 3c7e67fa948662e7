// Package regression persists run codes of failed properties so later runs
// replay them before any random trial.
//
// Entries are keyed by a fingerprint of the property name rather than the
// name itself, which keeps index keys short and fixed-width on every
// backend. The name is stored alongside for listing.
package regression

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/shipq/dicetest/dicetest"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("regression store is closed")

// Entry is one stored regression.
type Entry struct {
	ID          uuid.UUID
	Property    string
	Fingerprint string
	Code        dicetest.RunCode
	Detail      string
	CreatedAt   time.Time
}

// Store persists regressions. Implementations are safe for concurrent use.
type Store interface {
	// Load returns the codes stored for property, oldest first.
	Load(ctx context.Context, property string) ([]dicetest.RunCode, error)

	// Save records code for property. Saving a code that is already
	// stored for the property is a no-op.
	Save(ctx context.Context, property string, code dicetest.RunCode, detail string) error

	// Delete removes every entry for property and returns how many there
	// were.
	Delete(ctx context.Context, property string) (int, error)

	// List returns all entries ordered by property, then age.
	List(ctx context.Context) ([]Entry, error)

	Close() error
}

// Fingerprint returns the key entries of property are stored under: the
// first 16 bytes of its BLAKE2b-256 digest, hex encoded.
func Fingerprint(property string) string {
	sum := blake2b.Sum256([]byte(property))
	return hex.EncodeToString(sum[:16])
}

// Open opens the store a URL names (see package dburl). The empty URL
// opens a MemoryStore.
func Open(ctx context.Context, rawURL string) (Store, error) {
	if rawURL == "" {
		return NewMemoryStore(), nil
	}
	s, err := OpenSQL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}
