// Package history keeps a bounded, most-recently-used list of past summaries.
//
// The list is persisted as a JSON array under a versioned key in an injected
// storage.KV. Entries are unique by URL and ordered newest-first.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jonathan/tubedigest/internal/schemas"
	"github.com/jonathan/tubedigest/internal/storage"
)

// MaxItems caps the history length.
const MaxItems = 20

// StorageKey is the versioned key the history record is stored under.
const StorageKey = "tubeDigestHistory_v2"

// ErrHistoryReset is returned by Load when the persisted record was unreadable and has been cleared.
// The returned list is empty and the store remains usable.
var ErrHistoryReset = errors.New("could not load previous history; it has been reset")

// Item is one persisted summary, keyed by URL.
type Item struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Timestamp int64  `json:"timestamp"`
}

// KeyFor returns the storage key for a session. An empty session uses StorageKey.
func KeyFor(session string) string {
	if session == "" {
		return StorageKey
	}
	return StorageKey + ":" + session
}

// Store is the history for one key. Safe for concurrent use.
type Store struct {
	kv  storage.KV
	key string

	mu    sync.Mutex
	items []Item
	// loaded is false until a Load reads (or resets) the record. Upsert reloads
	// first while it is false, so a failed read never overwrites stored history.
	loaded bool
}

// NewStore creates a store bound to key. Call Load before use to read persisted state.
func NewStore(kv storage.KV, key string) *Store {
	if key == "" {
		key = StorageKey
	}
	return &Store{kv: kv, key: key, items: []Item{}}
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted list into memory.
//
// A missing record yields an empty list. A corrupt record is deleted and Load
// returns an empty list with ErrHistoryReset. A backend read failure yields an
// empty list and the *storage.StorageError.
func (s *Store) Load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) ([]Item, error) {
	s.items = []Item{}
	s.loaded = false

	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return []Item{}, asStorageError(storage.OpGet, s.key, err)
	}
	s.loaded = true
	if !ok || raw == "" {
		return []Item{}, nil
	}

	items, decodeErr := decode([]byte(raw))
	if decodeErr != nil {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			return []Item{}, errors.Join(ErrHistoryReset, asStorageError(storage.OpDelete, s.key, err))
		}
		return []Item{}, ErrHistoryReset
	}

	s.items = items
	return clone(s.items), nil
}


// Upsert removes any entry with the same URL, prepends item, truncates to MaxItems
// and persists. On persist failure the in-memory list is left unchanged.
// If the record has not been read yet it is loaded first; when that read
// fails nothing is written.
func (s *Store) Upsert(ctx context.Context, item Item) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if _, err := s.loadLocked(ctx); err != nil && !errors.Is(err, ErrHistoryReset) {
			return clone(s.items), err
		}
	}

	next := make([]Item, 0, len(s.items)+1)
	next = append(next, item)
	for _, existing := range s.items {
		if existing.URL != item.URL {
			next = append(next, existing)
		}
	}
	if len(next) > MaxItems {
		next = next[:MaxItems]
	}

	if err := s.persist(ctx, next); err != nil {
		return clone(s.items), err
	}
	s.items = next
	return clone(s.items), nil
}

// Clear empties the list and persists an empty record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, []Item{}); err != nil {
		return err
	}
	s.items = []Item{}
	s.loaded = true
	return nil
}

// Items returns a copy of the in-memory list, newest first.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// Find returns the entry for url.
func (s *Store) Find(url string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.URL == url {
			return it, true
		}
	}
	return Item{}, false
}

func (s *Store) persist(ctx context.Context, items []Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return asStorageError(storage.OpSet, s.key, err)
	}
	return nil
}

func decode(data []byte) ([]Item, error) {
	if err := schemas.Validate(schemas.History, data); err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	// Keep the newest entry per URL if an older writer left duplicates.
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if seen[it.URL] {
			continue
		}
		seen[it.URL] = true
		out = append(out, it)
	}
	return out, nil
}

func asStorageError(op, key string, err error) error {
	if storage.IsStorageError(err) {
		return err
	}
	return &storage.StorageError{Op: op, Key: key, Cause: err}
}

func clone(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
