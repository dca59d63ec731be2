// Package storage persists the feed metadata and feed cache as aggregate
// documents: one mapping of source name to value per store, always read and
// written as a whole.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/JustADataConstruct/TermRSS/internal/model"
)

var (
	// ErrStoreNotFound is returned when the backing document does not exist yet.
	ErrStoreNotFound = errors.New("store not found")
	// ErrKeyNotFound is returned when a source is absent from an existing store.
	ErrKeyNotFound = errors.New("key not found")
)

// Backend reads and writes a whole aggregate document.
type Backend interface {
	Read(ctx context.Context) (map[string]json.RawMessage, error)
	Write(ctx context.Context, doc map[string]json.RawMessage) error
}

// Aggregate is a typed view over a Backend keyed by normalized source name.
type Aggregate[T any] struct {
	backend Backend
}

// FeedStore holds feed metadata records.
type FeedStore = Aggregate[model.Feed]

// CacheStore holds the last retrieved document of every feed.
type CacheStore = Aggregate[model.Document]

// NewAggregate wraps backend.
func NewAggregate[T any](backend Backend) *Aggregate[T] {
	return &Aggregate[T]{backend: backend}
}

// Save stores v under name, creating the document if it does not exist.
func (a *Aggregate[T]) Save(ctx context.Context, name string, v T) error {
	doc, err := a.readOrEmpty(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", model.Key(name), err)
	}
	doc[model.Key(name)] = raw
	return a.write(ctx, doc)
}

// Load returns the value stored under name.
func (a *Aggregate[T]) Load(ctx context.Context, name string) (T, error) {
	var v T
	doc, err := a.read(ctx)
	if err != nil {
		return v, err
	}
	return decode[T](doc, name)
}

// Remove deletes name from the document. Missing keys are ignored.
func (a *Aggregate[T]) Remove(ctx context.Context, name string) error {
	doc, err := a.read(ctx)
	if errors.Is(err, ErrStoreNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	key := model.Key(name)
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return a.write(ctx, doc)
}

// All returns every value of the document keyed by normalized name.
func (a *Aggregate[T]) All(ctx context.Context) (map[string]T, error) {
	doc, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(doc))
	for key := range doc {
		v, err := decode[T](doc, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// Update loads name, applies fn and writes the result back. The document is
// re-read after fn returns so that concurrent changes to other keys survive;
// if name was removed in the meantime the update fails with ErrKeyNotFound.
// Nothing is written when fn returns an error.
func (a *Aggregate[T]) Update(ctx context.Context, name string, fn func(*T) error) error {
	v, err := a.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := fn(&v); err != nil {
		return err
	}

	doc, err := a.read(ctx)
	if err != nil {
		return err
	}
	key := model.Key(name)
	if _, ok := doc[key]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	doc[key] = raw
	return a.write(ctx, doc)
}

func (a *Aggregate[T]) read(ctx context.Context) (map[string]json.RawMessage, error) {
	doc, err := a.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (a *Aggregate[T]) readOrEmpty(ctx context.Context) (map[string]json.RawMessage, error) {
	doc, err := a.read(ctx)
	if errors.Is(err, ErrStoreNotFound) {
		return map[string]json.RawMessage{}, nil
	}
	return doc, err
}

func (a *Aggregate[T]) write(ctx context.Context, doc map[string]json.RawMessage) error {
	if err := a.backend.Write(ctx, doc); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

func decode[T any](doc map[string]json.RawMessage, name string) (T, error) {
	var v T
	key := model.Key(name)
	raw, ok := doc[key]
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// File names of the JSON backend, relative to the data directory.
const (
	FeedsFile = "feedinfo.json"
	CacheFile = "rsscache.json"
)

// Stores bundles the two aggregates used by the application.
type Stores struct {
	Feeds *FeedStore
	Cache *CacheStore

	closer func() error
}

// Close releases the underlying resources.
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open constructs the feed and cache stores for the given backend.
func Open(backend, dataDir, dbPath string) (*Stores, error) {
	switch backend {
	case BackendJSON, "":
		return &Stores{
			Feeds: NewAggregate[model.Feed](NewJSONFile(filepath.Join(dataDir, FeedsFile))),
			Cache: NewAggregate[model.Document](NewJSONFile(filepath.Join(dataDir, CacheFile))),
		}, nil
	case BackendSQLite:
		db, err := NewSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Feeds:  NewAggregate[model.Feed](db.Document("feeds")),
			Cache:  NewAggregate[model.Document](db.Document("cache")),
			closer: db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
