// Package checkpoint persists the producer's resume marker in a local pebble
// database.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// Marker is the last key whose context was fully published for a listing
// prefix.
type Marker struct {
	Prefix    string    `json:"prefix"`
	LastKey   string    `json:"lastKey"`
	Contexts  int       `json:"contexts"`
	UpdatedAt time.Time `json:"updatedAt"`
	Complete  bool      `json:"complete"`
}

type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("checkpoint open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func markerKey(prefix string) []byte {
	return []byte("marker:" + prefix)
}

// Get returns the marker for prefix; ok is false when none was recorded.
func (s *Store) Get(prefix string) (m Marker, ok bool, err error) {
	v, closer, err := s.db.Get(markerKey(prefix))
	if errors.Is(err, pebble.ErrNotFound) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return Marker{}, false, fmt.Errorf("checkpoint decode: %w", err)
	}
	return m, true, nil
}

func (s *Store) Set(m Marker) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Set(markerKey(m.Prefix), b, pebble.Sync)
}

func (s *Store) Delete(prefix string) error {
	return s.db.Delete(markerKey(prefix), pebble.Sync)
}

// List returns every recorded marker in key order.
func (s *Store) List() ([]Marker, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("marker:"),
		UpperBound: []byte("marker;"),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []Marker
	for ok := it.First(); ok; ok = it.Next() {
		var m Marker
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, fmt.Errorf("checkpoint decode %s: %w", it.Key(), err)
		}
		out = append(out, m)
	}
	return out, it.Error()
}
