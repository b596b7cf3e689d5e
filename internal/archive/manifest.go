package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Storage is the subset of object store operations used by manifest helpers.
// *s3.Client implements this interface.
type Storage interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64) error
}

type ManifestEntry struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Manifest describes one uploaded archive. Entries are listed in archive
// order, which is fetch completion order.
type Manifest struct {
	Key       string          `json:"key"`
	Prefix    string          `json:"prefix"`
	Year      string          `json:"year"`
	Size      int64           `json:"size"`
	Digest    string          `json:"digest"`
	CreatedAt time.Time       `json:"createdAt"`
	Entries   []ManifestEntry `json:"entries"`
}

func WriteManifest(ctx context.Context, store Storage, key string, m Manifest) error {
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest marshal: %w", err)
	}
	return store.PutObject(ctx, key, bytes.NewReader(body), int64(len(body)))
}

func ReadManifest(ctx context.Context, store Storage, key string) (*Manifest, error) {
	rc, err := store.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}
	return &m, nil
}
