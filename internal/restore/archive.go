// Package restore reads an uploaded archive back out of the target bucket.
package restore

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

var ErrDigestMismatch = errors.New("archive digest mismatch")

// Storage is satisfied by *s3.Client.
type Storage interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

type Options struct {
	// ListOnly reads entry headers without writing files.
	ListOnly bool
	// Only restricts extraction to these entry names when non-empty.
	Only []string
	// ExpectDigest is a "blake3:<hex>" value from the archive manifest.
	ExpectDigest string
}

type Entry struct {
	Name string
	Size int64
}

type Result struct {
	Entries []Entry
	Digest  string
	Bytes   int64
}

// Restore streams key from store, extracting entries into targetDir. The
// compressed stream is hashed as it is read; with ExpectDigest set, a
// mismatch is reported after the last entry.
func Restore(ctx context.Context, store Storage, key, targetDir string, opts Options) (*Result, error) {
	rc, err := store.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get archive %s: %w", key, err)
	}
	defer rc.Close()

	h := blake3.New()
	cr := &countingReader{r: io.TeeReader(rc, h)}
	gr, err := gzip.NewReader(cr)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	defer gr.Close()
	tr := tar.NewReader(gr)

	only := map[string]bool{}
	for _, n := range opts.Only {
		only[n] = true
	}

	res := &Result{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read tar %s: %w", key, err)
		}
		name := cleanTarName(hdr.Name)
		if name == "" {
			continue
		}
		if len(only) > 0 && !only[name] {
			continue
		}
		res.Entries = append(res.Entries, Entry{Name: name, Size: hdr.Size})
		if opts.ListOnly {
			continue
		}
		if err := writeEntry(tr, hdr, filepath.Join(targetDir, filepath.FromSlash(name))); err != nil {
			return res, fmt.Errorf("extract %s: %w", name, err)
		}
	}

	// drain the gzip trailer and tar padding so the digest covers the whole object
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return res, fmt.Errorf("read %s: %w", key, err)
	}
	res.Digest = "blake3:" + hex.EncodeToString(h.Sum(nil))
	res.Bytes = cr.n
	if opts.ExpectDigest != "" && opts.ExpectDigest != res.Digest {
		return res, fmt.Errorf("%w: got %s, manifest has %s", ErrDigestMismatch, res.Digest, opts.ExpectDigest)
	}
	return res, nil
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, dst string) error {
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(dst, 0o755)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		if !hdr.ModTime.IsZero() {
			_ = os.Chtimes(dst, hdr.ModTime, hdr.ModTime)
		}
		return nil
	default:
		return nil
	}
}

func cleanTarName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = path.Clean(name)
	name = strings.TrimLeft(name, "/")
	if name == "" || name == "." || strings.HasPrefix(name, "..") {
		return ""
	}
	return name
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
