package archive

import (
	"archive/tar"
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

var (
	ErrFinalized    = errors.New("archive already finalized")
	ErrSizeMismatch = errors.New("entry size mismatch")
)

// Builder streams entries into a gzip-compressed tar file. It is not safe for
// concurrent use; one orchestrating goroutine owns it.
type Builder struct {
	path    string
	file    *os.File
	buf     *bufio.Writer
	gz      *gzip.Writer
	tw      *tar.Writer
	hash    *blake3.Hasher
	written int64
	entries int
	done    bool
	err     error
}

// Open creates directory/name, truncating any previous file.
func Open(directory, name string) (*Builder, error) {
	p := filepath.Join(directory, name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("archive create: %w", err)
	}
	b := &Builder{path: p, file: f, hash: blake3.New()}
	b.buf = bufio.NewWriterSize(io.MultiWriter(f, b.hash, counter{&b.written}), 256*1024)
	b.gz = gzip.NewWriter(b.buf)
	b.tw = tar.NewWriter(b.gz)
	return b, nil
}

// AppendEntry copies exactly size bytes from r into a new entry and closes r.
// A stream that is shorter or longer than size leaves the archive unusable and
// every later call returns the same error.
func (b *Builder) AppendEntry(r io.ReadCloser, name string, size int64) error {
	defer r.Close()
	if b.done {
		return ErrFinalized
	}
	if b.err != nil {
		return b.err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     size,
		Mode:     0o644,
		ModTime:  time.Now().UTC(),
		Format:   tar.FormatPAX,
	}
	if err := b.tw.WriteHeader(hdr); err != nil {
		b.err = fmt.Errorf("archive header %s: %w", name, err)
		return b.err
	}
	n, err := io.CopyN(b.tw, r, size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			b.err = fmt.Errorf("%w: %s: got %d bytes, want %d", ErrSizeMismatch, name, n, size)
		} else {
			b.err = fmt.Errorf("archive write %s: %w", name, err)
		}
		return b.err
	}
	var extra [1]byte
	m, err := io.ReadFull(r, extra[:])
	if m > 0 {
		b.err = fmt.Errorf("%w: %s: stream longer than %d bytes", ErrSizeMismatch, name, size)
		return b.err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		b.err = fmt.Errorf("archive read %s: %w", name, err)
		return b.err
	}
	b.entries++
	return nil
}

// Finalize flushes and closes the container. Calling it twice returns
// ErrFinalized.
func (b *Builder) Finalize() error {
	if b.done {
		return ErrFinalized
	}
	b.done = true
	if b.err != nil {
		_ = b.file.Close()
		return b.err
	}
	if err := b.tw.Close(); err != nil {
		_ = b.file.Close()
		return fmt.Errorf("archive tar close: %w", err)
	}
	if err := b.gz.Close(); err != nil {
		_ = b.file.Close()
		return fmt.Errorf("archive gzip close: %w", err)
	}
	if err := b.buf.Flush(); err != nil {
		_ = b.file.Close()
		return fmt.Errorf("archive flush: %w", err)
	}
	if err := b.file.Sync(); err != nil {
		_ = b.file.Close()
		return fmt.Errorf("archive sync: %w", err)
	}
	return b.file.Close()
}

// Abort closes the file without finishing the container and removes it.
func (b *Builder) Abort() error {
	if !b.done {
		b.done = true
		_ = b.file.Close()
	}
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *Builder) Path() string { return b.path }

func (b *Builder) Entries() int { return b.entries }

// Size is the number of compressed bytes written so far.
func (b *Builder) Size() int64 { return b.written }

// Digest is the hex blake3 sum of the compressed file, valid after Finalize.
func (b *Builder) Digest() string {
	return hex.EncodeToString(b.hash.Sum(nil))
}

type counter struct{ n *int64 }

func (c counter) Write(p []byte) (int, error) {
	*c.n += int64(len(p))
	return len(p), nil
}
