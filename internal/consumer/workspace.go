package consumer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Workspace hands out per-context scratch directories under one root.
type Workspace struct {
	root string
}

func NewWorkspace(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

func (w *Workspace) Root() string { return w.root }

// Create makes a fresh directory named by a random UUID.
func (w *Workspace) Create() (string, error) {
	dir := filepath.Join(w.root, uuid.NewString())
	if err := os.Mkdir(dir, 0o750); err != nil {
		return "", fmt.Errorf("workspace create: %w", err)
	}
	return dir, nil
}

// Remove deletes dir and its contents. Only directories directly under the
// root are accepted.
func (w *Workspace) Remove(dir string) error {
	if filepath.Dir(filepath.Clean(dir)) != filepath.Clean(w.root) || strings.TrimSpace(filepath.Base(dir)) == "" {
		return fmt.Errorf("workspace remove: %s is not a workspace directory", dir)
	}
	return os.RemoveAll(dir)
}
