package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath   = errors.New("path must not be empty")
	ErrAbsolute    = errors.New("absolute paths are not allowed")
	ErrPathEscapes = errors.New("path escapes root")
)

// SafeFS constrains report and template access to the working directory.
type SafeFS struct {
	root string
}

func NewSafeFS(root string) (*SafeFS, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("invalid root: %w", ErrEmptyPath)
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, err
	}

	return &SafeFS{root: abs}, nil
}

func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

func (s *SafeFS) Resolve(path string) (string, error) {
	if s == nil {
		return "", errors.New("safe filesystem is nil")
	}

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(trimmed) {
		return "", ErrAbsolute
	}

	cleaned := filepath.Clean(trimmed)
	if cleaned == "." {
		return s.root, nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrPathEscapes
	}

	target := filepath.Join(s.root, cleaned)
	rel, err := filepath.Rel(s.root, target)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathEscapes
	}

	return target, nil
}

// WriteAtomic streams write's output into a temp file next to path and renames it
// into place only when write succeeds. A failed render leaves any previous file intact.
func (s *SafeFS) WriteAtomic(path string, perm os.FileMode, write func(io.Writer) error) error {
	resolved, err := s.Resolve(path)
	if err != nil {
		return err
	}
	if write == nil {
		return errors.New("write function is nil")
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	temp, err := os.CreateTemp(dir, "."+filepath.Base(resolved)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(temp.Name()) }()

	if err := write(temp); err != nil {
		_ = temp.Close()
		return err
	}
	if err := temp.Chmod(perm); err != nil {
		_ = temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return err
	}

	return os.Rename(temp.Name(), resolved)
}

func (s *SafeFS) ReadFile(path string) ([]byte, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(resolved)
}
