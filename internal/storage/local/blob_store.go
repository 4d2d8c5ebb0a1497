// Package local implements a local filesystem blob store for reports.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{
		baseDir: cfg.BaseDir,
	}, nil
}

// PutObject writes data to a file on the local filesystem and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// GetObject opens a previously written file.
func (s *BlobStore) GetObject(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- fullPath is confined to baseDir by resolve.
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// resolve joins path onto baseDir and rejects paths that escape it.
func (s *BlobStore) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	cleanBaseDir := filepath.Clean(s.baseDir)
	fullPath := filepath.Clean(filepath.Join(s.baseDir, path))
	if !strings.HasPrefix(fullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
