// Package local keeps call-recording audio on the server's filesystem. It is
// meant for development and single-node deployments; multiple API instances
// would need a shared mount to see the same recordings. Production runs use
// one of the cloud backends.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/storage"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL)
	})
}

// LocalStorage is the filesystem recording store.
type LocalStorage struct {
	basePath      string
	serveDirectly bool
	baseURL       string
}

// New creates the base directory if needed and returns the store.
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return &LocalStorage{
		basePath:      cfg.BasePath,
		serveDirectly: cfg.ServeDirectly,
		baseURL:       serverBaseURL,
	}, nil
}

// resolve maps a storage key to an absolute path under basePath. Keys that
// would escape the base directory are rejected; storage keys come from our own
// code, so a traversal attempt here means a bug upstream.
func (s *LocalStorage) resolve(path string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(s.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid recording path: %s", path)
	}
	return full, nil
}

// Upload writes a recording file, hashing while writing. A failed write
// removes the partial file.
func (s *LocalStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64) (*storage.UploadResult, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(f, h), reader)
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("failed to write recording: %w", err)
	}

	return &storage.UploadResult{
		Path:     path,
		Size:     written,
		Checksum: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Download opens a recording file for reading.
func (s *LocalStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("recording not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return f, nil
}

// Delete removes a recording and prunes any directories it leaves empty.
// Deleting a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	for dir := filepath.Dir(full); dir != s.basePath; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// GetURL returns a playback URL. With ServeDirectly the API serves the bytes
// itself under /v1/files; otherwise a file:// URL for local tooling.
func (s *LocalStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("recording not found: %s", path)
	}

	if s.serveDirectly {
		return fmt.Sprintf("%s/v1/files/%s", s.baseURL, path), nil
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	return "file://" + full, nil
}

// Exists reports whether a recording file is present.
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat recording: %w", err)
	}
	return true, nil
}

// GetMetadata stats the file and hashes it for the checksum. Local recordings
// are small, so hashing on demand beats maintaining a sidecar metadata file.
func (s *LocalStorage) GetMetadata(ctx context.Context, path string) (*storage.FileMetadata, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("recording not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat recording: %w", err)
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash recording: %w", err)
	}

	return &storage.FileMetadata{
		Path:         path,
		Size:         stat.Size(),
		Checksum:     hex.EncodeToString(h.Sum(nil)),
		LastModified: stat.ModTime(),
	}, nil
}
