// Package gcs stores call-recording audio in a Google Cloud Storage bucket.
// Playback uses V4 signed URLs so audio never streams through the API servers.
// Authentication covers Application Default Credentials, explicit service
// account keys, and Workload Identity Federation for keyless GKE deployments.
package gcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/aroha-app/aroha-backend/internal/config"
	appstorage "github.com/aroha-app/aroha-backend/internal/storage"
)

// checksumMetaKey is the object metadata key carrying the recording's SHA-256.
const checksumMetaKey = "sha256"

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(&cfg.Storage.GCS)
	})
}

// GCSStorage is the Google Cloud Storage recording store.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// New builds a GCSStorage from config. Auth method selection:
//
//	""/default        -> Application Default Credentials
//	service_account   -> key file path or inline JSON from config
//	workload_identity -> ADC as well; federation is configured outside the app
//
// An empty auth_method with credentials present falls back to service_account
// so older config files keep working.
func New(cfg *appconfig.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		// Emulator support (fake-gcs-server) for local development.
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	method := cfg.AuthMethod
	if method == "" {
		if cfg.CredentialsFile != "" || cfg.CredentialsJSON != "" {
			method = "service_account"
		} else {
			method = "default"
		}
	}

	switch method {
	case "service_account":
		switch {
		case cfg.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		default:
			return nil, fmt.Errorf("credentials_file or credentials_json is required for service_account auth")
		}
	case "default", "workload_identity":
		// ADC picks up GOOGLE_APPLICATION_CREDENTIALS, the metadata server,
		// or a local gcloud login without further options.
	default:
		return nil, fmt.Errorf("unsupported auth_method: %s (must be 'default', 'service_account', or 'workload_identity')", method)
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{client: client, bucket: cfg.Bucket}, nil
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Upload writes a recording object with its SHA-256 stamped into metadata.
// Recordings are small enough that buffering to hash is fine.
func (s *GCSStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64) (*appstorage.UploadResult, error) {
	audio, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording data: %w", err)
	}
	sum := sha256.Sum256(audio)
	digest := hex.EncodeToString(sum[:])

	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.Metadata = map[string]string{checksumMetaKey: digest}
	if _, err := w.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write recording to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	return &appstorage.UploadResult{
		Path:     path,
		Size:     int64(len(audio)),
		Checksum: digest,
	}, nil
}

// Download streams a recording object.
func (s *GCSStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording from GCS: %w", err)
	}
	return r, nil
}

// Delete removes a recording object. Deleting an absent object is not an error.
func (s *GCSStorage) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete recording from GCS: %w", err)
	}
	return nil
}

// GetURL signs a playback URL valid for ttl. Signing requires the service
// account to hold iam.serviceAccountTokenCreator, or ADC with signBlob.
func (s *GCSStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("recording not found: %s", path)
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign recording URL: %w", err)
	}
	return url, nil
}

// Exists reports whether a recording object is present.
func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check recording existence: %w", err)
	}
	return true, nil
}

// GetMetadata returns size, mtime, and checksum for a recording. Objects
// written by other tools may lack the stamped checksum; those fall back to a
// download-and-hash.
func (s *GCSStorage) GetMetadata(ctx context.Context, path string) (*appstorage.FileMetadata, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return nil, fmt.Errorf("recording not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording metadata: %w", err)
	}

	digest := attrs.Metadata[checksumMetaKey]
	if digest == "" {
		rc, err := s.Download(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to download recording for checksum: %w", err)
		}
		defer rc.Close()

		h := sha256.New()
		if _, err := io.Copy(h, rc); err != nil {
			return nil, fmt.Errorf("failed to hash recording: %w", err)
		}
		digest = hex.EncodeToString(h.Sum(nil))
	}

	return &appstorage.FileMetadata{
		Path:         path,
		Size:         attrs.Size,
		Checksum:     digest,
		LastModified: attrs.Updated,
	}, nil
}
