// Package s3 stores call-recording audio in an S3-compatible bucket. It works
// against AWS S3 as well as MinIO and DigitalOcean Spaces through a custom
// endpoint. Recording playback goes through short-lived pre-signed URLs so
// audio bytes never transit the API servers. Credentials come from the default
// AWS chain, static keys, a web-identity token, or an assumed role.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	appconfig "github.com/aroha-app/aroha-backend/internal/config"
	"github.com/aroha-app/aroha-backend/internal/storage"
)

// checksumMetaKey is the object metadata key holding the SHA-256 of the audio,
// written at upload time so GetMetadata does not have to re-download.
const checksumMetaKey = "sha256"

func init() {
	storage.Register("s3", func(cfg *appconfig.Config) (storage.Storage, error) {
		return New(&cfg.Storage.S3)
	})
}

// S3Storage is the S3-compatible recording store.
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	region        string
}

// New builds an S3Storage from config. Auth method selection:
//
//	""/default  -> AWS default credential chain (env, shared config, IMDS)
//	static      -> explicit access key + secret
//	oidc        -> STS web identity (EKS pod identity, CI tokens)
//	assume_role -> STS AssumeRole, optionally with an external ID
//
// An empty auth_method with static keys present falls back to static, which
// keeps older config files working.
func New(cfg *appconfig.S3StorageConfig) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}

	method := cfg.AuthMethod
	if method == "" {
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			method = "static"
		} else {
			method = "default"
		}
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch method {
	case "static":
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("access_key_id and secret_access_key are required for static auth")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	case "default", "oidc", "assume_role":
		// oidc and assume_role need the base config loaded first; handled below.
	default:
		return nil, fmt.Errorf("unsupported auth_method: %s (must be 'default', 'static', 'oidc', or 'assume_role')", method)
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if method == "oidc" || method == "assume_role" {
		if cfg.RoleARN == "" {
			return nil, fmt.Errorf("role_arn is required for %s auth", method)
		}
		provider, err := stsCredentials(sts.NewFromConfig(awsCfg), method, cfg)
		if err != nil {
			return nil, err
		}
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO and Spaces expect path-style addressing.
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		region:        cfg.Region,
	}, nil
}

// stsCredentials builds the lazy credential provider for the role-based auth
// methods. AssumeRole needs no token file; web identity requires one.
func stsCredentials(stsClient *sts.Client, method string, cfg *appconfig.S3StorageConfig) (aws.CredentialsProvider, error) {
	if method == "assume_role" {
		var opts []func(*stscreds.AssumeRoleOptions)
		if cfg.RoleSessionName != "" {
			opts = append(opts, func(o *stscreds.AssumeRoleOptions) { o.RoleSessionName = cfg.RoleSessionName })
		}
		if cfg.ExternalID != "" {
			opts = append(opts, func(o *stscreds.AssumeRoleOptions) { o.ExternalID = aws.String(cfg.ExternalID) })
		}
		return stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, opts...), nil
	}

	if cfg.WebIdentityTokenFile == "" {
		return nil, fmt.Errorf("web_identity_token_file is required for OIDC auth (or set AWS_WEB_IDENTITY_TOKEN_FILE)")
	}
	var opts []func(*stscreds.WebIdentityRoleOptions)
	if cfg.RoleSessionName != "" {
		opts = append(opts, func(o *stscreds.WebIdentityRoleOptions) { o.RoleSessionName = cfg.RoleSessionName })
	}
	return stscreds.NewWebIdentityRoleProvider(
		stsClient, cfg.RoleARN, stscreds.IdentityTokenFile(cfg.WebIdentityTokenFile), opts...,
	), nil
}

// Upload writes a recording object and stamps its SHA-256 into object
// metadata. Recordings are a few MB at most, so buffering the body to hash it
// is acceptable.
func (s *S3Storage) Upload(ctx context.Context, path string, reader io.Reader, size int64) (*storage.UploadResult, error) {
	audio, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording data: %w", err)
	}
	sum := sha256.Sum256(audio)
	digest := hex.EncodeToString(sum[:])

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(audio),
		ContentLength: aws.Int64(int64(len(audio))),
		Metadata:      map[string]string{checksumMetaKey: digest},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload recording to S3: %w", err)
	}

	return &storage.UploadResult{
		Path:     path,
		Size:     int64(len(audio)),
		Checksum: digest,
	}, nil
}

// Download streams a recording object.
func (s *S3Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download recording from S3: %w", err)
	}
	return out.Body, nil
}

// Delete removes a recording object. Deleting a missing key is not an error.
func (s *S3Storage) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete recording from S3: %w", err)
	}
	return nil
}

// GetURL pre-signs a playback URL valid for ttl. The object must exist;
// handing out signed URLs for absent recordings would 404 at the bucket and
// confuse clients much later than a 404 here does.
func (s *S3Storage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("recording not found: %s", path)
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign recording URL: %w", err)
	}
	return req.URL, nil
}

// Exists reports whether an object is present. The SDK does not surface a
// typed not-found error for HeadObject, so any error is treated as absent.
func (s *S3Storage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	return err == nil, nil
}

// GetMetadata returns size, mtime, and checksum for a recording. The checksum
// normally comes from the metadata stamped at upload; objects written by other
// tools fall back to a download-and-hash.
func (s *S3Storage) GetMetadata(ctx context.Context, path string) (*storage.FileMetadata, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recording metadata: %w", err)
	}

	digest := head.Metadata[checksumMetaKey]
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

	meta := &storage.FileMetadata{Path: path, Checksum: digest}
	if head.ContentLength != nil {
		meta.Size = *head.ContentLength
	}
	if head.LastModified != nil {
		meta.LastModified = *head.LastModified
	}
	return meta, nil
}
