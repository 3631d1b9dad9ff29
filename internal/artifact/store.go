package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// Bucket is the subset of the Supabase storage client the store uses
type Bucket interface {
	UploadFile(bucketID string, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	CreateSignedUrl(bucketID string, filePath string, expiresIn int) (storage_go.SignedUrlResponse, error)
	RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error)
}

// Store keeps generated images in one storage bucket under {userID}/{jobID}.{ext}
type Store struct {
	bucket Bucket
	name   string
	logger *slog.Logger
}

// NewSupabaseStore connects to Supabase storage with a service key
func NewSupabaseStore(url, serviceKey, bucketName string, logger *slog.Logger) (*Store, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return NewStore(client.Storage, bucketName, logger), nil
}

// NewStore creates a Store over bucket
func NewStore(bucket Bucket, bucketName string, logger *slog.Logger) *Store {
	return &Store{
		bucket: bucket,
		name:   bucketName,
		logger: logger,
	}
}

// ExtensionFor maps an image MIME type to a file extension, defaulting to png
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// PathFor returns the object path for a job's artifact
func PathFor(userID, jobID, mimeType string) string {
	return fmt.Sprintf("%s/%s.%s", userID, jobID, ExtensionFor(mimeType))
}

// Upload stores data at the job's path, overwriting any existing object
func (s *Store) Upload(_ context.Context, userID, jobID string, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	path := PathFor(userID, jobID, mimeType)
	upsert := true

	if _, err := s.bucket.UploadFile(s.name, path, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &mimeType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	s.logger.Info("Artifact uploaded",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.String("mime_type", mimeType),
	)

	return path, nil
}

// Delete removes the object at path
func (s *Store) Delete(_ context.Context, path string) error {
	if _, err := s.bucket.RemoveFile(s.name, []string{path}); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// SignedURL returns a time-limited URL for path. A missing object yields domain.ErrStaleArtifact.
func (s *Store) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	resp, err := s.bucket.CreateSignedUrl(s.name, path, seconds)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrStaleArtifact, path)
		}
		return "", fmt.Errorf("failed to sign artifact url: %w", err)
	}
	if resp.SignedURL == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrStaleArtifact, path)
	}

	return resp.SignedURL, nil
}

// the storage API reports missing objects only through the error text
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}
