// Package blobstore fetches and stores statement files, supporting both
// gs:// URIs (Google Cloud Storage) and local paths.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
)

const uploadTimeout = 2 * time.Minute

// Store resolves document URIs to local files the parsers can read.
type Store struct {
	bucket string
	log    zerolog.Logger
}

// New creates a Store. bucket is the default upload bucket; it may be empty
// for local-only deployments.
func New(bucket string, log zerolog.Logger) *Store {
	return &Store{bucket: bucket, log: log.With().Str("component", "blobstore").Logger()}
}

// IsRemote reports whether uri points at cloud storage.
func IsRemote(uri string) bool {
	return strings.HasPrefix(uri, "gs://")
}

// Fetch makes the document at uri available as a local file and returns its
// path plus a cleanup function. Local paths pass through untouched; gs://
// URIs are downloaded to a temp file.
func (s *Store) Fetch(ctx context.Context, uri string) (string, func(), error) {
	if !IsRemote(uri) {
		if _, err := os.Stat(uri); err != nil {
			return "", nil, fmt.Errorf("fetch %s: %w", uri, err)
		}
		return uri, func() {}, nil
	}

	data, err := s.download(ctx, uri)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "creditlens-*"+filepath.Ext(uri))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}

	s.log.Debug().Str("uri", uri).Int("bytes", len(data)).Msg("remote document fetched")
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// download reads the full object behind a gs:// URI.
func (s *Store) download(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucketName, objectPath, err)
	}
	return data, nil
}

// Upload stores a local file under objectName in the configured bucket and
// returns its gs:// URI.
func (s *Store) Upload(ctx context.Context, objectName, localPath string) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("no upload bucket configured")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy to storage writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	uri := "gs://" + s.bucket + "/" + objectName
	s.log.Info().Str("uri", uri).Msg("document uploaded")
	return uri, nil
}

// Filename extracts the base filename from a URI of either kind.
func Filename(uri string) string {
	if IsRemote(uri) {
		trimmed := strings.TrimPrefix(uri, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		return path.Base(parts[1])
	}
	return filepath.Base(uri)
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid storage URI %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("storage URI %s has no object path", gcsURI)
	}
	return parts[0], parts[1], nil
}
