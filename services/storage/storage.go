// Package storage holds the object store backends documents are uploaded to
// and downloaded from during ingestion.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sahilchouksey/course-ingest/config"
)

const (
	BackendSpaces = "spaces"
	BackendGCS    = "gcs"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrObjectTooLarge = errors.New("object exceeds size limit")
)

// ObjectStore is the subset of object storage the ingestion pipeline needs.
type ObjectStore interface {
	// Upload stores data under key and returns a public URL for it.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Download reads the object at key. maxBytes <= 0 disables the limit.
	Download(ctx context.Context, key string, maxBytes int64) ([]byte, error)
}

// New builds the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case BackendSpaces, "":
		return NewSpacesClient(SpacesConfig{
			AccessKey:      cfg.SpacesAccessKey,
			SecretKey:      cfg.SpacesSecretKey,
			Bucket:         cfg.SpacesBucket,
			Region:         cfg.SpacesRegion,
			Endpoint:       cfg.SpacesEndpoint,
			CDNURL:         cfg.SpacesCDNURL,
			ForcePathStyle: cfg.SpacesForcePathStyle,
		})
	case BackendGCS:
		return NewGCSClient(ctx, GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// GenerateKey builds a unique object key under prefix, keeping the
// extension of filename.
func GenerateKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = sanitizeKeyPart(base)
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s/%d_%s_%s%s", strings.Trim(prefix, "/"), time.Now().Unix(), uuid.NewString()[:8], base, ext)
}

func sanitizeKeyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	return b.String()
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrObjectTooLarge, maxBytes)
	}
	return data, nil
}
