package network

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ipcollateral/lending-services/util/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MediaObject describes a media file after upload.
type MediaObject struct {
	Bucket      string
	Key         string
	URL         string
	Size        int64
	ContentType string
	ETag        string
}

// MediaStore uploads asset media to an S3-compatible bucket, so the
// verification service can fetch it by URL.
type MediaStore struct {
	client *minio.Client
	bucket string
	logger *logging.Logger
}

// NewMediaStore returns a MediaStore for bucket on host. Buckets are
// looked up by path, which works for both AWS and local servers.
func NewMediaStore(host, keyID, secretKey string, useSSL bool, bucket string, logger *logging.Logger) (*MediaStore, error) {
	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(keyID, secretKey, ""),
		Secure:       useSSL,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("Cannot create S3 client for %s: %v", host, err)
	}
	return &MediaStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// MediaKey returns the object key for a file uploaded at uploadedAt.
// Directory parts of filename are dropped and characters that don't
// belong in a URL path are replaced.
func MediaKey(filename string, uploadedAt time.Time) string {
	base := filepath.Base(filename)
	base = strings.Trim(unsafeKeyChars.ReplaceAllString(base, "_"), "_")
	if base == "" || base == "." {
		base = "media"
	}
	return fmt.Sprintf("%d-%s", uploadedAt.Unix(), base)
}

// Upload stores data under MediaKey(filename, uploadedAt) and returns
// where it went.
func (s *MediaStore) Upload(ctx context.Context, filename, contentType string, data []byte, uploadedAt time.Time) (*MediaObject, error) {
	key := MediaKey(filename, uploadedAt)
	size := int64(len(data))
	progress := logger.NewUploadProgressLogger(s.logger, fmt.Sprintf("Upload %s/%s", s.bucket, key), size)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), size,
		minio.PutObjectOptions{
			ContentType: contentType,
			Progress:    progress,
		})
	if err != nil {
		return nil, fmt.Errorf("Upload %s to bucket %s: %v", key, s.bucket, err)
	}
	s.logger.Infof("Uploaded %s (%d bytes, %s) to %s", key, info.Size, contentType, s.bucket)
	return &MediaObject{
		Bucket:      s.bucket,
		Key:         key,
		URL:         s.ObjectURL(key),
		Size:        info.Size,
		ContentType: contentType,
		ETag:        info.ETag,
	}, nil
}

// ObjectURL returns the path-style URL of key in the media bucket.
func (s *MediaStore) ObjectURL(key string) string {
	endpoint := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, s.bucket, key)
}

// Stat returns info about an uploaded object.
func (s *MediaStore) Stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
}

// TraceOn writes the S3 client's HTTP traffic to the debug log.
func (s *MediaStore) TraceOn() {
	s.client.TraceOn(&traceWriter{logger: s.logger})
}

// traceWriter lets us write Minio trace output to our logs.
type traceWriter struct {
	logger *logging.Logger
}

func (t *traceWriter) Write(p []byte) (n int, err error) {
	t.logger.Debug(string(p))
	return len(p), nil
}
