package minio

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"agriguard/internal/config"
	"agriguard/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AnchorBucket holds the content-addressed raw observation records. Objects
// are keyed by the sha256 of their uncompressed content, so an anchored
// digest always resolves to byte-identical data.
const AnchorBucket = "observation-anchors"

// AnchorStore is the durable, tamper-evident home of raw weather readings.
type AnchorStore struct {
	client *minio.Client
	cfg    config.MinioConfig
}

func NewAnchorStore(cfg config.MinioConfig) (*AnchorStore, error) {
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		slog.Warn("invalid MinIO secure flag, defaulting to false", "error", err)
		isSecure = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := &AnchorStore{client: client, cfg: cfg}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	slog.Info("connected to MinIO", "endpoint", endpoint, "bucket", AnchorBucket)
	return store, nil
}

func (s *AnchorStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, AnchorBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", AnchorBucket, err)
	}
	if exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, AnchorBucket, minio.MakeBucketOptions{Region: s.cfg.MinioLocation})
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", AnchorBucket, err)
	}
	return nil
}

// Digest computes the content address for a raw record.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func objectKey(digest string) string {
	return strings.TrimPrefix(digest, "sha256:") + ".json.gz"
}

// WriteAndAnchor compresses raw and stores it under its content digest.
// Writing the same content twice is a no-op that lands on the same key, which
// is what makes crashed-cycle re-runs safe.
func (s *AnchorStore) WriteAndAnchor(ctx context.Context, raw []byte) (string, error) {
	digest := Digest(raw)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return "", &models.IntegrityError{Op: "anchor compress", Err: err}
	}
	if err := gz.Close(); err != nil {
		return "", &models.IntegrityError{Op: "anchor compress", Err: err}
	}

	_, err := s.client.PutObject(ctx, AnchorBucket, objectKey(digest), &buf, int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/gzip"})
	if err != nil {
		return "", &models.IntegrityError{Op: "anchor write", Err: err}
	}

	return digest, nil
}

// Verify re-fetches the anchored record and checks that it still hashes to
// the digest. Auditors use this to prove an observation was not rewritten.
func (s *AnchorStore) Verify(ctx context.Context, digest string) (bool, error) {
	obj, err := s.client.GetObject(ctx, AnchorBucket, objectKey(digest), minio.GetObjectOptions{})
	if err != nil {
		return false, &models.IntegrityError{Op: "anchor read", Err: err}
	}
	defer obj.Close()

	gz, err := gzip.NewReader(obj)
	if err != nil {
		return false, &models.IntegrityError{Op: "anchor decompress", Err: err}
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return false, &models.IntegrityError{Op: "anchor read", Err: err}
	}

	return Digest(raw) == digest, nil
}
