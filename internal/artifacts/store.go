package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stemsense/internal/config"
	"stemsense/internal/fileutil"
	"stemsense/internal/services"
)

// ErrMissingObject indicates the named object is not present in the bucket.
var ErrMissingObject = errors.New("object not found in bucket")

// Store is the durable object storage used for pipeline artifacts. The
// workflow engine uploads stage outputs here and recovers them when local
// working files disappear between stages.
type Store interface {
	Upload(ctx context.Context, localPath, name string) error
	Download(ctx context.Context, name, destPath string) error
	Exists(ctx context.Context, name string) (bool, error)
	SignedURL(name string, ttl time.Duration) (string, error)
}

// BucketStore implements Store on top of a local bucket directory with
// HMAC-signed download URLs served by the API gateway.
type BucketStore struct {
	root    string
	signer  *Signer
	baseURL string
	ttl     time.Duration
}

// NewBucketStore builds a BucketStore from configuration.
func NewBucketStore(cfg *config.Config) (*BucketStore, error) {
	root := strings.TrimSpace(cfg.Storage.BucketDir)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "init bucket", "storage.bucket_dir is not set", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	signer, err := NewSigner(cfg.Storage.SigningSecret)
	if err != nil {
		return nil, err
	}
	ttl := time.Duration(cfg.Storage.URLTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &BucketStore{
		root:    root,
		signer:  signer,
		baseURL: strings.TrimRight(cfg.Storage.BaseURL, "/"),
		ttl:     ttl,
	}, nil
}

// DefaultTTL returns the configured signed URL lifetime.
func (b *BucketStore) DefaultTTL() time.Duration {
	return b.ttl
}

// Upload copies a local file into the bucket under the given object name.
func (b *BucketStore) Upload(ctx context.Context, localPath, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectPath, err := b.objectPath(name)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open source %s: %w", localPath, err)
	}
	defer src.Close()

	// Write through a temp file so readers never observe a partial object.
	tmp, err := os.CreateTemp(b.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy object %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp object: %w", err)
	}
	if err := os.Rename(tmpPath, objectPath); err != nil {
		return fmt.Errorf("store object %s: %w", name, err)
	}
	return nil
}

// Download copies a bucket object to a local destination path.
func (b *BucketStore) Download(ctx context.Context, name, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	objectPath, err := b.objectPath(name)
	if err != nil {
		return err
	}

	if _, err := os.Stat(objectPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("download %s: %w", name, ErrMissingObject)
		}
		return fmt.Errorf("stat object %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if err := fileutil.CopyVerified(objectPath, destPath); err != nil {
		return fmt.Errorf("copy object %s: %w", name, err)
	}
	return nil
}

// Exists reports whether an object is present in the bucket.
func (b *BucketStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	objectPath, err := b.objectPath(name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(objectPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", name, err)
	}
	return !info.IsDir(), nil
}

// SignedURL issues a time-limited download URL for a bucket object. A
// non-positive ttl falls back to the configured default.
func (b *BucketStore) SignedURL(name string, ttl time.Duration) (string, error) {
	if _, err := b.objectPath(name); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = b.ttl
	}
	expires := time.Now().Add(ttl).Unix()
	signature := b.signer.Sign(name, expires)
	return fmt.Sprintf("%s/artifacts/%s?expires=%d&signature=%s", b.baseURL, name, expires, signature), nil
}

// VerifyRequest validates a signed download request and returns the on-disk
// object path when the signature is genuine and unexpired.
func (b *BucketStore) VerifyRequest(name string, expires int64, signature string, now time.Time) (string, error) {
	objectPath, err := b.objectPath(name)
	if err != nil {
		return "", err
	}
	if err := b.signer.Verify(name, expires, signature, now); err != nil {
		return "", err
	}
	return objectPath, nil
}

// ObjectPath resolves an object name to its bucket location without any
// signature check. Used by local tooling.
func (b *BucketStore) ObjectPath(name string) (string, error) {
	return b.objectPath(name)
}

func (b *BucketStore) objectPath(name string) (string, error) {
	cleaned := filepath.Base(strings.TrimSpace(name))
	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned != name {
		return "", services.Wrap(services.ErrValidation, "", "resolve object", fmt.Sprintf("invalid object name %q", name), nil)
	}
	return filepath.Join(b.root, cleaned), nil
}
