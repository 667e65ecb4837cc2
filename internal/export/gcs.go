package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSink uploads exports to a Cloud Storage bucket.
type GCSSink struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// GCSConfig configures a GCSSink. Credentials may be a file path or inline
// JSON; empty uses application default credentials. Emulator points the
// client at a fake-gcs-server style endpoint without authentication.
type GCSConfig struct {
	Bucket      string
	Prefix      string
	Credentials string
	Emulator    string
	Timeout     time.Duration
}

// NewGCSSink creates the storage client.
func NewGCSSink(ctx context.Context, cfg GCSConfig) (*GCSSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs sink: bucket is required")
	}

	var opts []option.ClientOption
	creds := strings.TrimSpace(cfg.Credentials)
	switch {
	case cfg.Emulator != "":
		os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.Emulator, "/"))
		opts = append(opts, option.WithoutAuthentication())
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)), option.WithScopes(storage.ScopeReadWrite))
	case creds != "":
		opts = append(opts, option.WithCredentialsFile(creds), option.WithScopes(storage.ScopeReadWrite))
	default:
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GCSSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: timeout}, nil
}

// ObjectName returns the object key of an export.
func (g *GCSSink) ObjectName(name string) string {
	return objectName(g.prefix, name)
}

func objectName(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (g *GCSSink) Save(ctx context.Context, blob Blob) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(g.ObjectName(blob.Name)).NewWriter(ctx)
	w.ContentType = blob.ContentType
	if _, err := w.Write(blob.Data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %s: %w", blob.Name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs writer %s: %w", blob.Name, err)
	}
	return nil
}

// Close releases the storage client.
func (g *GCSSink) Close() error {
	return g.client.Close()
}
