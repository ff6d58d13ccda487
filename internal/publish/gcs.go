package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"google.golang.org/api/option"
)

// GCS uploads into a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
	dated  bool
}

// NewGCS uses the service account key at credsFile, or application default
// credentials when credsFile is empty.
func NewGCS(ctx context.Context, bucket, credsFile, prefix string, dated bool) (*GCS, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		if _, err := os.Stat(credsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("gcs: service account key not found at path: %s", credsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix, dated: dated}, nil
}

func (g *GCS) Name() string { return "gcs" }

func (g *GCS) Publish(ctx context.Context, objs []Object, at time.Time) ([]store.Link, error) {
	links := make([]store.Link, 0, len(objs))
	for _, o := range objs {
		key := ObjectPath(g.prefix, g.dated, at, o.Name)
		w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
		w.ContentType = o.ContentType
		w.CacheControl = "no-cache, no-store, must-revalidate"
		if _, err := w.Write(o.Data); err != nil {
			_ = w.Close()
			return links, fmt.Errorf("write gs://%s/%s: %w", g.bucket, key, err)
		}
		if err := w.Close(); err != nil {
			return links, fmt.Errorf("close gs://%s/%s: %w", g.bucket, key, err)
		}
		links = append(links, store.Link{
			Target: g.Name(),
			Name:   o.Name,
			URL:    fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, escapePath(key)),
		})
	}
	return links, nil
}
