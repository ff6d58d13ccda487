// Package publish pushes saved exports to remote targets: a GitHub repository
// (typically served as a static site), a Google Drive folder and a Google
// Cloud Storage bucket. Publishing is best effort; a failing target never
// affects the others.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"golang.org/x/sync/errgroup"
)

// Object is one file to publish.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Publisher uploads objects and returns a link per uploaded object.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, objs []Object, at time.Time) ([]store.Link, error)
}

// ObjectPath joins dir, an optional yyyy/mm/dd folder for at, and name.
func ObjectPath(dir string, dated bool, at time.Time, name string) string {
	parts := []string{strings.Trim(dir, "/")}
	if dated {
		parts = append(parts, at.UTC().Format("2006/01/02"))
	}
	parts = append(parts, name)
	return strings.TrimPrefix(path.Join(parts...), "/")
}

// maxParallel bounds concurrent publishers.
const maxParallel = 4

// Fanout runs every publisher concurrently. Links are returned in publisher
// order, including those a failing publisher managed to produce; each failure
// is returned as a separate error and logged.
func Fanout(ctx context.Context, log *slog.Logger, pubs []Publisher, objs []Object, at time.Time) ([]store.Link, []error) {
	if log == nil {
		log = slog.Default()
	}
	links := make([][]store.Link, len(pubs))
	errs := make([]error, len(pubs))

	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, p := range pubs {
		g.Go(func() error {
			start := time.Now()
			l, err := p.Publish(ctx, objs, at)
			links[i] = l
			if err != nil {
				errs[i] = fmt.Errorf("publish to %s: %w", p.Name(), err)
				log.Warn("publish failed", "target", p.Name(), "err", err)
				return nil
			}
			log.Info("published", "target", p.Name(), "objects", len(l), "elapsed", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	var outLinks []store.Link
	for _, l := range links {
		outLinks = append(outLinks, l...)
	}
	var outErrs []error
	for _, err := range errs {
		if err != nil {
			outErrs = append(outErrs, err)
		}
	}
	return outLinks, outErrs
}

// FromConfig builds every publisher the configuration enables. Targets that
// are configured but cannot be initialised are reported as errors.
func FromConfig(ctx context.Context, c *config.Global) ([]Publisher, []error) {
	var pubs []Publisher
	var errs []error
	if c.GitHubRepo != "" {
		if c.GitHubToken == "" {
			errs = append(errs, fmt.Errorf("github: repo %s configured but no token (GH_TOKEN)", c.GitHubRepo))
		} else {
			pubs = append(pubs, NewGitHub(GitHubOptions{
				Repo:     c.GitHubRepo,
				Branch:   c.GitHubBranch,
				Dir:      c.GitHubPath,
				Token:    c.GitHubToken,
				SiteBase: c.StaticSiteBase,
				Dated:    c.DatedSubfolders,
			}))
		}
	}
	if c.GDriveSAJSONBase != "" {
		d, err := NewDrive(ctx, c.GDriveSAJSONBase, c.GDriveFolderID)
		if err != nil {
			errs = append(errs, err)
		} else {
			pubs = append(pubs, d)
		}
	}
	if c.GCSBucket != "" {
		g, err := NewGCS(ctx, c.GCSBucket, c.GCSCredentialsFile, c.GCSPrefix, c.DatedSubfolders)
		if err != nil {
			errs = append(errs, err)
		} else {
			pubs = append(pubs, g)
		}
	}
	return pubs, errs
}
