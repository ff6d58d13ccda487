package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/publish"
	"github.com/KaramelBytes/trendmerge/internal/render"
	"github.com/KaramelBytes/trendmerge/internal/store"
)

// Stored and published formats. The ZIP bundle is only ever returned to the
// caller.
var (
	storedFormats    = []render.Format{render.FormatCSV, render.FormatXLSX, render.FormatHTML, render.FormatPNG}
	publishedFormats = []render.Format{render.FormatHTML, render.FormatCSV}
)

// DeliverOptions selects what happens to a merge result after rendering.
type DeliverOptions struct {
	Render render.Options
	// Formats to render; nil renders every format.
	Formats []render.Format
	// Store is optional; without it nothing is saved or published.
	Store      *store.Store
	Publishers []publish.Publisher
}

// Delivery is the rendered output of a merge.
type Delivery struct {
	Artifacts []render.Artifact
	Entry     *store.Entry
	Links     []store.Link
	Warnings  []Warning
}

// Artifact returns the rendered artifact for f.
func (d *Delivery) Artifact(f render.Format) (render.Artifact, bool) {
	for _, a := range d.Artifacts {
		if a.Format == f {
			return a, true
		}
	}
	return render.Artifact{}, false
}

// Deliver renders res, saves it to the store and publishes it. Only a render
// failure is returned as an error; store and publish failures become warnings.
func Deliver(ctx context.Context, log *slog.Logger, res *Result, opt DeliverOptions) (*Delivery, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", res.RunID)

	arts, err := render.Render(res.Assembly, opt.Render, opt.Formats...)
	if err != nil {
		return nil, err
	}
	d := &Delivery{Artifacts: arts}
	if opt.Store == nil {
		return d, nil
	}

	files := make(map[string][]byte)
	for _, f := range storedFormats {
		if a, ok := d.Artifact(f); ok {
			files[string(f)] = a.Data
		}
	}
	if len(files) == 0 {
		return d, nil
	}
	title := opt.Render.Title
	if title == "" {
		title = render.DefaultTitle
	}
	entry, err := opt.Store.Add(store.Save{
		RunID:   res.RunID,
		Title:   title,
		Rows:    res.Aligned.Len(),
		Columns: len(res.Aligned.Columns),
		Files:   files,
	})
	if err != nil {
		log.Warn("saving export failed", "err", err)
		d.Warnings = append(d.Warnings, Warning{Message: "export not saved: " + err.Error()})
		return d, nil
	}
	d.Entry = entry
	log.Info("export saved", "entry_id", entry.ID, "dir", opt.Store.Dir())

	if len(opt.Publishers) == 0 {
		return d, nil
	}
	var objs []publish.Object
	for _, f := range publishedFormats {
		a, ok := d.Artifact(f)
		name, stored := entry.Files[string(f)]
		if !ok || !stored {
			continue
		}
		objs = append(objs, publish.Object{Name: name, ContentType: f.ContentType(), Data: a.Data})
	}
	links, errs := publish.Fanout(ctx, log, opt.Publishers, objs, time.Now())
	for _, err := range errs {
		d.Warnings = append(d.Warnings, Warning{Message: err.Error()})
	}
	if len(links) == 0 {
		return d, nil
	}
	if err := opt.Store.Publish(entry.ID, links); err != nil {
		log.Warn("recording links failed", "err", err)
		d.Warnings = append(d.Warnings, Warning{Message: "links not recorded: " + err.Error()})
	}
	d.Links = links
	return d, nil
}
