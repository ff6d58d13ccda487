package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/store"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive uploads into a Google Drive folder and shares each file with anyone
// holding the link.
type Drive struct {
	svc      *drive.Service
	folderID string
}

// NewDrive authenticates with a base64-encoded service account key. Uploads
// always go into folderID.
func NewDrive(ctx context.Context, saJSONB64, folderID string) (*Drive, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("drive: gdrive_folder_id is required")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(saJSONB64))
	if err != nil {
		return nil, fmt.Errorf("drive: decode service account key: %w", err)
	}
	return newDrive(ctx, folderID, option.WithCredentialsJSON(raw), option.WithScopes(drive.DriveFileScope))
}

func newDrive(ctx context.Context, folderID string, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &Drive{svc: svc, folderID: folderID}, nil
}

func (d *Drive) Name() string { return "gdrive" }

// Publish uploads every object. A failed upload or share does not stop the
// remaining objects; links of uploaded files are returned alongside the joined
// errors. An unshared file keeps its link, which works for folder members.
func (d *Drive) Publish(ctx context.Context, objs []Object, _ time.Time) ([]store.Link, error) {
	links := make([]store.Link, 0, len(objs))
	var errs []error
	for _, o := range objs {
		meta := &drive.File{Name: o.Name, MimeType: o.ContentType, Parents: []string{d.folderID}}
		f, err := d.svc.Files.Create(meta).
			Media(bytes.NewReader(o.Data), googleapi.ContentType(o.ContentType)).
			SupportsAllDrives(true).
			Fields("id", "webViewLink").
			Context(ctx).
			Do()
		if err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", o.Name, err))
			continue
		}
		_, err = d.svc.Permissions.Create(f.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			errs = append(errs, fmt.Errorf("share %s: %w", o.Name, err))
		}
		links = append(links, store.Link{Target: d.Name(), Name: o.Name, URL: f.WebViewLink})
	}
	return links, errors.Join(errs...)
}
