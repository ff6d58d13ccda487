// Package store keeps rendered exports in a flat directory together with a
// JSON index of recent merges and the most recent set of published links.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/utils"
	"github.com/google/uuid"
)

const (
	indexFileName  = "index.json"
	latestFileName = "latest.json"
	stampLayout    = "20060102-150405"
)

// DefaultRecentLimit is the number of entries Recent returns when limit <= 0.
const DefaultRecentLimit = 30

// Link is a published copy of one artifact.
type Link struct {
	Target string `json:"target"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

// Entry records one saved export.
type Entry struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	// Files maps an extension (csv, html, ...) to the file name inside the store.
	Files   map[string]string `json:"files"`
	Rows    int               `json:"rows"`
	Columns int               `json:"columns"`
	Links   []Link            `json:"links,omitempty"`
}

// Latest is the record of the most recent publish.
type Latest struct {
	EntryID   string    `json:"entry_id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	Links     []Link    `json:"links"`
}

// Save describes the files of one export.
type Save struct {
	RunID   string
	Title   string
	Rows    int
	Columns int
	// Files maps an extension to its content.
	Files map[string][]byte
}

// Store is an exports directory. Safe for concurrent use within a process.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New opens (creating if needed) the exports directory.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("exports directory not set")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("ensure exports dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the exports directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute path of a stored file.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, filepath.Base(name)) }

// Add writes the export files as <slug>-<yyyymmdd-hhmmss>.<ext> and appends an
// index entry.
func (s *Store) Add(in Save) (*Entry, error) {
	if len(in.Files) == 0 {
		return nil, errors.New("nothing to save")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	base := s.freeBase(utils.Slugify(in.Title)+"-"+now.Format(stampLayout), in.Files)

	exts := make([]string, 0, len(in.Files))
	for ext := range in.Files {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	e := &Entry{
		ID:        uuid.NewString(),
		RunID:     in.RunID,
		Title:     in.Title,
		CreatedAt: now,
		Files:     make(map[string]string, len(exts)),
		Rows:      in.Rows,
		Columns:   in.Columns,
	}
	for _, ext := range exts {
		name := base + "." + ext
		if err := utils.SafeWriteFile(filepath.Join(s.dir, name), in.Files[ext]); err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		e.Files[ext] = name
	}

	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	entries = append(entries, *e)
	if err := s.writeIndex(entries); err != nil {
		return nil, err
	}
	return e, nil
}

// freeBase appends -2, -3... when an export with the same name already exists.
func (s *Store) freeBase(base string, files map[string][]byte) string {
	taken := func(b string) bool {
		for ext := range files {
			if _, err := os.Stat(filepath.Join(s.dir, b+"."+ext)); err == nil {
				return true
			}
		}
		return false
	}
	if !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		b := fmt.Sprintf("%s-%d", base, i)
		if !taken(b) {
			return b
		}
	}
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	s.mu.Lock()
	entries, err := s.readIndex()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get looks up an entry by id.
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("export %q not found", id)
}

// Publish attaches links to an entry and records them as the latest links.
func (s *Store) Publish(id string, links []Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readIndex()
	if err != nil {
		return err
	}
	var e *Entry
	for i := range entries {
		if entries[i].ID == id {
			e = &entries[i]
			break
		}
	}
	if e == nil {
		return fmt.Errorf("export %q not found", id)
	}
	e.Links = append(e.Links, links...)
	if err := s.writeIndex(entries); err != nil {
		return err
	}
	data, err := utils.PrettyJSON(Latest{EntryID: id, Title: e.Title, UpdatedAt: s.now().UTC(), Links: links})
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.dir, latestFileName), data)
}

// Latest returns the last published links, or nil when nothing was published.
func (s *Store) Latest() (*Latest, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, latestFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read latest: %w", err)
	}
	var l Latest
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("parse latest: %w", err)
	}
	return &l, nil
}

func (s *Store) readIndex() ([]Entry, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return entries, nil
}

func (s *Store) writeIndex(entries []Entry) error {
	data, err := utils.PrettyJSON(entries)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.dir, indexFileName), data)
}
