package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

func TestAddWritesFilesAndIndex(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)
	s.now = fixedClock(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))

	e, err := s.Add(Save{
		RunID: "r1",
		Title: "CW Loop",
		Rows:  3,
		Files: map[string][]byte{"csv": []byte("a,b\n"), "html": []byte("<html>")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "cw-loop-20240305-140709.csv", e.Files["csv"])
	assert.Equal(t, "cw-loop-20240305-140709.html", e.Files["html"])

	b, err := os.ReadFile(s.Path(e.Files["csv"]))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(b))

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Rows)
}

func TestAddSameSecondDoesNotOverwrite(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	s.now = fixedClock(ts, ts)

	a, err := s.Add(Save{Title: "Loop", Files: map[string][]byte{"csv": []byte("1")}})
	require.NoError(t, err)
	b, err := s.Add(Save{Title: "Loop", Files: map[string][]byte{"csv": []byte("2")}})
	require.NoError(t, err)
	assert.NotEqual(t, a.Files["csv"], b.Files["csv"])
	assert.Equal(t, "loop-20240305-140709-2.csv", b.Files["csv"])
}

func TestRecentNewestFirstWithLimit(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = fixedClock(base, base.Add(time.Hour), base.Add(2*time.Hour))
	for _, title := range []string{"first", "second", "third"} {
		_, err := s.Add(Save{Title: title, Files: map[string][]byte{"csv": []byte(title)}})
		require.NoError(t, err)
	}

	recent, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Title)
	assert.Equal(t, "second", recent[1].Title)

	all, err := s.Recent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPublishRecordsLatest(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	l, err := s.Latest()
	require.NoError(t, err)
	assert.Nil(t, l)

	e, err := s.Add(Save{Title: "Loop", Files: map[string][]byte{"html": []byte("x")}})
	require.NoError(t, err)
	links := []Link{{Target: "github", Name: e.Files["html"], URL: "https://example.org/loop.html"}}
	require.NoError(t, s.Publish(e.ID, links))

	l, err = s.Latest()
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, e.ID, l.EntryID)
	assert.Equal(t, links, l.Links)

	got, err := s.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, links, got.Links)

	assert.Error(t, s.Publish("missing", links))
}

func TestAddRejectsEmpty(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	_, err = s.Add(Save{Title: "x"})
	assert.Error(t, err)

	_, err = New("")
	assert.Error(t, err)
}
