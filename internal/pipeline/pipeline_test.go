package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/align"
	"github.com/KaramelBytes/trendmerge/internal/axis"
	"github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/ingest"
	"github.com/KaramelBytes/trendmerge/internal/publish"
	"github.com/KaramelBytes/trendmerge/internal/render"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func csvInput(name string, lines ...string) Input {
	return Input{Name: name, Data: []byte(strings.Join(lines, "\n"))}
}

func primaryInput() Input {
	return csvInput("orig.csv",
		"Time Stamp,Plant Pumps.CW Pump Speed,Sequence",
		"2024-01-01 10:00:00,40,1",
		"2024-01-01 10:00:05,41,2",
		"2024-01-01 10:00:10,42,3",
	)
}

func TestRunMergesAndAssigns(t *testing.T) {
	req := Request{
		Primary: primaryInput(),
		Secondaries: []Input{
			csvInput("sp.csv",
				"Timestamp,Plant Pumps.Active CW Flow Setpoint",
				"2024-01-01 10:00:01,1200",
				"2024-01-01 10:00:11,1250",
			),
		},
		Tolerance: 2 * time.Second,
		Ingest:    ingest.DefaultOptions(),
	}
	res, err := Run(context.Background(), quiet, req)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"Time Stamp", "CW Pump Speed", "Active CW Flow Setpoint"}, res.Assembly.Table.Header)
	assert.Equal(t, "1200", res.Assembly.Table.Rows[1][2])
	sp, ok := res.Assembly.Secondary()
	require.True(t, ok)
	assert.Equal(t, "Active CW Flow Setpoint", sp)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, RolePrimary, res.Sources[0].Role)
	assert.Equal(t, 1, res.Sources[0].Dropped)
	assert.Equal(t, ",", res.Sources[1].Delimiter)
}

func TestRunPrimaryFailureAborts(t *testing.T) {
	req := Request{
		Primary: csvInput("bad.csv", "A,B", "x,1", "y,2"),
		Ingest:  ingest.DefaultOptions(),
	}
	_, err := Run(context.Background(), quiet, req)
	require.Error(t, err)
	var ie *InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, RolePrimary, ie.Role)
	var nt *ingest.NoTimestampError
	assert.True(t, errors.As(err, &nt))
	assert.True(t, IsInputError(err))
}

func TestRunSecondaryFailureWarns(t *testing.T) {
	req := Request{
		Primary: primaryInput(),
		Secondaries: []Input{
			{Name: "empty.csv", Data: []byte("")},
			csvInput("notime.csv", "A,B", "x,1", "y,2"),
			csvInput("ok.csv", "Timestamp,Temp", "2024-01-01 10:00:00,50", "2024-01-01 10:00:05,51"),
		},
		Ingest: ingest.DefaultOptions(),
	}
	res, err := Run(context.Background(), quiet, req)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "empty.csv", res.Warnings[0].Input)
	assert.Contains(t, res.Warnings[0].Message, "decode failed")
	assert.Equal(t, "notime.csv", res.Warnings[1].Input)
	assert.Contains(t, res.Assembly.Table.Header, "Temp")
}

func TestRunUnknownSetpointWarns(t *testing.T) {
	req := Request{Primary: primaryInput(), Setpoint: "Missing Column", Ingest: ingest.DefaultOptions()}
	res, err := Run(context.Background(), quiet, req)
	require.NoError(t, err)
	_, ok := res.Assembly.Secondary()
	assert.False(t, ok)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "Missing Column")
	for _, tr := range res.Assembly.Traces {
		assert.Equal(t, axis.Primary, tr.Axis)
	}
}

func TestRunCutoffPastAllRows(t *testing.T) {
	cutoff, err := ParseCutoff("2030-01-01T00:00")
	require.NoError(t, err)
	req := Request{Primary: primaryInput(), Cutoff: cutoff, Ingest: ingest.DefaultOptions()}
	_, err = Run(context.Background(), quiet, req)
	var ere *align.EmptyReferenceError
	require.True(t, errors.As(err, &ere))
	assert.True(t, IsInputError(err))
}

func TestParseCutoff(t *testing.T) {
	c, err := ParseCutoff("")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = ParseCutoff("2024-01-01T10:00")
	require.NoError(t, err)
	assert.True(t, c.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))

	_, err = ParseCutoff("yesterday")
	assert.Error(t, err)
}

func TestToleranceClamped(t *testing.T) {
	assert.Equal(t, 2500*time.Millisecond, Tolerance(2.5))
	assert.Equal(t, time.Duration(0), Tolerance(-3))
	assert.Equal(t, 24*time.Hour, Tolerance(1e10))
	assert.Equal(t, 24*time.Hour, Tolerance(math.Inf(1)))
	assert.Equal(t, time.Duration(0), Tolerance(math.NaN()))
}

func TestPlotlyScript(t *testing.T) {
	b, err := PlotlyScript(&config.Global{})
	require.NoError(t, err)
	assert.Nil(t, b)

	path := filepath.Join(t.TempDir(), "plotly.min.js")
	require.NoError(t, os.WriteFile(path, []byte("var Plotly;"), 0o644))
	b, err = PlotlyScript(&config.Global{PlotlyJSFile: path})
	require.NoError(t, err)
	assert.Equal(t, "var Plotly;", string(b))

	_, err = PlotlyScript(&config.Global{PlotlyJSFile: path + ".missing"})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := Request{Primary: primaryInput(), Secondaries: []Input{primaryInput()}, Ingest: ingest.DefaultOptions()}
	_, err := Run(ctx, quiet, req)
	assert.ErrorIs(t, err, context.Canceled)
}

type stubPublisher struct{ fail bool }

func (stubPublisher) Name() string { return "stub" }

func (p stubPublisher) Publish(_ context.Context, objs []publish.Object, _ time.Time) ([]store.Link, error) {
	if p.fail {
		return nil, errors.New("offline")
	}
	var out []store.Link
	for _, o := range objs {
		out = append(out, store.Link{Target: "stub", Name: o.Name, URL: "https://stub/" + o.Name})
	}
	return out, nil
}

func mergedResult(t *testing.T) *Result {
	t.Helper()
	res, err := Run(context.Background(), quiet, Request{Primary: primaryInput(), Ingest: ingest.DefaultOptions()})
	require.NoError(t, err)
	return res
}

func TestDeliverSavesAndPublishes(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	res := mergedResult(t)

	d, err := Deliver(context.Background(), quiet, res, DeliverOptions{
		Render:     render.Options{Title: "Loop A", Y1Max: 100},
		Store:      st,
		Publishers: []publish.Publisher{stubPublisher{}, stubPublisher{fail: true}},
	})
	require.NoError(t, err)
	zip, ok := d.Artifact(render.FormatZIP)
	require.True(t, ok)
	assert.Equal(t, "Loop A - results.zip", zip.FileName)

	require.NotNil(t, d.Entry)
	assert.Equal(t, res.RunID, d.Entry.RunID)
	assert.Len(t, d.Entry.Files, 4)
	require.Len(t, d.Links, 2)
	assert.Equal(t, d.Entry.Files["html"], d.Links[0].Name)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0].Message, "offline")

	latest, err := st.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, d.Entry.ID, latest.EntryID)
}

func TestDeliverWithoutStore(t *testing.T) {
	d, err := Deliver(context.Background(), quiet, mergedResult(t), DeliverOptions{
		Formats: []render.Format{render.FormatCSV},
	})
	require.NoError(t, err)
	require.Len(t, d.Artifacts, 1)
	assert.Nil(t, d.Entry)
	assert.True(t, strings.HasPrefix(string(d.Artifacts[0].Data), "Time Stamp,CW Pump Speed"))
}
