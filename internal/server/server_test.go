package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const primaryCSV = "Time Stamp,Plant Pumps.CW Pump Speed\n" +
	"2024-01-01 10:00:00,40\n" +
	"2024-01-01 10:00:05,41\n" +
	"2024-01-01 10:00:10,42\n"

const setpointCSV = "Timestamp,Active CW Flow Setpoint\n" +
	"2024-01-01 10:00:01,1200\n" +
	"2024-01-01 10:00:09,1250\n"

func testConfig(dir string) *config.Global {
	return &config.Global{
		ToleranceSec:       5,
		TimestampThreshold: 0.8,
		DefaultTitle:       "CW Loop",
		Y1Max:              100,
		ExportsDir:         dir,
		RecentLimit:        30,
		ListenAddr:         ":0",
		MaxUploadMB:        8,
		LogLevel:           "info",
	}
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	s, err := New(Options{
		Config:   testConfig(dir),
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:    st,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return s, st
}

type upload struct {
	field, name, body string
}

func multipartRequest(t *testing.T, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestProcessReturnsBundleAndSaves(t *testing.T) {
	s, st := newTestServer(t)
	req := multipartRequest(t,
		map[string]string{"tolerance": "2", "title": "Loop 1"},
		upload{"original_csv", "orig.csv", primaryCSV},
		upload{"other_csvs", "sp.csv", setpointCSV},
	)
	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Loop 1 - results.zip")
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.Equal(t, "Active CW Flow Setpoint", w.Header().Get("X-Setpoint-Column"))
	assert.Equal(t, "3", w.Header().Get("X-Merged-Rows"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Loop 1 - merged.csv")
	assert.Contains(t, names, "Loop 1 - Trend Viewer.html")

	recent, err := st.Recent(0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Loop 1", recent[0].Title)

	idx := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, idx.Code)
	assert.Contains(t, idx.Body.String(), "/static/exports/"+recent[0].Files["html"])

	file := serve(s, httptest.NewRequest(http.MethodGet, "/static/exports/"+recent[0].Files["csv"], nil))
	assert.Equal(t, http.StatusOK, file.Code)
	assert.True(t, strings.HasPrefix(file.Body.String(), "Time Stamp,CW Pump Speed,Active CW Flow Setpoint"))
}

func TestProcessMissingPrimary(t *testing.T) {
	s, _ := newTestServer(t)
	w := serve(s, multipartRequest(t, nil, upload{"other_csvs", "sp.csv", setpointCSV}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "original_csv")
}

func TestProcessBadForm(t *testing.T) {
	s, _ := newTestServer(t)
	cases := map[string]map[string]string{
		"tolerance":      {"tolerance": "soon"},
		"huge tolerance": {"tolerance": "10000000000"},
		"y range":        {"y1_min": "50", "y1_max": "10"},
		"cutoff":         {"cutoff": "next tuesday"},
	}
	for name, fields := range cases {
		w := serve(s, multipartRequest(t, fields, upload{"original_csv", "orig.csv", primaryCSV}))
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
	w := serve(s, multipartRequest(t, map[string]string{"tolerance": "10000000000"}, upload{"original_csv", "orig.csv", primaryCSV}))
	assert.Contains(t, w.Body.String(), "between 0 and 86400 seconds")
}

func TestProcessUnusablePrimary(t *testing.T) {
	s, _ := newTestServer(t)
	w := serve(s, multipartRequest(t, nil, upload{"original_csv", "notime.csv", "A,B\nx,1\ny,2\n"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "notime.csv", body["input"])
}

func TestProcessSkipsUnsupportedSecondary(t *testing.T) {
	s, _ := newTestServer(t)
	w := serve(s, multipartRequest(t, nil,
		upload{"original_csv", "orig.csv", primaryCSV},
		upload{"other_csvs", "notes.pdf", "%PDF"},
	))
	require.Equal(t, http.StatusOK, w.Code)
	warnings := w.Header().Values("X-Warning")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "notes.pdf")
}

func TestExportsAPIAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	w := serve(s, multipartRequest(t, nil, upload{"original_csv", "orig.csv", primaryCSV}))
	require.Equal(t, http.StatusOK, w.Code)

	api := serve(s, httptest.NewRequest(http.MethodGet, "/api/exports?limit=5", nil))
	require.Equal(t, http.StatusOK, api.Code)
	var body struct {
		Exports []store.Entry `json:"exports"`
	}
	require.NoError(t, json.Unmarshal(api.Body.Bytes(), &body))
	require.Len(t, body.Exports, 1)
	assert.Equal(t, "CW Loop", body.Exports[0].Title)

	bad := serve(s, httptest.NewRequest(http.MethodGet, "/api/exports?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	m := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), `trendmerge_merges_total{status="ok"} 1`)
}
