package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/pipeline"
	"github.com/KaramelBytes/trendmerge/internal/render"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/gin-gonic/gin"
)

// Upload extensions accepted by /process.
var allowedExt = map[string]bool{".csv": true, ".tsv": true, ".txt": true, ".xlsx": true}

type processForm struct {
	Tolerance    string `form:"tolerance" binding:"omitempty,numeric"`
	Title        string `form:"title" binding:"max=200"`
	SetpointName string `form:"setpoint_name" binding:"max=200"`
	Y1Min        string `form:"y1_min" binding:"omitempty,numeric"`
	Y1Max        string `form:"y1_max" binding:"omitempty,numeric"`
	Cutoff       string `form:"cutoff" binding:"max=64"`
}

// badRequest is a client error in the form itself.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleIndex(c *gin.Context) {
	data := indexData{
		Tolerance: s.cfg.ToleranceSec,
		Title:     s.cfg.DefaultTitle,
		Y1Min:     s.cfg.Y1Min,
		Y1Max:     s.cfg.Y1Max,
	}
	recent, err := s.store.Recent(s.cfg.RecentLimit)
	if err != nil {
		s.log.Warn("listing exports failed", "err", err)
	}
	for _, e := range recent {
		data.Exports = append(data.Exports, indexExport{
			Title:   e.Title,
			Created: e.CreatedAt.Format("2006-01-02 15:04:05"),
			HTML:    exportURL(e, "html"),
			CSV:     exportURL(e, "csv"),
			XLSX:    exportURL(e, "xlsx"),
			PNG:     exportURL(e, "png"),
		})
	}
	if latest, err := s.store.Latest(); err != nil {
		s.log.Warn("reading latest links failed", "err", err)
	} else if latest != nil {
		data.LatestTitle = latest.Title
		for _, l := range latest.Links {
			data.Latest = append(data.Latest, indexLink{Target: l.Target, Name: l.Name, URL: l.URL})
		}
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(c.Writer, data); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func exportURL(e store.Entry, ext string) string {
	name, ok := e.Files[ext]
	if !ok {
		return ""
	}
	return path.Join("/static/exports", name)
}

func (s *Server) handleExports(c *gin.Context) {
	limit := s.cfg.RecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	recent, err := s.store.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	latest, err := s.store.Latest()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recent == nil {
		recent = []store.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"exports": recent, "latest": latest})
}

func (s *Server) handleProcess(c *gin.Context) {
	start := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(s.cfg.MaxUploadMB)<<20)

	req, ropt, warnings, err := s.parseProcess(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.fail(c, http.StatusRequestEntityTooLarge, "bad_request", err, "")
		default:
			s.fail(c, http.StatusBadRequest, "bad_request", err, "")
		}
		return
	}

	res, err := pipeline.Run(c.Request.Context(), s.log, req)
	if err != nil {
		if pipeline.IsInputError(err) {
			var ie *pipeline.InputError
			name := ""
			if errors.As(err, &ie) {
				name = ie.Name
			}
			s.fail(c, http.StatusUnprocessableEntity, "input_error", err, name)
			return
		}
		s.fail(c, http.StatusInternalServerError, "error", err, "")
		return
	}

	d, err := pipeline.Deliver(c.Request.Context(), s.log, res, pipeline.DeliverOptions{
		Render:     ropt,
		Store:      s.store,
		Publishers: s.pubs,
	})
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "error", err, "")
		return
	}
	bundle, ok := d.Artifact(render.FormatZIP)
	if !ok {
		s.fail(c, http.StatusInternalServerError, "error", errors.New("bundle not rendered"), "")
		return
	}

	warnings = append(warnings, res.Warnings...)
	warnings = append(warnings, d.Warnings...)
	s.metrics.MergesTotal.WithLabelValues("ok").Inc()
	s.metrics.MergeDuration.Observe(time.Since(start).Seconds())
	s.metrics.MergedRows.Observe(float64(res.Aligned.Len()))
	s.metrics.InputWarnings.Add(float64(len(warnings)))
	for _, l := range d.Links {
		s.metrics.PublishedLinks.WithLabelValues(l.Target).Inc()
	}

	c.Header("X-Run-ID", res.RunID)
	c.Header("X-Merged-Rows", strconv.Itoa(res.Aligned.Len()))
	if sp, ok := res.Assembly.Secondary(); ok {
		c.Header("X-Setpoint-Column", sp)
	}
	for _, w := range warnings {
		msg := w.Message
		if w.Input != "" {
			msg = w.Input + ": " + msg
		}
		c.Writer.Header().Add("X-Warning", sanitizeHeader(msg))
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": bundle.FileName}))
	c.Data(http.StatusOK, bundle.ContentType(), bundle.Data)
}

func (s *Server) fail(c *gin.Context, status int, outcome string, err error, input string) {
	s.metrics.MergesTotal.WithLabelValues(outcome).Inc()
	level := s.log.Warn
	if status >= 500 {
		level = s.log.Error
	}
	level("merge request failed", "status", status, "err", err)
	body := gin.H{"error": err.Error()}
	if input != "" {
		body["input"] = input
	}
	c.JSON(status, body)
}

// parseProcess reads the multipart form into a merge request. Unusable
// secondary uploads are skipped with a warning.
func (s *Server) parseProcess(c *gin.Context) (pipeline.Request, render.Options, []pipeline.Warning, error) {
	var req pipeline.Request
	var ropt render.Options
	var form processForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, ropt, nil, err
		}
		return req, ropt, nil, badRequestf("invalid form: %v", err)
	}
	mf, err := c.MultipartForm()
	if err != nil {
		return req, ropt, nil, badRequestf("expected multipart form: %v", err)
	}

	primaries := mf.File["original_csv"]
	if len(primaries) == 0 || primaries[0].Filename == "" {
		return req, ropt, nil, badRequestf("original_csv is required")
	}
	if !allowedExt[strings.ToLower(filepath.Ext(primaries[0].Filename))] {
		return req, ropt, nil, badRequestf("original_csv: unsupported file type %q", primaries[0].Filename)
	}
	primary, err := readUpload(primaries[0])
	if err != nil {
		return req, ropt, nil, err
	}

	var warnings []pipeline.Warning
	var secondaries []pipeline.Input
	for _, fh := range mf.File["other_csvs"] {
		if fh.Filename == "" {
			continue
		}
		if !allowedExt[strings.ToLower(filepath.Ext(fh.Filename))] {
			warnings = append(warnings, pipeline.Warning{Input: fh.Filename, Message: "unsupported file type, skipped"})
			continue
		}
		in, err := readUpload(fh)
		if err != nil {
			return req, ropt, nil, err
		}
		secondaries = append(secondaries, in)
	}

	tol := s.cfg.ToleranceSec
	if form.Tolerance != "" {
		if tol, err = strconv.ParseFloat(form.Tolerance, 64); err != nil || !(tol >= 0 && tol <= config.MaxToleranceSec) {
			return req, ropt, nil, badRequestf("tolerance must be between 0 and %d seconds", config.MaxToleranceSec)
		}
	}
	ropt = render.Options{Title: strings.TrimSpace(form.Title), Y1Min: s.cfg.Y1Min, Y1Max: s.cfg.Y1Max, PlotlyJS: s.plotlyJS}
	if ropt.Title == "" {
		ropt.Title = s.cfg.DefaultTitle
	}
	if form.Y1Min != "" {
		if ropt.Y1Min, err = strconv.ParseFloat(form.Y1Min, 64); err != nil {
			return req, ropt, nil, badRequestf("y1_min: %v", err)
		}
	}
	if form.Y1Max != "" {
		if ropt.Y1Max, err = strconv.ParseFloat(form.Y1Max, 64); err != nil {
			return req, ropt, nil, badRequestf("y1_max: %v", err)
		}
	}
	if ropt.Y1Max < ropt.Y1Min {
		return req, ropt, nil, badRequestf("y1_max must not be below y1_min")
	}
	cutoff, err := pipeline.ParseCutoff(form.Cutoff)
	if err != nil {
		return req, ropt, nil, badRequestf("cutoff: %v", err)
	}

	req = pipeline.Request{
		Primary:     primary,
		Secondaries: secondaries,
		Tolerance:   pipeline.Tolerance(tol),
		Cutoff:      cutoff,
		Setpoint:    strings.TrimSpace(form.SetpointName),
		Ingest:      pipeline.IngestOptions(s.cfg),
	}
	return req, ropt, warnings, nil
}

func readUpload(fh *multipart.FileHeader) (pipeline.Input, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return pipeline.Input{Name: filepath.Base(fh.Filename), Data: data}, nil
}

func sanitizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}
