package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/store"
)

// GitHubOptions configures the GitHub contents API publisher.
type GitHubOptions struct {
	Repo     string // owner/name
	Branch   string
	Dir      string
	Token    string
	SiteBase string // when set, links point at the static site instead of github.com
	Dated    bool

	BaseURL     string // defaults to https://api.github.com
	HTTPClient  *http.Client
	RetryMax    int
	RetryBase   time.Duration
	RetryMaxGap time.Duration
}

// GitHub creates or updates files through the repository contents API.
type GitHub struct {
	opt GitHubOptions
}

// APIError is a non-2xx GitHub response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github api error: status=%d", e.StatusCode)
}

// NewGitHub fills defaults for unset options.
func NewGitHub(opt GitHubOptions) *GitHub {
	if opt.Branch == "" {
		opt.Branch = "main"
	}
	if opt.BaseURL == "" {
		opt.BaseURL = "https://api.github.com"
	}
	if opt.HTTPClient == nil {
		opt.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opt.RetryMax <= 0 {
		opt.RetryMax = 3
	}
	if opt.RetryBase <= 0 {
		opt.RetryBase = 500 * time.Millisecond
	}
	if opt.RetryMaxGap <= 0 {
		opt.RetryMaxGap = 4 * time.Second
	}
	opt.BaseURL = strings.TrimRight(opt.BaseURL, "/")
	return &GitHub{opt: opt}
}

func (g *GitHub) Name() string { return "github" }

// Publish uploads each object, updating it in place when it already exists.
func (g *GitHub) Publish(ctx context.Context, objs []Object, at time.Time) ([]store.Link, error) {
	if g.opt.Token == "" {
		return nil, errors.New("github token is missing")
	}
	links := make([]store.Link, 0, len(objs))
	for _, o := range objs {
		p := ObjectPath(g.opt.Dir, g.opt.Dated, at, o.Name)
		htmlURL, err := g.put(ctx, p, o.Data)
		if err != nil {
			return links, fmt.Errorf("%s: %w", p, err)
		}
		link := store.Link{Target: g.Name(), Name: o.Name, URL: htmlURL}
		if g.opt.SiteBase != "" {
			link.URL = strings.TrimRight(g.opt.SiteBase, "/") + "/" + escapePath(p)
		}
		links = append(links, link)
	}
	return links, nil
}

func (g *GitHub) contentsURL(p string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", g.opt.BaseURL, g.opt.Repo, escapePath(p))
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// sha returns the blob sha of an existing file, or "" when it does not exist.
func (g *GitHub) sha(ctx context.Context, p string) (string, error) {
	status, body, err := g.do(ctx, http.MethodGet, g.contentsURL(p)+"?ref="+url.QueryEscape(g.opt.Branch), nil)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusNotFound:
		return "", nil
	case status < 200 || status >= 300:
		return "", apiError(status, body)
	}
	var out struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode contents: %w", err)
	}
	return out.SHA, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

func (g *GitHub) put(ctx context.Context, p string, data []byte) (string, error) {
	sha, err := g.sha(ctx, p)
	if err != nil {
		return "", err
	}
	msg := "Add " + p
	if sha != "" {
		msg = "Update " + p
	}
	payload, err := json.Marshal(putRequest{
		Message: msg,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  g.opt.Branch,
		SHA:     sha,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	status, body, err := g.do(ctx, http.MethodPut, g.contentsURL(p), payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", apiError(status, body)
	}
	var out struct {
		Content struct {
			HTMLURL string `json:"html_url"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Content.HTMLURL, nil
}

// do sends one request, retrying network timeouts, 429 and 5xx responses with
// exponential backoff.
func (g *GitHub) do(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	backoff := g.opt.RetryBase
	var lastErr error
	for attempt := 1; attempt <= g.opt.RetryMax; attempt++ {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
		if err != nil {
			return 0, nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+g.opt.Token)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := g.opt.HTTPClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < g.opt.RetryMax {
				lastErr = err
				backoff = g.sleep(ctx, backoff)
				continue
			}
			return 0, nil, fmt.Errorf("http request: %w", err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("read response: %w", err)
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < g.opt.RetryMax {
			lastErr = apiError(resp.StatusCode, body)
			backoff = g.sleep(ctx, backoff)
			continue
		}
		return resp.StatusCode, body, nil
	}
	return 0, nil, lastErr
}

func (g *GitHub) sleep(ctx context.Context, d time.Duration) time.Duration {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	d *= 2
	if d > g.opt.RetryMaxGap {
		d = g.opt.RetryMaxGap
	}
	return d
}

func apiError(status int, body []byte) error {
	var raw struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &raw)
	return &APIError{StatusCode: status, Message: raw.Message}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}
