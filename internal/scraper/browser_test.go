package scraper

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IliaW/granola-scraper-bot/config"
	"github.com/IliaW/granola-scraper-bot/internal/model"
)

const notePage = `<!doctype html>
<html><head><title>Granola</title></head>
<body>
<h1>Acme Corp Intro</h1>
<div class="ProseMirror">
  <div class="node-heading"><h3 class="viewSource_view-source-heading__sJegq">Next Steps</h3></div>
  <ul>
    <li><p class="viewSource_view-source-paragraph__SnPk6">Follow up with founders</p>
      <ul><li><p class="viewSource_view-source-paragraph__SnPk6">Send the deck</p></li></ul>
    </li>
    <li><p class="viewSource_view-source-paragraph__SnPk6">Download the app</p></li>
    <li><p class="viewSource_view-source-paragraph__SnPk6">Follow up with founders</p></li>
  </ul>
</div>
</body></html>`

const loginPage = `<!doctype html>
<html><body><h1>Login to access this note</h1></body></html>`

const blankPage = `<!doctype html>
<html><body><div id="root">Loading</div></body></html>`

const bareListPage = `<!doctype html>
<html><body>
<h1>Acme Corp Intro</h1>
<ul>
  <li>Strong founding team</li>
  <li>Raising a seed round<ul><li>Lead investor pending</li></ul></li>
  <li>Sign in</li>
</ul>
</body></html>`

const emptyNotePage = `<!doctype html>
<html><body><h1>Acme Corp Intro</h1><div class="ProseMirror"><p>ok</p></div></body></html>`

// chromePath returns the first Chrome binary found, the test is skipped without one.
func chromePath(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable",
	} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no chrome binary found")
	return ""
}

func newTestScraper(t *testing.T, headingTimeout time.Duration) *BrowserScraper {
	return NewBrowserScraper(&config.ScraperConfig{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		HeadingTimeout: headingTimeout,
		SettleDelay:    50 * time.Millisecond,
		TitleTimeout:   5 * time.Second,
		ExecPath:       chromePath(t),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/d/abc123"
}

func scrape(t *testing.T, s *BrowserScraper, url string) model.ScrapeResult {
	t.Helper()
	return s.Scrape(context.Background(), model.ScrapeRequest{URL: url, Timeout: 20 * time.Second})
}

func TestScrape_PrimaryExtraction(t *testing.T) {
	s := newTestScraper(t, 5*time.Second)

	result := scrape(t, s, serve(t, notePage))
	require.True(t, result.OK(), "%+v", result.Failure)
	assert.Equal(t, "Acme Corp Intro", result.Success.Title)
	assert.Equal(t, []model.ContentLine{
		{Kind: model.Heading, Text: "Next Steps"},
		{Kind: model.Item, Text: "Follow up with founders"},
		{Kind: model.SubItem, Text: "Send the deck"},
	}, result.Success.Lines)
}

func TestScrape_AccessDenied(t *testing.T) {
	s := newTestScraper(t, 5*time.Second)

	result := scrape(t, s, serve(t, loginPage))
	require.NotNil(t, result.Failure)
	assert.Nil(t, result.Success)
	assert.Equal(t, model.AccessDenied, result.Failure.Reason)
	assert.Equal(t, privateNoteMessage, result.Failure.Message)
}

func TestScrape_HeadingNeverAppears(t *testing.T) {
	s := newTestScraper(t, 500*time.Millisecond)

	result := scrape(t, s, serve(t, blankPage))
	require.NotNil(t, result.Failure)
	assert.Equal(t, model.Timeout, result.Failure.Reason)
}

func TestScrape_FallbackWithoutEditor(t *testing.T) {
	s := newTestScraper(t, 5*time.Second)

	result := scrape(t, s, serve(t, bareListPage))
	require.True(t, result.OK(), "%+v", result.Failure)
	assert.Equal(t, []model.ContentLine{
		{Kind: model.Item, Text: "Strong founding team"},
		{Kind: model.Item, Text: "Raising a seed round"},
		{Kind: model.Item, Text: "Lead investor pending"},
	}, result.Success.Lines)
}

func TestScrape_EmptyContent(t *testing.T) {
	s := newTestScraper(t, 5*time.Second)

	result := scrape(t, s, serve(t, emptyNotePage))
	require.NotNil(t, result.Failure)
	assert.Equal(t, model.EmptyContent, result.Failure.Reason)
	assert.Equal(t, emptyMessage, result.Failure.Message)
}

func TestScrape_PanicBecomesInternalError(t *testing.T) {
	// A nil config panics before Chrome is started.
	s := NewBrowserScraper(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	result := s.Scrape(context.Background(), model.ScrapeRequest{URL: "https://notes.granola.ai/d/abc", Timeout: time.Second})
	require.NotNil(t, result.Failure)
	assert.Equal(t, model.InternalError, result.Failure.Reason)
	assert.Contains(t, result.Failure.Message, "Scraping error:")
}
