package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
  <title>  Fallback   title </title>
  <meta name="description" content="Plain description">
  <meta property="og:title" content="Durable Workflows in Practice">
  <meta property="og:site_name" content="Example Engineering">
  <meta name="author" content="Sam Rivera">
  <meta name="keywords" content="workflows, durability, Workflows, , checkpoints">
  <meta property="article:published_time" content="2024-03-05T10:30:00+01:00">
  <script>var ignored = "<h1>not a heading</h1>";</script>
</head>
<body>
  <nav><h2>Site menu</h2></nav>
  <h1>Durable <em>Workflows</em></h1>
  <p>Short.</p>
  <p>Long-running jobs need checkpoints so that they can pause and resume safely.</p>
  <h2>Checkpoints</h2>
  <p>Each step persists its output before the next one starts, which makes resumption cheap.</p>
  <h3>Resumption</h3>
  <footer><p>Copyright notice that is long enough to count as a paragraph otherwise.</p></footer>
</body>
</html>`

func TestParseMetadata(t *testing.T) {
	md, err := ParseMetadata("https://example.com/post", []byte(articleHTML))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/post", md.URL)
	assert.Equal(t, "Durable Workflows in Practice", md.Title)
	assert.Equal(t, "Plain description", md.Description)
	assert.Equal(t, "Sam Rivera", md.Author)
	assert.Equal(t, "Example Engineering", md.SiteName)
	assert.Equal(t, []string{"workflows", "durability", "checkpoints"}, md.Keywords)
	assert.Equal(t, []string{"Durable Workflows", "Checkpoints", "Resumption"}, md.Headings)

	require.NotNil(t, md.PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC), *md.PublishedAt)

	assert.Contains(t, md.Excerpt, "Long-running jobs need checkpoints")
	assert.Contains(t, md.Excerpt, "Each step persists its output")
	assert.NotContains(t, md.Excerpt, "Short.")
	assert.NotContains(t, md.Excerpt, "Copyright")
}

func TestParseMetadata_Fallbacks(t *testing.T) {
	t.Run("title element when no og:title", func(t *testing.T) {
		md, err := ParseMetadata("https://example.com", []byte(`<html><head><title> Hello
		World </title></head></html>`))
		require.NoError(t, err)
		assert.Equal(t, "Hello World", md.Title)
		assert.Nil(t, md.PublishedAt)
	})

	t.Run("first heading when no title at all", func(t *testing.T) {
		md, err := ParseMetadata("https://example.com", []byte(`<body><h2>Only heading</h2></body>`))
		require.NoError(t, err)
		assert.Equal(t, "Only heading", md.Title)
	})

	t.Run("date-only published time", func(t *testing.T) {
		md, err := ParseMetadata("https://example.com", []byte(`<meta property="article:published_time" content="2023-11-02">`))
		require.NoError(t, err)
		require.NotNil(t, md.PublishedAt)
		assert.Equal(t, 2023, md.PublishedAt.Year())
	})

	t.Run("unparseable published time is ignored", func(t *testing.T) {
		md, err := ParseMetadata("https://example.com", []byte(`<meta property="article:published_time" content="last tuesday">`))
		require.NoError(t, err)
		assert.Nil(t, md.PublishedAt)
	})
}

func newTestExtractor(cacheTTL time.Duration) *Extractor {
	return New(Config{
		HTTP:     HTTPClientConfig{RateLimit: 100, BurstSize: 10, RetryDelay: time.Millisecond},
		CacheTTL: cacheTTL,
	}, zerolog.Nop())
}

func TestExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	md, err := newTestExtractor(0).Extract(context.Background(), server.URL+"/post#section")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/post", md.URL)
	assert.Equal(t, "Durable Workflows in Practice", md.Title)
}

func TestExtractor_Cache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	e := newTestExtractor(time.Minute)

	first, err := e.Extract(context.Background(), server.URL)
	require.NoError(t, err)
	first.Keywords[0] = "mutated"

	second, err := e.Extract(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, e.CacheLen())
	assert.Equal(t, "workflows", second.Keywords[0], "cached values are isolated from callers")
}

func TestExtractor_Errors(t *testing.T) {
	t.Run("rejects non-http schemes", func(t *testing.T) {
		_, err := newTestExtractor(0).Extract(context.Background(), "ftp://example.com/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheme")
	})

	t.Run("rejects non-html content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		}))
		defer server.Close()

		_, err := newTestExtractor(0).Extract(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedContent)
	})

	t.Run("propagates status errors and does not cache them", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer server.Close()

		e := newTestExtractor(time.Minute)
		_, err := e.Extract(context.Background(), server.URL)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Equal(t, 0, e.CacheLen())
	})
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML("text/html"))
	assert.True(t, isHTML("TEXT/HTML; charset=UTF-8"))
	assert.True(t, isHTML("application/xhtml+xml"))
	assert.True(t, isHTML(""))
	assert.False(t, isHTML("application/json"))
	assert.False(t, isHTML(";;;"))
}
