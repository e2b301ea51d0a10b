package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creditmate/bankcrawler/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestExtractWebpage(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><script>var x=1;</script><style>p{}</style></head>
<body><h1>Schedule of Charges</h1><p>Annual Fee: $95</p></body></html>`))
	})

	e := New(Config{})
	raw, text, err := e.Extract(context.Background(), server.URL, models.ContentTypeWebpage)
	require.NoError(t, err)
	assert.Contains(t, raw, "<html>")
	assert.Contains(t, text, "Schedule of Charges")
	assert.Contains(t, text, "Annual Fee: $95")
	assert.NotContains(t, text, "var x=1")
}

func TestExtractCSV(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Card,Annual Fee\nPlatinum,95\nGold,50\n"))
	})

	e := New(Config{})
	_, text, err := e.Extract(context.Background(), server.URL, models.ContentTypeCSV)
	require.NoError(t, err)
	assert.Contains(t, text, "Platinum")
	assert.Contains(t, text, "95")
}

func TestExtractCSVMalformedDegradesToEmpty(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Card,Annual Fee\n\"Platinum,95\n"))
	})

	e := New(Config{})
	_, text, err := e.Extract(context.Background(), server.URL, models.ContentTypeCSV)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractNotFoundIsExtractionError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	e := New(Config{})
	_, _, err := e.Extract(context.Background(), server.URL, models.ContentTypeWebpage)
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, http.StatusNotFound, extErr.StatusCode)
}

func TestExtractServerErrorIsNetworkError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	e := New(Config{})
	_, _, err := e.Extract(context.Background(), server.URL, models.ContentTypeWebpage)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestExtractConnectionRefusedIsNetworkError(t *testing.T) {
	e := New(Config{})
	_, _, err := e.Extract(context.Background(), "http://127.0.0.1:1/fees", models.ContentTypeWebpage)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestExtractSniffsUnknownContentType(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Fee Schedule</body></html>"))
	})

	e := New(Config{})
	_, text, err := e.Extract(context.Background(), server.URL, models.ContentType("unknown"))
	require.NoError(t, err)
	assert.Contains(t, text, "Fee Schedule")
}

func TestExtractUndetectableIsFileFormatError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x00, 0x01, 0x02, 0x03})
	})

	e := New(Config{})
	_, _, err := e.Extract(context.Background(), server.URL, models.ContentType("unknown"))
	var fmtErr *FileFormatError
	require.ErrorAs(t, err, &fmtErr)
}

func TestSniffContentType(t *testing.T) {
	pdf, ok := sniffContentType([]byte("%PDF-1.7 rest of file"))
	assert.True(t, ok)
	assert.Equal(t, models.ContentTypePDF, pdf)

	html, ok := sniffContentType([]byte("<!DOCTYPE html><html></html>"))
	assert.True(t, ok)
	assert.Equal(t, models.ContentTypeWebpage, html)

	csv, ok := sniffContentType([]byte("a,b,c\n1,2,3\n4,5,6\n"))
	assert.True(t, ok)
	assert.Equal(t, models.ContentTypeCSV, csv)

	_, ok = sniffContentType([]byte{0x00, 0x01})
	assert.False(t, ok)
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  Platinum Card   \n\n\n  Annual Fee:  $95  \n"
	out := collapseWhitespace(in)
	assert.Equal(t, "Platinum Card\nAnnual Fee:\n$95", out)
}
