package extractor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxFetchBytes    = 32 << 20 // 32 MB

	// Below this many extracted characters a PDF is assumed to be image-based
	// and goes through the OCR fallback.
	minPDFTextLen = 50
)

// Config controls optional overrides for the extractor.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	TesseractBin string
	PdftoppmBin  string
}

// Extractor fetches a URL and converts the bytes into plain text based on the
// declared or sniffed content type.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
	ocr        *ocrRunner
}

// New builds an extractor with sane defaults.
func New(cfg Config) *Extractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  agent,
		ocr:        newOCRRunner(cfg.TesseractBin, cfg.PdftoppmBin),
	}
}

// Extract fetches the URL and returns the raw body (lossy string) plus the
// extracted plain text. Network and format failures come back as typed errors;
// per-format extraction trouble degrades to empty text instead.
func (e *Extractor) Extract(ctx context.Context, url string, contentType models.ContentType) (string, string, error) {
	raw, err := e.fetch(ctx, url)
	if err != nil {
		return "", "", err
	}
	text, err := e.process(ctx, raw, contentType, url, false)
	if err != nil {
		return "", "", err
	}
	return string(raw), text, nil
}

func (e *Extractor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &NetworkError{URL: url, Err: errors.New(resp.Status)}
	}
	if resp.StatusCode >= 400 {
		return nil, &ExtractionError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, &NetworkError{URL: url, Err: err}
		}
		return nil, &ExtractionError{URL: url, Err: err}
	}
	return body, nil
}

// process dispatches on content type. sniffed guards against recursing more
// than once when the declared type was wrong.
func (e *Extractor) process(ctx context.Context, raw []byte, contentType models.ContentType, url string, sniffed bool) (string, error) {
	switch contentType {
	case models.ContentTypePDF:
		return e.extractPDF(ctx, raw, url), nil
	case models.ContentTypeWebpage:
		return extractWebpage(raw, url), nil
	case models.ContentTypeImage:
		return e.extractImage(ctx, raw, url), nil
	case models.ContentTypeCSV:
		return extractCSV(raw, url), nil
	default:
		if sniffed {
			return "", &FileFormatError{URL: url, DeclaredType: string(contentType)}
		}
		detected, ok := sniffContentType(raw)
		if !ok {
			return "", &FileFormatError{URL: url, DeclaredType: string(contentType)}
		}
		logging.Debugf("[extractor] sniffed %s as %s", url, detected)
		return e.process(ctx, raw, detected, url, true)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, raw []byte, url string) string {
	text, err := pdfText(raw)
	if err != nil {
		logging.Errorf("[extractor] pdf extraction failed for %s: %v", url, err)
		text = ""
	}
	if len(strings.TrimSpace(text)) >= minPDFTextLen {
		return strings.TrimSpace(text)
	}

	// Little or no embedded text: likely a scanned document.
	ocrText, err := e.ocr.pdf(ctx, raw)
	if err != nil {
		logging.Errorf("[extractor] pdf OCR fallback failed for %s: %v", url, err)
		return strings.TrimSpace(text)
	}
	if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(text)) {
		return strings.TrimSpace(ocrText)
	}
	return strings.TrimSpace(text)
}

func (e *Extractor) extractImage(ctx context.Context, raw []byte, url string) string {
	text, err := e.ocr.image(ctx, raw)
	if err != nil {
		logging.Errorf("[extractor] image OCR failed for %s: %v", url, err)
		return ""
	}
	return strings.TrimSpace(text)
}
