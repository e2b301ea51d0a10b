package finder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/creditmate/bankcrawler/internal/llm"
	"github.com/creditmate/bankcrawler/internal/logging"
	"github.com/creditmate/bankcrawler/internal/models"
)

const (
	fetchTimeout     = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxLinks         = 50
	maxPromptLinks   = 20
)

// Result is one URL discovery outcome.
type Result struct {
	Found        bool   `json:"found"`
	URL          string `json:"url,omitempty"`
	Method       string `json:"method"`
	ContentType  string `json:"content_type,omitempty"`
	ProviderUsed string `json:"provider_used,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Orchestrator is the LLM surface the finder needs.
type Orchestrator interface {
	IsAnyProviderAvailable() bool
	GenerateResponse(ctx context.Context, req llm.Request) (*llm.Result, error)
}

// Finder locates schedule-of-charges documents on bank websites.
type Finder struct {
	orch       Orchestrator
	httpClient *http.Client
	userAgent  string
}

func New(orch Orchestrator) *Finder {
	return &Finder{
		orch:       orch,
		httpClient: &http.Client{Timeout: fetchTimeout},
		userAgent:  defaultUserAgent,
	}
}

type pageLink struct {
	URL  string
	Text string
}

type pageContent struct {
	links           []pageLink
	containsCharges bool
}

var chargeKeywords = []string{
	"schedule of charges", "fee schedule", "pricing", "rates and fees",
	"charges", "fees", "tariff", "service charges", "cost",
}

var chargePatterns = []*regexp.Regexp{
	regexp.MustCompile(`schedule.*charge`),
	regexp.MustCompile(`fee.*schedule`),
	regexp.MustCompile(`charges.*fee`),
	regexp.MustCompile(`pricing`),
	regexp.MustCompile(`tariff`),
	regexp.MustCompile(`service.*charge`),
}

// FindScheduleChargeURL analyzes a bank page and returns the most likely
// fee-document URL. Network failures come back as a result, never an error.
func (f *Finder) FindScheduleChargeURL(ctx context.Context, baseURL string) Result {
	logging.Infof("[finder] schedule charge URL discovery for %s", baseURL)

	if f.orch == nil || !f.orch.IsAnyProviderAvailable() {
		logging.Warnf("[finder] no LLM providers available, using pattern fallback")
		return f.patternSearch(ctx, baseURL)
	}

	page, err := f.fetchPage(ctx, baseURL)
	if err != nil {
		logging.Errorf("[finder] fetch %s: %v", baseURL, err)
		return Result{Found: false, Method: "error", Error: err.Error()}
	}
	return f.analyzeWithLLM(ctx, baseURL, page)
}

func (f *Finder) fetchPage(ctx context.Context, pageURL string) (*pageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webpage: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webpage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("failed to fetch webpage: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webpage: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse webpage: %w", err)
	}

	base, _ := url.Parse(pageURL)
	var links []pageLink
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		text := strings.TrimSpace(sel.Text())
		if href == "" || text == "" {
			return true
		}
		full := href
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				full = base.ResolveReference(ref).String()
			}
		}
		links = append(links, pageLink{URL: full, Text: text})
		return len(links) < maxLinks
	})

	doc.Find("script, style, nav, header, footer").Remove()
	pageText := strings.ToLower(doc.Text())
	contains := false
	for _, kw := range chargeKeywords {
		if strings.Contains(pageText, kw) {
			contains = true
			break
		}
	}
	return &pageContent{links: links, containsCharges: contains}, nil
}

func (f *Finder) analyzeWithLLM(ctx context.Context, baseURL string, page *pageContent) Result {
	prompt := buildURLFindingPrompt(baseURL, page.links, page.containsCharges)
	resp, err := f.orch.GenerateResponse(ctx, llm.Request{
		Prompt:     prompt,
		MaxRetries: 1,
		Options:    llm.GenerateOptions{Temperature: 0.1, MaxTokens: 1000},
	})
	if err != nil {
		logging.Errorf("[finder] LLM analysis failed: %v", err)
		return f.patternSearch(ctx, baseURL)
	}

	result := parseLLMResponse(resp.Response)
	result.ProviderUsed = resp.Provider
	if result.Found && result.URL != "" {
		logging.Infof("[finder] URL found using %s: %s", resp.Provider, result.URL)
		return result
	}
	logging.Warnf("[finder] no URL found by %s, trying fallback", resp.Provider)
	return f.patternSearch(ctx, baseURL)
}

var urlRe = regexp.MustCompile(`https?://\S+`)

// parseLLMResponse expects JSON but salvages a bare URL from prose replies.
func parseLLMResponse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var result Result
		if err := json.Unmarshal([]byte(trimmed), &result); err == nil {
			return result
		}
		return Result{Found: false, Method: "llm_analysis", Error: "Failed to parse LLM response"}
	}
	if found := urlRe.FindString(trimmed); found != "" {
		return Result{
			Found:       true,
			URL:         found,
			Method:      "llm_text_extraction",
			ContentType: contentTypeFor(found),
		}
	}
	return Result{Found: false, Method: "llm_analysis", Error: "No URL found in LLM response"}
}

func (f *Finder) patternSearch(ctx context.Context, baseURL string) Result {
	page, err := f.fetchPage(ctx, baseURL)
	if err != nil {
		return Result{Found: false, Method: "pattern_matching", Error: err.Error()}
	}
	for _, link := range page.links {
		text := strings.ToLower(link.Text)
		lowURL := strings.ToLower(link.URL)
		for _, pat := range chargePatterns {
			if pat.MatchString(text) || pat.MatchString(lowURL) {
				return Result{
					Found:       true,
					URL:         link.URL,
					Method:      "pattern_matching",
					ContentType: contentTypeFor(link.URL),
					Pattern:     pat.String(),
				}
			}
		}
	}
	return Result{Found: false, Method: "pattern_matching", Error: "No matching patterns found"}
}

func contentTypeFor(u string) string {
	if strings.HasSuffix(strings.ToLower(u), ".pdf") {
		return "PDF"
	}
	return "WEBPAGE"
}

// MapContentType turns a discovery content type into the source enum.
func MapContentType(contentType string) models.ContentType {
	if strings.EqualFold(contentType, "PDF") {
		return models.ContentTypePDF
	}
	return models.ContentTypeWebpage
}

func buildURLFindingPrompt(baseURL string, links []pageLink, containsCharges bool) string {
	var sb strings.Builder
	for i, link := range links {
		if i >= maxPromptLinks {
			break
		}
		fmt.Fprintf(&sb, "- %s: %s\n", link.Text, link.URL)
	}
	return fmt.Sprintf(`You are a web analysis AI. Find the schedule of charges or fee document URL from this bank website.

TASK: Analyze the links below and identify the most likely URL for schedule of charges, fee schedule, or pricing document.

WEBSITE: %s
PAGE CONTAINS CHARGE INFO: %t

LINKS FOUND:
%s
INSTRUCTIONS:
1. Look for links containing terms like: "schedule of charges", "fee schedule", "pricing", "rates and fees", "tariff", "charges", "fees"
2. Prefer PDF documents over web pages when available
3. Prefer official/formal fee documents over general information pages

RESPONSE FORMAT (JSON only):
{
    "found": true/false,
    "url": "full_url_if_found",
    "method": "llm_analysis",
    "content_type": "PDF" or "WEBPAGE"
}

If no suitable URL found, return: {"found": false, "method": "llm_analysis", "error": "No schedule of charges URL found"}`,
		baseURL, containsCharges, sb.String())
}
