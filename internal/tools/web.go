package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"
)

// Tool name constants for the network tools registered with Genkit.
const (
	// WebSearchName is the Genkit tool name for SearXNG web search.
	WebSearchName = "web_search"
	// SummarizeURLName is the Genkit tool name for the URL preview tool.
	SummarizeURLName = "summarize_url"
	// ReadArticleName is the Genkit tool name for full article extraction.
	ReadArticleName = "read_article"
)

// Preview and extraction bounds.
const (
	defaultPreviewLength = 200
	maxPreviewLength     = 2000
	maxArticleRunes      = 8000
	maxSearchResults     = 10
)

// WebSearchInput defines input for the web_search tool.
type WebSearchInput struct {
	Query      string `json:"query" jsonschema_description:"The search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of results to return (default 5)"`
}

// SummarizeURLInput defines input for the summarize_url tool.
type SummarizeURLInput struct {
	URL       string `json:"url" jsonschema_description:"The http(s) URL to fetch and preview"`
	MaxLength int    `json:"max_length,omitempty" jsonschema_description:"Maximum preview length in characters (default 200)"`
}

// ReadArticleInput defines input for the read_article tool.
type ReadArticleInput struct {
	URL string `json:"url" jsonschema_description:"The http(s) URL of the article to extract"`
}

// searchResult is one entry in a SearXNG JSON response.
type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// NetConfig configures the network tools.
type NetConfig struct {
	SearchBaseURL    string        // SearXNG instance base URL; empty disables web_search
	MaxResults       int           // Default result count for web_search
	FetchTimeout     time.Duration // Per-request timeout for all fetches
	MaxResponseBytes int64         // Response body cap
	Parallelism      int           // Collector parallelism for page fetches
}

// Network holds dependencies for the network tool handlers.
type Network struct {
	cfg    NetConfig
	client *http.Client
	logger *slog.Logger
}

// NewNetwork creates a Network instance with bounded fetch behavior.
func NewNetwork(cfg NetConfig, logger *slog.Logger) (*Network, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = 5 * 1024 * 1024
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}

	return &Network{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		logger: logger,
	}, nil
}

// RegisterNetwork registers the network tools with Genkit.
// web_search is skipped when no search backend is configured.
func RegisterNetwork(g *genkit.Genkit, nt *Network) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if nt == nil {
		return nil, fmt.Errorf("Network is required")
	}

	out := []ai.Tool{
		genkit.DefineTool(g, SummarizeURLName,
			"Fetch a web page and return a short preview of its textual content. "+
				"Returns: page title and a truncated text preview. "+
				"Use this to check what a URL contains before quoting it. "+
				"Fetches are bounded by a timeout and a response size cap.",
			WithEvents(SummarizeURLName, nt.SummarizeURL)),
		genkit.DefineTool(g, ReadArticleName,
			"Extract the readable article text from a web page, stripped of navigation and ads. "+
				"Returns: title, byline and the article body text. "+
				"Use this when the user asks about the contents of a specific article.",
			WithEvents(ReadArticleName, nt.ReadArticle)),
	}

	if nt.cfg.SearchBaseURL != "" {
		out = append(out, genkit.DefineTool(g, WebSearchName,
			"Search the web for current information. "+
				"Returns: a list of results with title, URL and snippet. "+
				"Use this for anything after your knowledge cutoff or when the user asks for sources.",
			WithEvents(WebSearchName, nt.WebSearch)))
	}

	return out, nil
}

// WebSearch queries the configured SearXNG instance's JSON API.
func (nt *Network) WebSearch(ctx *ai.ToolContext, input WebSearchInput) (Result, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return errorResult(ErrCodeValidation, "query is required"), nil
	}

	limit := input.MaxResults
	if limit <= 0 {
		limit = nt.cfg.MaxResults
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json",
		strings.TrimRight(nt.cfg.SearchBaseURL, "/"), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet, searchURL, nil)
	if err != nil {
		return errorResult(ErrCodeSearch, fmt.Sprintf("building search request: %v", err)), nil
	}

	resp, err := nt.client.Do(req)
	if err != nil {
		if ctx.Context.Err() != nil {
			return Result{}, fmt.Errorf("search canceled: %w", ctx.Context.Err())
		}
		nt.logger.Warn("web search failed", "query", query, "error", err)
		return errorResult(ErrCodeSearch, fmt.Sprintf("search backend unreachable: %v", err)), nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errorResult(ErrCodeSearch, fmt.Sprintf("search backend returned status %d", resp.StatusCode)), nil
	}

	var parsed searchResponse
	body := io.LimitReader(resp.Body, nt.cfg.MaxResponseBytes)
	if err := json.NewDecoder(body).Decode(&parsed); err != nil {
		return errorResult(ErrCodeSearch, fmt.Sprintf("decoding search response: %v", err)), nil
	}

	results := parsed.Results
	if len(results) > limit {
		results = results[:limit]
	}
	nt.logger.Debug("web search completed", "query", query, "results", len(results))

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Found %d results for %q", len(results), query),
		Data: map[string]any{
			"query":   query,
			"results": results,
		},
	}, nil
}

// SummarizeURL fetches a page and returns a truncated plain-text preview.
func (nt *Network) SummarizeURL(ctx *ai.ToolContext, input SummarizeURLInput) (Result, error) {
	target, errRes := nt.validateURL(input.URL)
	if errRes != nil {
		return *errRes, nil
	}

	maxLength := input.MaxLength
	if maxLength <= 0 {
		maxLength = defaultPreviewLength
	}
	if maxLength > maxPreviewLength {
		maxLength = maxPreviewLength
	}

	body, contentType, err := nt.fetch(target)
	if err != nil {
		if ctx.Context.Err() != nil {
			return Result{}, fmt.Errorf("fetch canceled: %w", ctx.Context.Err())
		}
		nt.logger.Warn("url fetch failed", "url", target, "error", err)
		return errorResult(ErrCodeFetch, fmt.Sprintf("fetching %s: %v", target, err)), nil
	}

	if !strings.Contains(contentType, "html") && !strings.Contains(contentType, "text") {
		return errorResult(ErrCodeFetch, fmt.Sprintf("unsupported content type %q", contentType)), nil
	}

	title, text, err := extractText(body)
	if err != nil {
		return errorResult(ErrCodeFetch, fmt.Sprintf("parsing %s: %v", target, err)), nil
	}

	preview := truncateRunes(text, maxLength)
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Preview of %s", target),
		Data: map[string]any{
			"url":          target,
			"title":        title,
			"preview":      preview,
			"total_length": len(text),
		},
	}, nil
}

// ReadArticle extracts the readable article body from a page.
func (nt *Network) ReadArticle(ctx *ai.ToolContext, input ReadArticleInput) (Result, error) {
	target, errRes := nt.validateURL(input.URL)
	if errRes != nil {
		return *errRes, nil
	}

	article, err := readability.FromURL(target, nt.cfg.FetchTimeout)
	if err != nil {
		if ctx.Context.Err() != nil {
			return Result{}, fmt.Errorf("article fetch canceled: %w", ctx.Context.Err())
		}
		nt.logger.Warn("article extraction failed", "url", target, "error", err)
		return errorResult(ErrCodeFetch, fmt.Sprintf("extracting article from %s: %v", target, err)), nil
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return errorResult(ErrCodeFetch, "page contains no readable article text"), nil
	}

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Article: %s", article.Title),
		Data: map[string]any{
			"url":    target,
			"title":  article.Title,
			"byline": article.Byline,
			"text":   truncateRunes(text, maxArticleRunes),
		},
	}, nil
}

// validateURL accepts only absolute http(s) URLs.
// Returns the normalized URL or a ready-to-return error Result.
func (nt *Network) validateURL(raw string) (string, *Result) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		r := errorResult(ErrCodeValidation, "url is required")
		return "", &r
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		r := errorResult(ErrCodeValidation, fmt.Sprintf("%q is not an absolute http(s) URL", raw))
		return "", &r
	}
	return u.String(), nil
}

// fetch retrieves a page with the configured timeout and size cap.
// A fresh collector per call keeps visits stateless.
func (nt *Network) fetch(target string) ([]byte, string, error) {
	c := colly.NewCollector(
		colly.MaxBodySize(int(nt.cfg.MaxResponseBytes)),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(nt.cfg.FetchTimeout)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: nt.cfg.Parallelism}); err != nil {
		return nil, "", fmt.Errorf("configuring fetch limits: %w", err)
	}

	var (
		body        []byte
		contentType string
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})

	if err := c.Visit(target); err != nil {
		return nil, "", err
	}
	c.Wait()

	if body == nil {
		return nil, "", fmt.Errorf("empty response")
	}
	return body, contentType, nil
}

// extractText returns the page title and the visible text of an HTML body.
func extractText(body []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w", err)
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parsing html tree: %w", err)
	}

	var sb strings.Builder
	collectVisibleText(root, &sb)
	text = collapseWhitespace(sb.String())
	return title, text, nil
}

// collectVisibleText walks the HTML tree accumulating text nodes,
// skipping script, style and other non-content subtrees.
func collectVisibleText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template", "head":
			return
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectVisibleText(c, sb)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
