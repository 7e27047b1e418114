package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jllopis/newsdesk/pkg/errors"
	"github.com/jllopis/newsdesk/pkg/resilience"
)

// Default search endpoints.
const (
	DefaultSerperURL     = "https://google.serper.dev/search"
	DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchConfig configures SearchTool.
type SearchConfig struct {
	SerperAPIKey  string
	SerperURL     string
	DuckDuckGoURL string
	MaxResults    int
	Timeout       time.Duration
	Client        *http.Client
}

// SearchTool searches the web with Serper and falls back to DuckDuckGo's
// HTML endpoint when Serper has no key, fails, or its breaker is open.
type SearchTool struct {
	cfg     SearchConfig
	client  *http.Client
	breaker *resilience.Breaker
}

// NewSearchTool creates a search tool.
func NewSearchTool(cfg SearchConfig) *SearchTool {
	if cfg.SerperURL == "" {
		cfg.SerperURL = DefaultSerperURL
	}
	if cfg.DuckDuckGoURL == "" {
		cfg.DuckDuckGoURL = DefaultDuckDuckGoURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SearchTool{
		cfg:     cfg,
		client:  client,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{Name: "serper", FailureThreshold: 3, Cooldown: 2 * time.Minute}),
	}
}

func (t *SearchTool) Name() string { return "search" }

func (t *SearchTool) Description() string {
	return "Search the internet for current information. Returns titles, links and snippets."
}

// InputSchema implements core.SchemaTool.
func (t *SearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The search query"},
		},
		"required": []string{"query"},
	}
}

// Call runs a search and returns the hits as numbered text.
func (t *SearchTool) Call(ctx context.Context, input any) (any, error) {
	query, err := inputString(input, "query", "search_query", "q")
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure, "search needs a query", err)
	}
	results, err := t.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return formatResults(query, results), nil
}

// Search returns hits for query.
func (t *SearchTool) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return resilience.WithFallback(ctx,
		func(ctx context.Context) ([]SearchResult, error) {
			if t.cfg.SerperAPIKey == "" {
				return nil, fmt.Errorf("serper api key not configured")
			}
			var out []SearchResult
			err := t.breaker.Call(func() error {
				var err error
				out, err = t.serper(ctx, query)
				return err
			})
			return out, err
		},
		func(ctx context.Context, _ error) ([]SearchResult, error) {
			return t.duckduckgo(ctx, query)
		},
	)
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	News []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"news"`
}

func (t *SearchTool) serper(ctx context.Context, query string) ([]SearchResult, error) {
	body, _ := json.Marshal(map[string]any{"q": query, "num": t.cfg.MaxResults})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.SerperURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", t.cfg.SerperAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var decoded serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode serper response: %w", err)
	}
	var out []SearchResult
	for _, r := range decoded.News {
		out = append(out, SearchResult{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	for _, r := range decoded.Organic {
		out = append(out, SearchResult{Title: r.Title, Link: r.Link, Snippet: r.Snippet})
	}
	if len(out) > t.cfg.MaxResults {
		out = out[:t.cfg.MaxResults]
	}
	return out, nil
}

func (t *SearchTool) duckduckgo(ctx context.Context, query string) ([]SearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.DuckDuckGoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "newsdesk/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}
	results, err := parseDuckDuckGo(io.LimitReader(resp.Body, 2<<20), t.cfg.MaxResults)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("duckduckgo returned no results for %q", query)
	}
	return results, nil
}

// parseDuckDuckGo reads result links (a.result__a) and snippets
// (.result__snippet) from the DuckDuckGo HTML page.
func parseDuckDuckGo(r io.Reader, max int) ([]SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}
	var out []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= max && max > 0 {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				out = append(out, SearchResult{Title: nodeText(n), Link: resultLink(attr(n, "href"))})
				return
			case hasClass(n, "result__snippet") && len(out) > 0 && out[len(out)-1].Snippet == "":
				out[len(out)-1].Snippet = nodeText(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// resultLink unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func resultLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func formatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return b.String()
}
