package tools

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/jllopis/newsdesk/pkg/errors"
)

// FetchConfig configures FetchTool.
type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int
	Client   *http.Client
}

// FetchTool downloads a web page and returns its content as markdown.
type FetchTool struct {
	client   *http.Client
	maxBytes int
	conv     *converter.Converter
}

// NewFetchTool creates a fetch tool.
func NewFetchTool(cfg FetchConfig) *FetchTool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20000
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &FetchTool{
		client:   client,
		maxBytes: cfg.MaxBytes,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Description() string {
	return "Read the content of a web page given its URL."
}

// InputSchema implements core.SchemaTool.
func (t *FetchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute http or https URL"},
		},
		"required": []string{"url"},
	}
}

// Call fetches the page named by the "url" argument.
func (t *FetchTool) Call(ctx context.Context, input any) (any, error) {
	raw, err := inputString(input, "url", "website_url")
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure, "fetch needs a url", err)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New(errors.CodeToolFailure, fmt.Sprintf("invalid url %q", raw), err)
	}
	content, err := t.fetch(ctx, u.String())
	if err != nil {
		return nil, errors.New(errors.CodeToolFailure, "fetch failed", err).
			WithContext("url", u.String()).
			WithRecoverable(true)
	}
	return content, nil
}

func (t *FetchTool) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "newsdesk/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	// Pages are read with headroom so markup does not eat the text budget.
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxBytes)*8))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var content string
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || mediaType == "":
		content, err = t.conv.ConvertString(string(body))
		if err != nil {
			return "", fmt.Errorf("convert html: %w", err)
		}
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		content = string(body)
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}

	content = strings.TrimSpace(content)
	if len(content) > t.maxBytes {
		content = truncate(content, t.maxBytes) + "\n[truncated]"
	}
	return content, nil
}
