package builtin

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TSGCFO/langchain-agent/tool"
)

// DefaultMaxChars caps the text returned by fetch_url.
const DefaultMaxChars = 8000

// FetchInput is the argument shape of the fetch_url tool.
type FetchInput struct {
	URL      string `json:"url" jsonschema:"description=Absolute http(s) URL to fetch"`
	Selector string `json:"selector,omitempty" jsonschema:"description=Optional CSS selector limiting the extracted text"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"description=Maximum characters of text to return"`
}

// FetchResult is returned by fetch_url.
type FetchResult struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// NewFetchURL returns the fetch_url tool. client may be nil.
func NewFetchURL(client *http.Client) tool.Tool {
	if client == nil {
		client = http.DefaultClient
	}
	return tool.NewFunctionToolFromStruct("fetch_url",
		"Downloads an HTML page and returns its title and readable text.",
		FetchInput{},
		func(ctx context.Context, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return nil, tool.NewToolError("fetch_url", "url must start with http:// or https://", tool.CodeValidation)
			}
			selector, _ := args["selector"].(string)
			maxChars := DefaultMaxChars
			if v, err := toFloat(args["max_chars"]); err == nil && v > 0 {
				maxChars = int(v)
			}
			return fetch(ctx, client, url, selector, maxChars)
		})
}

func fetch(ctx context.Context, client *http.Client, url, selector string, maxChars int) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d %s", url, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	doc.Find("script, style, noscript").Remove()

	scope := doc.Find("body")
	if selector != "" {
		scope = doc.Find(selector)
	}
	text := strings.Join(strings.Fields(scope.Text()), " ")

	res := &FetchResult{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars])
		res.Truncated = true
	}
	res.Text = text
	return res, nil
}
