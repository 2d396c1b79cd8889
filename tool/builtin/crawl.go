package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/TSGCFO/langchain-agent/tool"
)

// DefaultMaxLinks caps the links returned by crawl_links.
const DefaultMaxLinks = 50

// CrawlInput is the argument shape of the crawl_links tool.
type CrawlInput struct {
	URL      string `json:"url" jsonschema:"description=Page to collect links from"`
	MaxLinks int    `json:"max_links,omitempty" jsonschema:"description=Maximum number of links to return"`
}

// Link is one anchor found on a page.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// NewCrawlLinks returns the crawl_links tool. It visits a single page and
// returns its distinct absolute links in document order. The fetch is bound to
// the call context as well as to timeout.
func NewCrawlLinks(timeout time.Duration) tool.Tool {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return tool.NewFunctionToolFromStruct("crawl_links",
		"Lists the hyperlinks found on a web page.",
		CrawlInput{},
		func(ctx context.Context, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			maxLinks := DefaultMaxLinks
			if v, err := toFloat(args["max_links"]); err == nil && v > 0 {
				maxLinks = int(v)
			}
			return crawl(ctx, url, maxLinks, timeout)
		})
}

func crawl(ctx context.Context, url string, maxLinks int, timeout time.Duration) ([]Link, error) {
	c := colly.NewCollector(colly.MaxDepth(1), colly.StdlibContext(ctx))
	c.SetRequestTimeout(timeout)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	links := make([]Link, 0, maxLinks)
	seen := map[string]bool{}
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(links) >= maxLinks {
			return
		}
		abs := e.Request.AbsoluteURL(e.Attr("href"))
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, Link{Text: e.Text, URL: abs})
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("crawl %s: status %d: %w", url, r.StatusCode, err)
	})

	err := c.Visit(url)
	c.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("crawl %s: %w", url, ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", url, err)
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return links, nil
}
