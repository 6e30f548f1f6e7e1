package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

const (
	duckDuckGoURL     = "https://html.duckduckgo.com/html/"
	maxScrapeBodySize = 1 << 20
	browserUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DefaultScrapeTimeout bounds one results-page request, body included.
	DefaultScrapeTimeout = 20 * time.Second
)

// DuckDuckGo scrapes the no-JavaScript HTML results page. No API key is needed.
type DuckDuckGo struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewDuckDuckGo returns the scrape backend. baseURL overrides the results page (tests).
func NewDuckDuckGo(client *http.Client, baseURL string) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: DefaultScrapeTimeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = duckDuckGoURL
	}
	return &DuckDuckGo{client: client, baseURL: baseURL, timeout: DefaultScrapeTimeout}
}

// WithTimeout replaces the per-request deadline. It applies to supplied clients too.
func (d *DuckDuckGo) WithTimeout(timeout time.Duration) *DuckDuckGo {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

func (d *DuckDuckGo) Name() string { return "DuckDuckGo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	u := d.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: build request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("duckduckgo: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBodySize))
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: read body")
	}
	return parseDuckDuckGo(string(body), maxResults)
}

func parseDuckDuckGo(page string, maxResults int) ([]Hit, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, eris.Wrap(err, "duckduckgo: parse html")
	}

	var hits []Hit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(hits) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if h := duckDuckGoHit(n); h.URL != "" && h.Title != "" {
					hits = append(hits, h)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hits, nil
}

func duckDuckGoHit(n *html.Node) Hit {
	var h Hit
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				h.URL = attr(n, "href")
				h.Title = text(n)
			case strings.Contains(class, "result__snippet"):
				h.Snippet = text(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	h.URL = unwrapRedirect(h.URL)
	return h
}

// unwrapRedirect resolves DuckDuckGo's "/l/?uddg=<target>" click-through links.
func unwrapRedirect(raw string) string {
	if !strings.Contains(raw, "duckduckgo.com/l/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
