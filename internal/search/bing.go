package search

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
)

const bingURL = "https://www.bing.com/search"

// BingRendered loads Bing results in headless Chromium and reads the rendered result list.
// The browser starts lazily on the first query and is reused until Close.
type BingRendered struct {
	baseURL string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBingRendered returns the rendered backend. baseURL overrides the results page (tests).
func NewBingRendered(baseURL string) *BingRendered {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = bingURL
	}
	return &BingRendered{baseURL: baseURL}
}

func (b *BingRendered) Name() string { return "Bing" }

func (b *BingRendered) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{
		URL: b.baseURL + "?q=" + url.QueryEscape(query),
	})
	if err != nil {
		return nil, eris.Wrap(err, "bing: open page")
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return nil, eris.Wrap(err, "bing: wait load")
	}
	items, err := page.Elements("li.b_algo")
	if err != nil {
		return nil, eris.Wrap(err, "bing: find results")
	}

	var hits []Hit
	for _, item := range items {
		if len(hits) >= maxResults {
			break
		}
		links, err := item.Elements("h2 a")
		if err != nil || len(links) == 0 {
			continue
		}
		href, err := links[0].Attribute("href")
		if err != nil || href == nil || *href == "" {
			continue
		}
		title, _ := links[0].Text()
		var snippet string
		if ps, err := item.Elements("p"); err == nil && len(ps) > 0 {
			snippet, _ = ps[0].Text()
		}
		hits = append(hits, Hit{
			Title:   strings.TrimSpace(title),
			URL:     *href,
			Snippet: strings.TrimSpace(snippet),
		})
	}
	return hits, nil
}

func (b *BingRendered) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	l := launcher.New().Headless(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "bing: launch browser")
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, eris.Wrap(err, "bing: connect browser")
	}
	b.launcher = l
	b.browser = browser
	return browser, nil
}

// Close shuts the browser down if it was started.
func (b *BingRendered) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Cleanup()
	b.browser = nil
	b.launcher = nil
	if err != nil {
		return eris.Wrap(err, "bing: close browser")
	}
	return nil
}
