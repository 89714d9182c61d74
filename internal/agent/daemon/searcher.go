package daemon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"orbit/internal/agent"
	"orbit/internal/logging"
)

// BrowserSearcher drives a headless Chrome through go-rod and scrapes
// the first few DuckDuckGo results for a query.
type BrowserSearcher struct {
	navTimeout time.Duration
	maxResults int

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserSearcher creates a searcher. The browser launches lazily on
// the first search and is reused afterwards.
func NewBrowserSearcher() *BrowserSearcher {
	return &BrowserSearcher{
		navTimeout: 15 * time.Second,
		maxResults: 3,
	}
}

func (s *BrowserSearcher) ensureBrowser() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return s.browser, nil
		}
		_ = s.browser.Close()
		s.browser = nil
	}

	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	s.browser = browser
	return browser, nil
}

// Search loads the DuckDuckGo HTML results page for query and returns
// the top result titles and snippets as a summary.
func (s *BrowserSearcher) Search(ctx context.Context, query string) (*agent.TaskResult, error) {
	browser, err := s.ensureBrowser()
	if err != nil {
		return nil, err
	}

	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(s.navTimeout)

	if err := page.Navigate(searchURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	elements, err := page.Elements(".result")
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("no results found for %q", query)
	}

	var lines []string
	var firstURL string
	for i, el := range elements {
		if i >= s.maxResults {
			break
		}
		title := elementText(el, ".result__title")
		snippet := elementText(el, ".result__snippet")
		href := elementAttr(el, ".result__title a", "href")
		if title == "" {
			continue
		}
		if firstURL == "" {
			firstURL = href
		}
		line := title
		if snippet != "" {
			line += " — " + snippet
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("no usable results for %q", query)
	}

	logging.Agent("search %q returned %d results", query, len(lines))

	return &agent.TaskResult{
		Summary:     strings.Join(lines, "\n"),
		URL:         firstURL,
		SearchQuery: query,
	}, nil
}

// Shutdown closes the shared browser if one was launched.
func (s *BrowserSearcher) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

func elementText(el *rod.Element, selector string) string {
	child, err := el.Element(selector)
	if err != nil {
		return ""
	}
	text, err := child.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func elementAttr(el *rod.Element, selector, attr string) string {
	child, err := el.Element(selector)
	if err != nil {
		return ""
	}
	val, err := child.Attribute(attr)
	if err != nil || val == nil {
		return ""
	}
	return *val
}
