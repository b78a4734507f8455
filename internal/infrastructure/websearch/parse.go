package websearch

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/docintel/docintel/internal/core/domain"
)

// snippetSelectors are the result-text containers the search page has
// used across layout revisions, tried in order.
var snippetSelectors = []string{"div.BNeawe", "div.VwiC3b", "span.aCOpRe", "div.s"}

func parseResults(r io.Reader, limit int) ([]domain.WebResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	snippets := collectSnippets(doc, limit)
	links := collectLinks(doc, limit)

	n := len(snippets)
	if len(links) > n {
		n = len(links)
	}
	if n > limit {
		n = limit
	}

	results := make([]domain.WebResult, 0, n)
	for i := 0; i < n; i++ {
		var result domain.WebResult
		if i < len(snippets) {
			result.Snippet = snippets[i]
		}
		if i < len(links) {
			result.Title = links[i].Title
			result.URL = links[i].URL
		}
		results = append(results, result)
	}
	return results, nil
}

func collectSnippets(doc *goquery.Document, limit int) []string {
	seen := make(map[string]struct{})
	var snippets []string

	add := func(text string) {
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		snippets = append(snippets, text)
	}

	for _, selector := range snippetSelectors {
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			add(s.Text())
			return len(snippets) < limit
		})
		if len(snippets) > 0 {
			return snippets
		}
	}

	// Layout changed: fall back to any element with substantial text.
	doc.Find("p, span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); len(text) > 100 {
			add(text)
		}
		return len(snippets) < limit
	})
	return snippets
}

func collectLinks(doc *goquery.Document, limit int) []domain.WebResult {
	var links []domain.WebResult
	doc.Find(`a[href^="/url?q="]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		target := strings.TrimPrefix(href, "/url?q=")
		if idx := strings.Index(target, "&"); idx >= 0 {
			target = target[:idx]
		}
		if unescaped, err := url.QueryUnescape(target); err == nil {
			target = unescaped
		}
		title := strings.Join(strings.Fields(s.Text()), " ")
		if target == "" || title == "" {
			return true
		}
		links = append(links, domain.WebResult{Title: title, URL: target})
		return len(links) < limit
	})
	return links
}
