package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// rateLimitSentinel steers the model to a credentialed backend when the free
// one starts refusing.
const rateLimitSentinel = "ERROR: DuckDuckGo rate limited. Please try again later or use 'tavily' or 'serp' backend."

// searchDuckDuckGo scrapes the lite HTML interface, one query at a time with
// a fixed pacing delay in between. A rate-limit signal abandons the
// remaining queries; other per-query failures degrade to inline error
// records.
func (s *WebSearch) searchDuckDuckGo(ctx context.Context, queries []string, n int) (string, error) {
	var all []Result
	for i, query := range queries {
		if i > 0 {
			if err := s.sleep(ctx, s.pace); err != nil {
				return "", err
			}
		}
		results, err := s.duckduckgoQuery(ctx, query, n)
		if err != nil {
			if isRateLimited(err) {
				return rateLimitSentinel, nil
			}
			all = append(all, Result{Query: query, Error: err.Error()})
			continue
		}
		all = append(all, results...)
	}
	return marshalResults(all)
}

func (s *WebSearch) duckduckgoQuery(ctx context.Context, query string, n int) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.duckduckgoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseLiteResults(query, string(body), n), nil
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "ratelimit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "blocked") ||
		strings.Contains(msg, "429")
}

// The lite page is stable enough for regex extraction: result links carry a
// result-link class, snippets live in result-snippet table cells.
var (
	liteLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	liteLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	liteSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
)

func parseLiteResults(query, html string, n int) []Result {
	matches := liteLinkPattern.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = liteLinkPatternAlt.FindAllStringSubmatch(html, -1)
	}
	snippets := liteSnippetPattern.FindAllStringSubmatch(html, -1)

	var results []Result
	for i, match := range matches {
		if len(match) < 3 {
			continue
		}
		link := strings.TrimSpace(match[1])
		title := stripHTML(match[2])
		if link == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) && len(snippets[i]) > 1 {
			snippet = stripHTML(snippets[i][1])
		}
		results = append(results, Result{
			Query:   query,
			Title:   title,
			Link:    link,
			Snippet: snippet,
		})
		if len(results) >= n {
			break
		}
	}
	return results
}

func stripHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}
