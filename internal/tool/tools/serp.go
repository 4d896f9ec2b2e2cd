package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// serpMaxPerRequest is the provider's cap on results per request.
const serpMaxPerRequest = 10

// searchSerp queries SerpAPI (Google results). Queries fan out concurrently;
// results keep issue order.
func (s *WebSearch) searchSerp(ctx context.Context, queries []string, n int) (string, error) {
	if s.creds.SerpAPIKey == "" {
		return "ERROR: SERP_API_KEY is not configured", nil
	}
	all, err := s.fanOut(ctx, queries, func(ctx context.Context, query string) ([]Result, error) {
		return s.serpQuery(ctx, query, n)
	})
	if err != nil {
		return "", err
	}
	return marshalResults(all)
}

func (s *WebSearch) serpQuery(ctx context.Context, query string, n int) ([]Result, error) {
	num := n
	if num > serpMaxPerRequest {
		num = serpMaxPerRequest
	}

	u, err := url.Parse(s.serpURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("api_key", s.creds.SerpAPIKey)
	q.Set("num", strconv.Itoa(num))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi http %d", resp.StatusCode)
	}

	var response struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(response.OrganicResults))
	for _, r := range response.OrganicResults {
		results = append(results, Result{
			Query:   query,
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
		})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}
