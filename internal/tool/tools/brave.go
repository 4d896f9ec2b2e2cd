package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// searchBrave queries the Brave Search API. Brave's free tier allows one
// request per second, so queries run sequentially with the pacing delay
// between them. Per-query failures degrade to inline error records.
func (s *WebSearch) searchBrave(ctx context.Context, queries []string, n int) (string, error) {
	if s.creds.BraveAPIKey == "" {
		return "ERROR: BRAVE_API_KEY is not configured", nil
	}
	var all []Result
	for i, query := range queries {
		if i > 0 {
			if err := s.sleep(ctx, s.pace); err != nil {
				return "", err
			}
		}
		results, err := s.braveQuery(ctx, query, n)
		if err != nil {
			all = append(all, Result{Query: query, Error: err.Error()})
			continue
		}
		all = append(all, results...)
	}
	return marshalResults(all)
}

func (s *WebSearch) braveQuery(ctx context.Context, query string, n int) ([]Result, error) {
	u, err := url.Parse(s.braveURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.creds.BraveAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var response struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(response.Web.Results))
	for _, r := range response.Web.Results {
		results = append(results, Result{
			Query:   query,
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Description,
		})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}
