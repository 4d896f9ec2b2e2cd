package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// searchTavily posts each query to the Tavily API. Queries fan out
// concurrently; results keep issue order. A missing credential aborts before
// any network attempt.
func (s *WebSearch) searchTavily(ctx context.Context, queries []string, n int) (string, error) {
	if s.creds.TavilyAPIKey == "" {
		return "ERROR: TAVILY_API_KEY is not configured", nil
	}
	all, err := s.fanOut(ctx, queries, func(ctx context.Context, query string) ([]Result, error) {
		return s.tavilyQuery(ctx, query, n)
	})
	if err != nil {
		return "", err
	}
	return marshalResults(all)
}

func (s *WebSearch) tavilyQuery(ctx context.Context, query string, n int) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{
		"query":       query,
		"api_key":     s.creds.TavilyAPIKey,
		"max_results": n,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tavilyURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, Result{
			Query:   query,
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Content,
		})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}

// fanOut runs fn for every query concurrently and flattens the results in
// issue order. Per-query failures become inline error records; only context
// cancellation aborts the whole call.
func (s *WebSearch) fanOut(ctx context.Context, queries []string, fn func(ctx context.Context, query string) ([]Result, error)) ([]Result, error) {
	perQuery := make([][]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			results, err := fn(gctx, query)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				perQuery[i] = []Result{{Query: query, Error: err.Error()}}
				return nil
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Result
	for _, results := range perQuery {
		all = append(all, results...)
	}
	return all, nil
}
