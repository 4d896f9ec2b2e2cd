// Package tools contains the built-in tools offered to the model: web search
// over pluggable backends, and URL fetching.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Search backend names.
const (
	BackendDuckDuckGo = "duckduckgo"
	BackendTavily     = "tavily"
	BackendSerp       = "serp"
	BackendBrave      = "brave"
)

const (
	defaultNumResults = 5
	minNumResults     = 1
	maxNumResults     = 20
)

// SearchCredentials enumerates every credentialed backend explicitly, so a
// missing key is detectable before any network attempt. DuckDuckGo needs none.
type SearchCredentials struct {
	TavilyAPIKey string
	SerpAPIKey   string
	BraveAPIKey  string
}

// WebSearch is the search_web tool. Recoverable failures are returned as
// tool output (sentinel "ERROR: ..." strings or inline per-query error
// records), never as Go errors, so the model can read them and self-correct.
type WebSearch struct {
	creds  SearchCredentials
	client *http.Client

	// Endpoints and pacing are fields so tests can point the tool at
	// httptest servers and skip real sleeps.
	duckduckgoURL string
	tavilyURL     string
	serpURL       string
	braveURL      string
	pace          time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewWebSearch creates the search_web tool with the given credentials.
func NewWebSearch(creds SearchCredentials) *WebSearch {
	return &WebSearch{
		creds:         creds,
		client:        &http.Client{Timeout: 15 * time.Second},
		duckduckgoURL: "https://lite.duckduckgo.com/lite/",
		tavilyURL:     "https://api.tavily.com/search",
		serpURL:       "https://serpapi.com/search.json",
		braveURL:      "https://api.search.brave.com/res/v1/web/search",
		pace:          time.Second,
		sleep:         sleepContext,
	}
}

func (s *WebSearch) Name() string { return "search_web" }
func (s *WebSearch) Description() string {
	return "Search the web using the specified backend. Returns JSON results for all queries."
}
func (s *WebSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"queries": {"type": "array", "items": {"type": "string"}, "description": "Search queries to execute"},
			"backend": {"type": "string", "enum": ["duckduckgo", "tavily", "serp", "brave"], "description": "Search backend (default: duckduckgo)"},
			"num_results": {"type": "integer", "description": "Number of results per query (1-20, default: 5)"}
		},
		"required": ["queries"]
	}`)
}

// Result is one normalized search hit, or a per-query error record when the
// Error slot is set.
type Result struct {
	Query   string `json:"query"`
	Title   string `json:"title,omitempty"`
	Link    string `json:"link,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Error   string `json:"error,omitempty"`
}

// queryList accepts both a JSON array of strings and a bare string, which is
// coerced to a singleton list.
type queryList []string

func (q *queryList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*q = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("queries must be a string or a list of strings")
	}
	*q = []string{single}
	return nil
}

type searchArgs struct {
	Queries    queryList `json:"queries"`
	Backend    string    `json:"backend"`
	NumResults *int      `json:"num_results"`
}

// Execute runs all queries against the chosen backend.
func (s *WebSearch) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params searchArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return fmt.Sprintf("ERROR: invalid arguments: %v", err), nil
	}
	if len(params.Queries) == 0 {
		return "ERROR: No queries provided", nil
	}

	// An absent num_results means the default; an explicit out-of-range
	// value is clamped, never rejected.
	n := defaultNumResults
	if params.NumResults != nil {
		n = *params.NumResults
	}
	if n < minNumResults {
		n = minNumResults
	}
	if n > maxNumResults {
		n = maxNumResults
	}

	backend := params.Backend
	if backend == "" {
		backend = BackendDuckDuckGo
	}

	switch backend {
	case BackendDuckDuckGo:
		return s.searchDuckDuckGo(ctx, params.Queries, n)
	case BackendTavily:
		return s.searchTavily(ctx, params.Queries, n)
	case BackendSerp:
		return s.searchSerp(ctx, params.Queries, n)
	case BackendBrave:
		return s.searchBrave(ctx, params.Queries, n)
	default:
		return fmt.Sprintf("ERROR: Unknown backend %q. Use 'duckduckgo', 'tavily', 'serp', or 'brave'", backend), nil
	}
}

func marshalResults(results []Result) (string, error) {
	if results == nil {
		results = []Result{}
	}
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(out), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
