// Web search tool.
//
// Information Hiding:
// - Search backend selection (DuckDuckGo instant answers, SerpAPI)
// - Result deduplication and ranking

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultDuckDuckGoURL = "https://api.duckduckgo.com"
	defaultSerpAPIURL    = "https://serpapi.com"
)

// WebSearchTool searches the web and returns structured results for the
// model to summarize. DuckDuckGo instant answers are always queried; when a
// SerpAPI key is configured, its organic results are merged in as well.
type WebSearchTool struct {
	client      *http.Client
	duckBaseURL string
	serpBaseURL string
	serpAPIKey  string
	logger      zerolog.Logger
}

// NewWebSearchTool creates the search tool. serpAPIKey may be empty.
func NewWebSearchTool(timeout time.Duration, serpAPIKey string, logger zerolog.Logger) *WebSearchTool {
	return &WebSearchTool{
		client:      &http.Client{Timeout: timeout},
		duckBaseURL: defaultDuckDuckGoURL,
		serpBaseURL: defaultSerpAPIURL,
		serpAPIKey:  serpAPIKey,
		logger:      logger.With().Str("tool", "search_web_info").Logger(),
	}
}

// WithBaseURLs overrides the backend base URLs (used by tests).
func (t *WebSearchTool) WithBaseURLs(duck, serp string) *WebSearchTool {
	t.duckBaseURL = duck
	t.serpBaseURL = serp
	return t
}

// Descriptor returns the tool metadata.
func (t *WebSearchTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "search_web_info",
		Description: "Search the web for information and return structured results",
		Parameters: []Parameter{
			{Name: "query", Type: "str", Description: "Search query keywords"},
			{Name: "search_type", Type: "str", Description: "Search type (optional, default general): 'general', 'news', 'finance', 'company'", Default: "general"},
			{Name: "max_results", Type: "int", Description: "Maximum number of results (optional, default 10)", Default: 10},
		},
	}
}

// Run performs the search across configured backends.
func (t *WebSearchTool) Run(ctx context.Context, params map[string]any) (any, error) {
	query, err := StringParam(params, "query")
	if err != nil {
		return nil, err
	}
	searchType := OptionalString(params, "search_type", "general")
	maxResults := OptionalInt(params, "max_results", 10)
	if maxResults < 1 || maxResults > 50 {
		maxResults = 10
	}

	// Search-type hints sharpen generic queries the way a human would.
	effective := query
	switch searchType {
	case "finance":
		effective = query + " stock financial"
	case "news":
		effective = query + " latest news"
	case "company":
		effective = query + " company profile"
	}

	t.logger.Info().Str("query", query).Str("search_type", searchType).Msg("searching web")

	var results []map[string]any
	seen := make(map[string]bool)

	ddg, err := t.duckDuckGo(ctx, effective)
	if err != nil {
		t.logger.Warn().Err(err).Msg("duckduckgo search failed")
	}
	results = appendUnique(results, ddg, seen, maxResults)

	if t.serpAPIKey != "" && len(results) < maxResults {
		serp, err := t.serpAPI(ctx, effective, maxResults-len(results))
		if err != nil {
			t.logger.Warn().Err(err).Msg("serpapi search failed")
		}
		results = appendUnique(results, serp, seen, maxResults)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no search results found for %q", query)
	}

	t.logger.Info().Str("query", query).Int("results", len(results)).Msg("web search complete")
	return map[string]any{
		"query":       query,
		"search_type": searchType,
		"results":     results,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (t *WebSearchTool) duckDuckGo(ctx context.Context, query string) ([]map[string]any, error) {
	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		t.duckBaseURL, url.QueryEscape(query))

	body, err := t.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var resp struct {
		AbstractText   string `json:"AbstractText"`
		AbstractURL    string `json:"AbstractURL"`
		AbstractSource string `json:"AbstractSource"`
		Heading        string `json:"Heading"`
		RelatedTopics  []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode duckduckgo response: %w", err)
	}

	var results []map[string]any
	if resp.AbstractText != "" {
		results = append(results, map[string]any{
			"title":   resp.Heading,
			"snippet": resp.AbstractText,
			"url":     resp.AbstractURL,
			"source":  resp.AbstractSource,
		})
	}
	for _, topic := range resp.RelatedTopics {
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		results = append(results, map[string]any{
			"title":   truncate(topic.Text, 80),
			"snippet": topic.Text,
			"url":     topic.FirstURL,
			"source":  "DuckDuckGo",
		})
	}
	return results, nil
}

func (t *WebSearchTool) serpAPI(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	u := fmt.Sprintf("%s/search.json?q=%s&api_key=%s&num=%d",
		t.serpBaseURL, url.QueryEscape(query), url.QueryEscape(t.serpAPIKey), limit)

	body, err := t.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
			Source  string `json:"source"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode serpapi response: %w", err)
	}

	var results []map[string]any
	for _, r := range resp.OrganicResults {
		results = append(results, map[string]any{
			"title":   r.Title,
			"snippet": r.Snippet,
			"url":     r.Link,
			"source":  r.Source,
		})
	}
	return results, nil
}

func (t *WebSearchTool) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search upstream returned %s", resp.Status)
	}
	return body, nil
}

func appendUnique(dst []map[string]any, src []map[string]any, seen map[string]bool, limit int) []map[string]any {
	for _, r := range src {
		if len(dst) >= limit {
			break
		}
		u, _ := r["url"].(string)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		dst = append(dst, r)
	}
	return dst
}
