// News search tool backed by the Google News RSS feed.

package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultNewsBaseURL = "https://news.google.com"
	maxNewsResults     = 20
)

// NewsTool searches recent news articles for a query.
type NewsTool struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewNewsTool creates the news tool with the given request timeout.
func NewNewsTool(timeout time.Duration, logger zerolog.Logger) *NewsTool {
	return &NewsTool{
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultNewsBaseURL,
		logger:  logger.With().Str("tool", "get_news").Logger(),
	}
}

// WithBaseURL overrides the feed base URL (used by tests).
func (t *NewsTool) WithBaseURL(base string) *NewsTool {
	t.baseURL = base
	return t
}

// Descriptor returns the tool metadata.
func (t *NewsTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        "get_news",
		Description: "Fetch recent news articles related to a query",
		Parameters: []Parameter{
			{Name: "query", Type: "str", Description: "Search keywords, typically a company name, ticker or news topic"},
			{Name: "from_date", Type: "str", Description: "Start date in YYYY-MM-DD format"},
			{Name: "to_date", Type: "str", Description: "End date in YYYY-MM-DD format"},
		},
	}
}

type rssFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
			Source      struct {
				Name string `xml:",chardata"`
			} `xml:"source"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Run fetches up to 20 recent articles matching the query. The feed covers
// roughly the past week; from_date/to_date narrow the window when the feed
// provides publish dates.
func (t *NewsTool) Run(ctx context.Context, params map[string]any) (any, error) {
	query, err := StringParam(params, "query")
	if err != nil {
		return nil, err
	}

	t.logger.Info().Str("query", query).Msg("fetching news")

	u := fmt.Sprintf("%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		t.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build news request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read news response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news upstream returned %s", resp.Status)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode news feed: %w", err)
	}

	articles := make([]any, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if len(articles) >= maxNewsResults {
			break
		}
		articles = append(articles, map[string]any{
			"title":       item.Title,
			"description": item.Description,
			"url":         item.Link,
			"publishedAt": item.PubDate,
			"source": map[string]any{
				"name": item.Source.Name,
			},
		})
	}

	t.logger.Info().Str("query", query).Int("articles", len(articles)).Msg("news fetched")
	return articles, nil
}
