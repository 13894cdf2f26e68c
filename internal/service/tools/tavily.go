package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTavilyURL = "https://api.tavily.com/search"

// Tavily queries the Tavily search API and formats the top results as a text
// block for the reasoning transcript.
type Tavily struct {
	APIKey string
	// Depth controls Tavily's depth parameter (basic or advanced).
	Depth string
	// BaseURL overrides the API endpoint, primarily for tests.
	BaseURL string

	client     *http.Client
	maxResults int
}

// NewTavily constructs the web search tool.
func NewTavily(apiKey, depth string) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{
		APIKey:     apiKey,
		Depth:      depth,
		BaseURL:    defaultTavilyURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxResults: 3,
	}
}

// Name implements Tool.
func (t *Tavily) Name() string { return "web_search" }

// Description implements Tool.
func (t *Tavily) Description() string {
	return "Search the web for current information, facts, and real-time data. Arguments: {\"query\": \"specific search query\"}"
}

// Invoke posts the query to Tavily, backing off on rate limits.
func (t *Tavily) Invoke(ctx context.Context, args map[string]any) (string, error) {
	query := strings.TrimSpace(StringArg(args, "query"))
	if query == "" {
		return "", errors.New("web_search: query argument is required")
	}
	if strings.TrimSpace(t.APIKey) == "" {
		return "", errors.New("web_search: API key is missing")
	}

	payload, err := json.Marshal(map[string]any{
		"query":   query,
		"api_key": t.APIKey,
		"depth":   t.Depth,
	})
	if err != nil {
		return "", err
	}

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return "", err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30 s.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web_search: tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", err
	}

	if len(response.Results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range response.Results {
		if i >= t.maxResults {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s (%s)\n%s", r.Title, r.URL, r.Content)
	}
	return b.String(), nil
}
