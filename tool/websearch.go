package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultSearchBaseURL = "https://api.duckduckgo.com"

// WebSearchOptions configures the web search tool.
type WebSearchOptions struct {
	// HTTPClient performs the outbound request. Defaults to a client with a
	// ten second timeout.
	HTTPClient HTTPDoer

	// BaseURL is the DuckDuckGo endpoint. Overridable for tests.
	BaseURL string

	// Region biases results toward a locale, for example "us-en".
	Region string

	// MaxResults caps how many related topics are folded into the answer.
	MaxResults int
}

// duckDuckGoResponse is the subset of the instant answer payload we read.
type duckDuckGoResponse struct {
	Answer        string `json:"Answer"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// NewWebSearch returns a tool that answers queries via the DuckDuckGo instant
// answer API. Transport failures surface as invocation errors so they reach
// the model as readable tool results.
func NewWebSearch(optFns ...func(o *WebSearchOptions)) *FunctionTool {
	opts := WebSearchOptions{
		BaseURL:    defaultSearchBaseURL,
		Region:     "us-en",
		MaxResults: 5,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = defaultHTTPClient()
	}

	return NewFunctionTool(
		"web_search",
		"Search the web for up-to-date information on a topic and return a short textual summary of the results.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return nil, fmt.Errorf("query must not be empty")
			}

			return runSearch(ctx, opts, query)
		},
	)
}

func runSearch(ctx context.Context, opts WebSearchOptions, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	if opts.Region != "" {
		params.Set("kl", opts.Region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.BaseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read search response: %w", err)
	}

	var payload duckDuckGoResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	return summarizeSearch(payload, opts.MaxResults), nil
}

// summarizeSearch flattens an instant answer payload into the plain text the
// model receives. Preference order: direct answer, abstract, related topics.
func summarizeSearch(payload duckDuckGoResponse, maxResults int) string {
	var parts []string

	if payload.Answer != "" {
		parts = append(parts, payload.Answer)
	}

	if payload.AbstractText != "" {
		text := payload.AbstractText
		if payload.AbstractURL != "" {
			text += " (" + payload.AbstractURL + ")"
		}

		parts = append(parts, text)
	}

	count := 0

	for _, topic := range payload.RelatedTopics {
		if topic.Text == "" || (maxResults > 0 && count >= maxResults) {
			continue
		}

		parts = append(parts, topic.Text)
		count++
	}

	if len(parts) == 0 {
		return "No good DuckDuckGo Search Result was found"
	}

	return strings.Join(parts, "\n")
}
