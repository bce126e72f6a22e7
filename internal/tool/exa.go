package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultExaBaseURL = "https://api.exa.ai"

// ExaClient is a minimal client for the Exa search and contents API.
type ExaClient struct {
	client *resty.Client
}

// NewExaClient returns a client authenticated with apiKey.
func NewExaClient(apiKey, baseURL string) *ExaClient {
	if baseURL == "" {
		baseURL = defaultExaBaseURL
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(45*time.Second).
		SetHeader("x-api-key", apiKey).
		SetHeader("Content-Type", "application/json")
	return &ExaClient{client: c}
}

// ExaResult is one document returned by /search or /contents.
type ExaResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

type exaResponse struct {
	Results []ExaResult `json:"results"`
}

type exaError struct {
	Error string `json:"error"`
}

type exaContentsRequest struct {
	URLs      []string      `json:"urls"`
	Text      exaTextOption `json:"text"`
	Livecrawl string        `json:"livecrawl,omitempty"`
}

type exaTextOption struct {
	MaxCharacters int `json:"maxCharacters,omitempty"`
}

type exaSearchRequest struct {
	Query          string            `json:"query"`
	NumResults     int               `json:"numResults"`
	IncludeDomains []string          `json:"includeDomains,omitempty"`
	Contents       exaSearchContents `json:"contents"`
}

type exaSearchContents struct {
	Text bool `json:"text"`
}

// Contents retrieves the text of a single URL, live-crawling it.
func (c *ExaClient) Contents(ctx context.Context, url string, maxCharacters int) ([]ExaResult, error) {
	body := exaContentsRequest{
		URLs:      []string{url},
		Text:      exaTextOption{MaxCharacters: maxCharacters},
		Livecrawl: "always",
	}
	return c.post(ctx, "/contents", body)
}

// Search runs a web search, optionally restricted to one domain.
func (c *ExaClient) Search(ctx context.Context, query string, numResults int, domain string) ([]ExaResult, error) {
	body := exaSearchRequest{
		Query:      query,
		NumResults: numResults,
		Contents:   exaSearchContents{Text: true},
	}
	if domain != "" {
		body.IncludeDomains = []string{domain}
	}
	return c.post(ctx, "/search", body)
}

func (c *ExaClient) post(ctx context.Context, path string, body any) ([]ExaResult, error) {
	var out exaResponse
	var apiErr exaError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("exa %s: %w", path, err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = truncate(resp.String(), 200)
		}
		return nil, fmt.Errorf("exa %s returned %d: %s", path, resp.StatusCode(), msg)
	}
	return out.Results, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
