package tool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"regenie/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/net/html"
)

const (
	fetchTimeout    = 30 * time.Second
	fetchMaxBytes   = 2 << 20
	userAgentString = "Regenie/1.0 (+https://slack.com)"
)

// SearchResult is one retrieved document as shown to the model.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResults is the payload of get_contents and search_web. Results is
// always encoded, empty on failure.
type SearchResults struct {
	Error   string         `json:"error,omitempty"`
	Results []SearchResult `json:"results"`
}

func failedResults(err error) SearchResults {
	return SearchResults{Error: err.Error(), Results: []SearchResult{}}
}

// ContentFetcher retrieves the readable text of a single URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string, maxCharacters int) ([]SearchResult, error)
}

// ContentsTool retrieves the contents of a user-provided URL.
type ContentsTool struct {
	fetcher       ContentFetcher
	maxCharacters int
	logger        *slog.Logger
}

func NewContentsTool(fetcher ContentFetcher, maxCharacters int, logger *slog.Logger) *ContentsTool {
	if maxCharacters <= 0 {
		maxCharacters = 10000
	}
	return &ContentsTool{fetcher: fetcher, maxCharacters: maxCharacters, logger: logger}
}

func (t *ContentsTool) Name() string { return "get_contents" }
func (t *ContentsTool) Description() string {
	return "Use this to retrieve the contents of a user-provided URL"
}
func (t *ContentsTool) Parameters() jsonschema.Definition {
	return ToolParameters(
		map[string]Param{
			"url": {Type: jsonschema.String, Description: "Full URL to retrieve (http or https)"},
		},
		[]string{"url"},
	)
}

func (t *ContentsTool) Execute(ctx context.Context, args map[string]any, status domain.StatusFunc) (any, error) {
	rawURL := strings.TrimSpace(ArgsString(args, "url"))
	if err := validateURL(rawURL); err != nil {
		return failedResults(err), nil
	}

	status.Emit(ctx, fmt.Sprintf("is retrieving the contents of %s...", rawURL))

	results, err := t.fetcher.Fetch(ctx, rawURL, t.maxCharacters)
	if err != nil {
		t.logger.Warn("content retrieval failed", "url", rawURL, "err", err)
		return failedResults(err), nil
	}
	for i := range results {
		results[i].Snippet = truncate(results[i].Snippet, t.maxCharacters)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return SearchResults{Results: results}, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("missing argument: url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}
	return nil
}

// ExaFetcher retrieves pages through Exa's live crawler.
type ExaFetcher struct {
	Client *ExaClient
}

func (f ExaFetcher) Fetch(ctx context.Context, rawURL string, maxCharacters int) ([]SearchResult, error) {
	docs, err := f.Client.Contents(ctx, rawURL, maxCharacters)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, SearchResult{Title: d.Title, URL: d.URL, Snippet: d.Text})
	}
	return results, nil
}

// PageLoader renders a page and returns its title and visible text.
type PageLoader interface {
	Load(ctx context.Context, rawURL string) (title, text string, err error)
}

// BrowserFetcher retrieves pages through a headless browser, for sites that
// need JavaScript to render.
type BrowserFetcher struct {
	Loader PageLoader
}

func (f BrowserFetcher) Fetch(ctx context.Context, rawURL string, maxCharacters int) ([]SearchResult, error) {
	title, text, err := f.Loader.Load(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return []SearchResult{{Title: title, URL: rawURL, Snippet: truncate(text, maxCharacters)}}, nil
}

// HTTPFetcher downloads a page directly and extracts its text.
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: resty.New().
			SetTimeout(fetchTimeout).
			SetHeader("User-Agent", userAgentString).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, maxCharacters int) ([]SearchResult, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode(), rawURL)
	}

	ct := resp.Header().Get("Content-Type")
	limited := io.LimitReader(body, fetchMaxBytes)
	if ct != "" && !strings.Contains(ct, "html") {
		data, err := io.ReadAll(limited)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if !strings.HasPrefix(ct, "text/") {
			return nil, fmt.Errorf("unsupported content type %q", ct)
		}
		return []SearchResult{{URL: rawURL, Snippet: truncate(string(data), maxCharacters)}}, nil
	}

	title, text, err := ExtractText(limited)
	if err != nil {
		return nil, err
	}
	return []SearchResult{{Title: title, URL: rawURL, Snippet: truncate(text, maxCharacters)}}, nil
}

// ExtractText parses an HTML document and returns its title and the visible
// text, one block per line.
func ExtractText(r io.Reader) (title, text string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	var lines []string
	var cur strings.Builder
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "svg", "iframe":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			flush()
		}
	}
	walk(doc)
	flush()

	return title, strings.Join(lines, "\n"), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}
