package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"regenie/internal/domain"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// SearchWebTool searches the web through Exa.
type SearchWebTool struct {
	exa           *ExaClient
	numResults    int
	snippetLength int
	logger        *slog.Logger
}

func NewSearchWebTool(exa *ExaClient, numResults, snippetLength int, logger *slog.Logger) *SearchWebTool {
	if numResults <= 0 {
		numResults = 3
	}
	if snippetLength <= 0 {
		snippetLength = 1000
	}
	return &SearchWebTool{exa: exa, numResults: numResults, snippetLength: snippetLength, logger: logger}
}

func (t *SearchWebTool) Name() string { return "search_web" }
func (t *SearchWebTool) Description() string {
	return "Search the web for up-to-date information. Use for current events, facts, or anything you're unsure about."
}
func (t *SearchWebTool) Parameters() jsonschema.Definition {
	return ToolParameters(
		map[string]Param{
			"query":          {Type: jsonschema.String, Description: "Search query to look up on the web"},
			"specificDomain": {Type: jsonschema.String, Description: "Optional domain to restrict results to, e.g. bbc.co.uk"},
		},
		[]string{"query"},
	)
}

func (t *SearchWebTool) Execute(ctx context.Context, args map[string]any, status domain.StatusFunc) (any, error) {
	query := strings.TrimSpace(ArgsString(args, "query"))
	if query == "" {
		return failedResults(fmt.Errorf("missing argument: query")), nil
	}
	domainFilter := strings.TrimSpace(ArgsString(args, "specificDomain"))

	status.Emit(ctx, fmt.Sprintf("is searching the web for %s...", query))

	docs, err := t.exa.Search(ctx, query, t.numResults, domainFilter)
	if err != nil {
		t.logger.Warn("web search failed", "query", query, "err", err)
		return failedResults(err), nil
	}

	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		if len(results) == t.numResults {
			break
		}
		results = append(results, SearchResult{
			Title:   d.Title,
			URL:     d.URL,
			Snippet: truncate(d.Text, t.snippetLength),
		})
	}
	return SearchResults{Results: results}, nil
}
