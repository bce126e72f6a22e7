package tool

import (
	"log/slog"

	"regenie/internal/config"
)

// Options carries the collaborators the built-in tools may need beyond
// their config section.
type Options struct {
	// Browser backs the "browser" contents fetcher. Required only when
	// tools.contents.fetcher is "browser".
	Browser PageLoader
	Logger  *slog.Logger
}

// NewBuiltinRegistry registers every tool enabled in cfg. Tools that need
// a missing credential are skipped with a warning instead of failing start-up.
func NewBuiltinRegistry(cfg config.ToolsConfig, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := NewRegistry(logger)

	if cfg.Weather.Enabled {
		reg.Register(NewWeatherTool(cfg.Weather.Endpoint))
	}

	var exa *ExaClient
	if cfg.Exa.APIKey != "" {
		exa = NewExaClient(cfg.Exa.APIKey, cfg.Exa.BaseURL)
	}

	if cfg.Contents.Enabled {
		var fetcher ContentFetcher
		switch cfg.Contents.Fetcher {
		case "browser":
			if opts.Browser != nil {
				fetcher = BrowserFetcher{Loader: opts.Browser}
			} else {
				logger.Warn("browser fetcher requested without a browser, falling back to http")
				fetcher = NewHTTPFetcher()
			}
		case "http":
			fetcher = NewHTTPFetcher()
		default:
			if exa != nil {
				fetcher = ExaFetcher{Client: exa}
			} else {
				logger.Warn("no Exa API key, get_contents falls back to the http fetcher")
				fetcher = NewHTTPFetcher()
			}
		}
		reg.Register(NewContentsTool(fetcher, cfg.Contents.MaxCharacters, logger))
	}

	if cfg.Search.Enabled {
		if exa != nil {
			reg.Register(NewSearchWebTool(exa, cfg.Search.NumResults, cfg.Search.SnippetLength, logger))
		} else {
			logger.Warn("no Exa API key, search_web disabled")
		}
	}

	if cfg.Transcript.Enabled && cfg.Transcript.ApifyToken != "" {
		reg.Register(NewTranscriptTool(TranscriptConfig{
			Token:    cfg.Transcript.ApifyToken,
			BaseURL:  cfg.Transcript.ApifyBase,
			Actor:    cfg.Transcript.Actor,
			Language: cfg.Transcript.Language,
			Logger:   logger,
		}))
	}

	logger.Info("tools registered", "tools", reg.Names())
	return reg
}
