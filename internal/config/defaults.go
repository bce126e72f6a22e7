package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Slack: SlackConfig{
			Mode:                 "http",
			ListenAddr:           ":3000",
			EventsPath:           "/api/events",
			Async:                true,
			ShutdownGraceSeconds: 30,
		},
		Model: ModelConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4.1-mini",
			Temperature:    0.7,
			MaxTokens:      5000,
			MaxSteps:       10,
			MaxAttempts:    3,
			RetryDelayMs:   1000,
			TimeoutSeconds: 120,
		},
		Tools: ToolsConfig{
			Weather: WeatherToolConfig{
				Enabled:  true,
				Endpoint: "https://api.open-meteo.com/v1/forecast",
			},
			Exa: ExaConfig{
				BaseURL: "https://api.exa.ai",
			},
			Contents: ContentsToolConfig{
				Enabled:       true,
				Fetcher:       "exa",
				MaxCharacters: 10000,
			},
			Search: SearchToolConfig{
				Enabled:       true,
				NumResults:    3,
				SnippetLength: 1000,
			},
			Transcript: TranscriptToolConfig{
				Enabled:   true,
				ApifyBase: "https://api.apify.com/v2",
				Actor:     "topaz_sharingan/Youtube-Transcript-Scraper-1",
				Language:  "English",
			},
		},
		Store: StoreConfig{
			Enabled:        true,
			DBPath:         "~/.regenie/events.db",
			RetentionHours: 168,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
