package tool

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"regenie/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	defaultApifyBase       = "https://api.apify.com/v2"
	defaultTranscriptActor = "topaz_sharingan/Youtube-Transcript-Scraper-1"

	errNoTranscript     = "No transcript found for this video"
	errTranscriptFailed = "Failed to retrieve the transcript. Please try again or check if the video has captions available."
)

var youtubeIDPattern = regexp.MustCompile(`^.*(youtu.be\/|v\/|e\/|u\/\w+\/|embed\/|v=)([^#\&\?]*).*`)

// YouTubeVideoID extracts the 11-character video ID from the common
// YouTube URL shapes. It returns "" when none is found.
func YouTubeVideoID(rawURL string) string {
	m := youtubeIDPattern.FindStringSubmatch(rawURL)
	if m == nil || len(m[2]) != 11 {
		return ""
	}
	return m[2]
}

// CanonicalYouTubeURL rewrites rawURL to https://www.youtube.com/watch?v=ID
// when an ID can be extracted, and returns it unchanged otherwise.
func CanonicalYouTubeURL(rawURL string) string {
	if id := YouTubeVideoID(rawURL); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return rawURL
}

type TranscriptConfig struct {
	Token    string
	BaseURL  string
	Actor    string // "user/actor-name"
	Language string
	Logger   *slog.Logger
}

// TranscriptTool fetches YouTube transcripts through an Apify actor run
// synchronously.
type TranscriptTool struct {
	client   *resty.Client
	actor    string
	language string
	logger   *slog.Logger
}

func NewTranscriptTool(cfg TranscriptConfig) *TranscriptTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultApifyBase
	}
	if cfg.Actor == "" {
		cfg.Actor = defaultTranscriptActor
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(5*time.Minute).
		SetQueryParam("token", cfg.Token).
		SetHeader("Content-Type", "application/json")
	return &TranscriptTool{
		client:   c,
		actor:    strings.ReplaceAll(cfg.Actor, "/", "~"),
		language: cfg.Language,
		logger:   cfg.Logger,
	}
}

func (t *TranscriptTool) Name() string { return "youtube_transcript" }
func (t *TranscriptTool) Description() string {
	return "Use this to retrieve the transcript of a YouTube video"
}
func (t *TranscriptTool) Parameters() jsonschema.Definition {
	return ToolParameters(
		map[string]Param{
			"url": {Type: jsonschema.String, Description: "The YouTube video URL to get the transcript for"},
		},
		[]string{"url"},
	)
}

// Transcript is the successful result of youtube_transcript.
type Transcript struct {
	VideoTitle  string `json:"videoTitle"`
	ChannelName string `json:"channelName"`
	Views       string `json:"views"`
	Transcript  string `json:"transcript"`
	URL         string `json:"url"`
}

// TranscriptError is the failure payload of youtube_transcript.
type TranscriptError struct {
	Error string `json:"error"`
}

type apifyInput struct {
	IncludeTimestamps string   `json:"includeTimestamps"`
	Language          string   `json:"language"`
	StartURLs         []string `json:"startUrls"`
}

type apifyItem struct {
	VideoTitle  string `json:"videoTitle"`
	ChannelName string `json:"channelName"`
	Views       any    `json:"views"`
	Transcript  string `json:"transcript"`
}

func (t *TranscriptTool) Execute(ctx context.Context, args map[string]any, status domain.StatusFunc) (any, error) {
	videoURL := CanonicalYouTubeURL(strings.TrimSpace(ArgsString(args, "url")))
	if videoURL == "" {
		return TranscriptError{Error: errTranscriptFailed}, nil
	}

	status.Emit(ctx, fmt.Sprintf("is retrieving the transcript for %s...", videoURL))

	var items []apifyItem
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(apifyInput{
			IncludeTimestamps: "No",
			Language:          t.language,
			StartURLs:         []string{videoURL},
		}).
		SetResult(&items).
		Post("/acts/" + t.actor + "/run-sync-get-dataset-items")
	if err == nil && resp.IsError() {
		err = fmt.Errorf("apify returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}
	if err != nil {
		t.logger.Warn("transcript retrieval failed", "url", videoURL, "err", err)
		return TranscriptError{Error: errTranscriptFailed}, nil
	}
	if len(items) == 0 {
		return TranscriptError{Error: errNoTranscript}, nil
	}

	item := items[0]
	return Transcript{
		VideoTitle:  orDefault(item.VideoTitle, "Unknown Title"),
		ChannelName: orDefault(item.ChannelName, "Unknown Channel"),
		Views:       orDefault(viewsString(item.Views), "Unknown Views"),
		Transcript:  orDefault(item.Transcript, "No transcript available"),
		URL:         videoURL,
	}, nil
}

// viewsString renders the actor's view count, which is a number or a
// preformatted string depending on the scraper version.
func viewsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == 0 {
			return ""
		}
		return fmt.Sprintf("%.0f", x)
	default:
		return fmt.Sprint(x)
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
