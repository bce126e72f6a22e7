// Package channel is the Slack surface of the bot: inbound events over the
// Events API webhook or Socket Mode, thread reading, and the outbound
// projection of generated answers into messages, statuses, titles and
// suggested prompts.
package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"regenie/internal/personality"

	"github.com/slack-go/slack"
)

// API is the subset of the Slack Web API the bot uses. *slack.Client
// satisfies it.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetFileInfoContext(ctx context.Context, fileID string, count, page int) (*slack.File, []slack.Comment, *slack.Paging, error)
	GetFileContext(ctx context.Context, downloadURL string, writer io.Writer) error
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	SetAssistantThreadsStatusContext(ctx context.Context, params slack.AssistantThreadsSetStatusParameters) error
	SetAssistantThreadsTitleContext(ctx context.Context, params slack.AssistantThreadsSetTitleParameters) error
	SetAssistantThreadsSuggestedPromptsContext(ctx context.Context, params slack.AssistantThreadsSetSuggestedPromptsParameters) error
	PublishViewContext(ctx context.Context, req slack.PublishViewContextRequest) (*slack.ViewResponse, error)
}

var _ API = (*slack.Client)(nil)

// Slack talks to the Slack Web API on behalf of the bot.
type Slack struct {
	api           API
	client        *slack.Client // nil when an API is injected
	personalities *personality.Registry
	logger        *slog.Logger

	botUserID string
	botID     string
}

// SlackConfig configures the Slack client.
type SlackConfig struct {
	BotToken string
	AppToken string // required for Socket Mode only
	// API overrides the Web API client, mainly for tests.
	API           API
	Personalities *personality.Registry
	Logger        *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	s := &Slack{
		api:           cfg.API,
		personalities: cfg.Personalities,
		logger:        cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.api == nil {
		opts := []slack.Option{}
		if cfg.AppToken != "" {
			opts = append(opts, slack.OptionAppLevelToken(cfg.AppToken))
		}
		s.client = slack.New(cfg.BotToken, opts...)
		s.api = s.client
	}
	return s
}

// Connect resolves the bot's identity with auth.test. It must be called
// once before events are decoded; the identity is read-only afterwards.
func (s *Slack) Connect(ctx context.Context) error {
	resp, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	if resp.UserID == "" {
		return fmt.Errorf("slack auth: bot user ID is empty")
	}
	s.botUserID = resp.UserID
	s.botID = resp.BotID
	s.logger.Info("slack bot connected", "user", resp.User, "user_id", resp.UserID, "team", resp.Team)
	return nil
}

// BotUserID is the bot's own user ID, as used in <@mentions>.
func (s *Slack) BotUserID() string { return s.botUserID }

// Client returns the underlying slack-go client, or nil when an API was
// injected.
func (s *Slack) Client() *slack.Client { return s.client }
