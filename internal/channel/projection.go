package channel

import (
	"context"
	"fmt"
	"strings"

	"regenie/internal/domain"

	"github.com/slack-go/slack"
)

// sectionTextLimit is Slack's cap on the text of one section block.
const sectionTextLimit = 3000

// IsDirectMessage reports whether channelID is a DM (IDs start with "D").
func IsDirectMessage(channelID string) bool {
	return strings.HasPrefix(channelID, "D")
}

// PostMessage posts plain text as a thread reply and returns its ts.
func (s *Slack) PostMessage(ctx context.Context, channelID, threadTS, text string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := s.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage %s: %w", channelID, err)
	}
	return ts, nil
}

// PostMessageWithContext posts mrkdwn as section blocks. When showPersonality
// is set and the message opens a thread or lives in a DM, a context block
// naming the channel's personality precedes it.
func (s *Slack) PostMessageWithContext(ctx context.Context, channelID, threadTS, text string, showPersonality, isFirstInThread bool) (string, error) {
	var blocks []slack.Block
	if showPersonality && (isFirstInThread || IsDirectMessage(channelID)) {
		p := s.personalities.ForChannel(channelID)
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, p.Banner(), false, false)))
	}
	for _, chunk := range splitSlackMessage(text, sectionTextLimit) {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, chunk, false, false), nil, nil))
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionDisableLinkUnfurl(),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := s.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage %s: %w", channelID, err)
	}
	return ts, nil
}

// UpdateMessage replaces the text of a posted message.
func (s *Slack) UpdateMessage(ctx context.Context, channelID, ts, text string) error {
	if _, _, _, err := s.api.UpdateMessageContext(ctx, channelID, ts, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("chat.update %s/%s: %w", channelID, ts, err)
	}
	return nil
}

// StatusMessage is a posted message whose text is rewritten as work
// progresses and finally replaced by the answer.
type StatusMessage struct {
	slack   *Slack
	channel string
	ts      string
}

// PostStatusMessage posts initial as a reply in threadTS and returns a
// handle for updating it.
func (s *Slack) PostStatusMessage(ctx context.Context, channelID, threadTS, initial string) (*StatusMessage, error) {
	ts, err := s.PostMessage(ctx, channelID, threadTS, initial)
	if err != nil {
		return nil, fmt.Errorf("post initial message: %w", err)
	}
	if ts == "" {
		return nil, fmt.Errorf("post initial message: no ts returned")
	}
	return &StatusMessage{slack: s, channel: channelID, ts: ts}, nil
}

func (m *StatusMessage) TS() string { return m.ts }

// Update rewrites the message text.
func (m *StatusMessage) Update(ctx context.Context, text string) error {
	return m.slack.UpdateMessage(ctx, m.channel, m.ts, text)
}

// StatusFunc adapts Update for progress reporting; failures are logged.
func (m *StatusMessage) StatusFunc() domain.StatusFunc {
	return func(ctx context.Context, status string) {
		if err := m.Update(ctx, status); err != nil {
			m.slack.logger.Warn("status message update failed", "channel", m.channel, "err", err)
		}
	}
}

// UpdateStatus sets the assistant thread status line. An empty status
// clears it.
func (s *Slack) UpdateStatus(ctx context.Context, channelID, threadTS, status string) error {
	err := s.api.SetAssistantThreadsStatusContext(ctx, slack.AssistantThreadsSetStatusParameters{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Status:    status,
	})
	if err != nil {
		return fmt.Errorf("assistant.threads.setStatus %s: %w", channelID, err)
	}
	return nil
}

// StatusUpdater returns a StatusFunc bound to one assistant thread.
func (s *Slack) StatusUpdater(channelID, threadTS string) domain.StatusFunc {
	return func(ctx context.Context, status string) {
		if err := s.UpdateStatus(ctx, channelID, threadTS, status); err != nil {
			s.logger.Warn("thread status update failed", "channel", channelID, "err", err)
		}
	}
}

// UpdateTitle sets the assistant thread title.
func (s *Slack) UpdateTitle(ctx context.Context, channelID, threadTS, title string) error {
	err := s.api.SetAssistantThreadsTitleContext(ctx, slack.AssistantThreadsSetTitleParameters{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Title:     title,
	})
	if err != nil {
		return fmt.Errorf("assistant.threads.setTitle %s: %w", channelID, err)
	}
	return nil
}

// SetSuggestedPrompts offers prompts under title. Slack rejects an empty
// prompt list, so nothing is sent when prompts is empty.
func (s *Slack) SetSuggestedPrompts(ctx context.Context, channelID, threadTS string, prompts []string, title string) error {
	if len(prompts) == 0 {
		return nil
	}
	items := make([]slack.AssistantThreadsPrompt, 0, len(prompts))
	for _, p := range prompts {
		items = append(items, slack.AssistantThreadsPrompt{Title: p, Message: p})
	}
	err := s.api.SetAssistantThreadsSuggestedPromptsContext(ctx, slack.AssistantThreadsSetSuggestedPromptsParameters{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Title:     title,
		Prompts:   items,
	})
	if err != nil {
		return fmt.Errorf("assistant.threads.setSuggestedPrompts %s: %w", channelID, err)
	}
	return nil
}

// PublishHome publishes the App Home tab for userID.
func (s *Slack) PublishHome(ctx context.Context, userID string) error {
	_, err := s.api.PublishViewContext(ctx, slack.PublishViewContextRequest{UserID: userID, View: HomeView()})
	if err != nil {
		return fmt.Errorf("views.publish %s: %w", userID, err)
	}
	return nil
}

// HomeView is the App Home tab.
func HomeView() slack.HomeTabViewRequest {
	mrkdwn := func(text string) *slack.SectionBlock {
		return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
	}
	plain := func(text string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
	}

	return slack.HomeTabViewRequest{
		Type: slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewHeaderBlock(plain("Welcome to Regenie! 🚀")),
			slack.NewDividerBlock(),
			mrkdwn("*How to use this app:*"),
			mrkdwn("• Send a direct message to start a conversation\n• Mention the app in a channel with `@Regenie`\n• Use the app to get AI-powered assistance"),
			slack.NewDividerBlock(),
			mrkdwn("*Recent Updates*"),
			mrkdwn("• Added App Home interface\n• Improved response time\n• Enhanced conversation capabilities"),
			slack.NewDividerBlock(),
			slack.NewActionBlock("",
				slack.NewButtonBlockElement("start_conversation", "start_conversation", plain("Start a Conversation")).WithStyle(slack.StylePrimary),
				slack.NewButtonBlockElement("view_docs", "view_docs", plain("View Documentation")),
			),
		}},
	}
}

// splitSlackMessage cuts msg into chunks of at most maxLen bytes, preferring
// line breaks and never splitting a UTF-8 sequence.
func splitSlackMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		for cut > 0 && !isRuneStart(msg[cut]) {
			cut--
		}
		if idx := strings.LastIndex(msg[:cut], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
