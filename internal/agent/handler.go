package agent

import (
	"context"
	"fmt"
	"log/slog"

	"regenie/internal/channel"
	"regenie/internal/domain"
)

// Responder produces an answer for a conversation. *Generator satisfies it.
type Responder interface {
	Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) domain.GenerationResult
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Slack     *channel.Slack
	Generator Responder
	Logger    *slog.Logger
}

// Handler runs the per-event flow: status, thread read, generation and
// rendering back into Slack.
type Handler struct {
	slack     *channel.Slack
	generator Responder
	logger    *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{slack: cfg.Slack, generator: cfg.Generator, logger: cfg.Logger}
}

// Handle processes one decoded event to completion.
func (h *Handler) Handle(ctx context.Context, ev channel.Event) error {
	switch e := ev.(type) {
	case channel.AppMention:
		return h.handleMention(ctx, e)
	case channel.AssistantThreadStarted:
		return h.handleThreadStarted(ctx, e)
	case channel.AssistantMessage:
		return h.handleAssistantMessage(ctx, e)
	case channel.AppHomeOpened:
		h.handleHomeOpened(ctx, e)
		return nil
	case channel.Ignored:
		h.logger.Debug("event ignored", "type", e.Type, "reason", e.Reason)
		return nil
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

// handleMention answers an @-mention in a channel by rewriting a status
// message posted in the thread.
func (h *Handler) handleMention(ctx context.Context, e channel.AppMention) error {
	status, err := h.slack.PostStatusMessage(ctx, e.Channel, e.ThreadRoot(), ThinkingStatus)
	if err != nil {
		return fmt.Errorf("mention: %w", err)
	}

	var messages []domain.Message
	if e.ThreadTS != "" {
		messages, err = h.slack.GetThread(ctx, e.Channel, e.ThreadTS)
		if err != nil {
			return fmt.Errorf("mention: %w", err)
		}
	} else {
		messages = []domain.Message{domain.TextMessage(domain.RoleUser, h.slack.StripMention(e.Text))}
	}

	result := h.generator.Generate(ctx, messages, GenerateOptions{
		Status:    status.StatusFunc(),
		ChannelID: e.Channel,
		Schema:    domain.SchemaSimple,
	})
	if err := status.Update(ctx, result.Response); err != nil {
		return fmt.Errorf("mention: %w", err)
	}
	return nil
}

// handleThreadStarted greets a new assistant thread and offers starter
// prompts.
func (h *Handler) handleThreadStarted(ctx context.Context, e channel.AssistantThreadStarted) error {
	if _, err := h.slack.PostMessage(ctx, e.Channel, e.ThreadTS, pick(welcomeMessages)); err != nil {
		return fmt.Errorf("thread started: %w", err)
	}
	prompts := randomSubList(initialFollowUps, initialFollowUpCount)
	if err := h.slack.SetSuggestedPrompts(ctx, e.Channel, e.ThreadTS, prompts, pick(initialFollowUpTitles)); err != nil {
		return fmt.Errorf("thread started: %w", err)
	}
	return nil
}

// handleAssistantMessage answers a message in an assistant DM thread with
// the full schema: reply, thread title and follow-up prompts.
func (h *Handler) handleAssistantMessage(ctx context.Context, e channel.AssistantMessage) error {
	updateStatus := h.slack.StatusUpdater(e.Channel, e.ThreadTS)
	updateStatus.Emit(ctx, pick(thinkingStatuses))

	messages, err := h.slack.GetThread(ctx, e.Channel, e.ThreadTS)
	if err != nil {
		updateStatus.Emit(ctx, "")
		return fmt.Errorf("assistant message: %w", err)
	}

	result := h.generator.Generate(ctx, messages, GenerateOptions{
		Status:    updateStatus,
		ChannelID: e.Channel,
		Schema:    domain.SchemaFull,
	})

	if _, err := h.slack.PostMessageWithContext(ctx, e.Channel, e.ThreadTS, result.Response, true, true); err != nil {
		return fmt.Errorf("assistant message: %w", err)
	}
	if result.ThreadTitle != "" {
		if err := h.slack.UpdateTitle(ctx, e.Channel, e.ThreadTS, result.ThreadTitle); err != nil {
			h.logger.Warn("thread title update failed", "channel", e.Channel, "err", err)
		}
	}
	if err := h.slack.SetSuggestedPrompts(ctx, e.Channel, e.ThreadTS, result.FollowUps, pick(followUpTitles)); err != nil {
		h.logger.Warn("follow-up prompts failed", "channel", e.Channel, "err", err)
	}
	updateStatus.Emit(ctx, "")
	return nil
}

func (h *Handler) handleHomeOpened(ctx context.Context, e channel.AppHomeOpened) {
	if err := h.slack.PublishHome(ctx, e.User); err != nil {
		h.logger.Error("app home publish failed", "user", e.User, "err", err)
	}
}
