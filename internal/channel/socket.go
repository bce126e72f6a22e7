package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SocketConfig configures the Socket Mode transport.
type SocketConfig struct {
	Slack   *Slack // must be built with an app-level token
	Handler EventHandler
	Logger  *slog.Logger
}

// Socket receives events over a Socket Mode websocket instead of the
// public webhook.
type Socket struct {
	slack   *Slack
	handler EventHandler
	logger  *slog.Logger
}

func NewSocket(cfg SocketConfig) *Socket {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Socket{slack: cfg.Slack, handler: cfg.Handler, logger: cfg.Logger}
}

// Start connects and processes events until ctx is cancelled.
func (s *Socket) Start(ctx context.Context) error {
	client := s.slack.Client()
	if client == nil {
		return fmt.Errorf("socket mode: no slack client")
	}
	socketClient := socketmode.New(client)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-socketClient.Events:
				if !ok {
					return
				}
				s.handle(ctx, socketClient, evt)
			}
		}
	}()

	s.logger.Info("slack socket mode connecting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack socket mode shutting down")
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("socket mode: %w", err)
	}
}

func (s *Socket) handle(ctx context.Context, client *socketmode.Client, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		s.logger.Info("slack socket mode connected")
	case socketmode.EventTypeEventsAPI:
		if evt.Request == nil {
			return
		}
		client.Ack(*evt.Request)
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			s.logger.Warn("unexpected socket event payload", "type", fmt.Sprintf("%T", evt.Data))
			return
		}
		if err := s.dispatch(ctx, apiEvent); err != nil {
			s.logger.Error("socket event failed", "err", err)
		}
	default:
		// Unacknowledged requests are redelivered and eventually drop the
		// connection.
		if evt.Request != nil {
			client.Ack(*evt.Request)
		}
	}
}

// dispatch hands an events API payload to the handler, the same path the
// webhook takes after verification.
func (s *Socket) dispatch(ctx context.Context, apiEvent slackevents.EventsAPIEvent) error {
	if apiEvent.Type != string(slackevents.CallbackEvent) {
		s.logger.Debug("unsupported envelope", "type", apiEvent.Type)
		return nil
	}
	eventID := CallbackEventID(apiEvent)
	ev, err := DecodeEvent(apiEvent, s.slack.BotUserID())
	if err != nil {
		return fmt.Errorf("event %s: %w", eventID, err)
	}
	if err := s.handler.HandleEvent(ctx, eventID, ev); err != nil {
		return fmt.Errorf("event %s: %w", eventID, err)
	}
	return nil
}
