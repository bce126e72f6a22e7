package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack/slackevents"
)

// EventHandler processes one decoded event. eventID is the envelope's
// event_id; it is empty for Socket Mode deliveries that lack one.
type EventHandler interface {
	HandleEvent(ctx context.Context, eventID string, ev Event) error
}

// ServerConfig configures the Events API webhook server.
type ServerConfig struct {
	Addr          string // listen address (default: :3000)
	EventsPath    string // default: /api/events
	SigningSecret string
	// BotUserID returns the bot's user ID at decode time.
	BotUserID func() string
	Handler   EventHandler
	// Routes are extra handlers mounted on the same mux (health, metrics).
	Routes map[string]http.Handler
	Logger *slog.Logger
}

// Server receives Slack Events API requests over HTTP.
type Server struct {
	addr          string
	path          string
	signingSecret string
	botUserID     func() string
	handler       EventHandler
	routes        map[string]http.Handler
	logger        *slog.Logger
	server        *http.Server
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":3000"
	}
	if cfg.EventsPath == "" {
		cfg.EventsPath = "/api/events"
	}
	if cfg.BotUserID == nil {
		cfg.BotUserID = func() string { return "" }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		addr:          cfg.Addr,
		path:          cfg.EventsPath,
		signingSecret: cfg.SigningSecret,
		botUserID:     cfg.BotUserID,
		handler:       cfg.Handler,
		routes:        cfg.Routes,
		logger:        cfg.Logger,
	}
}

// Handler returns the mux serving the events path and the extra routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleEvents)
	for pattern, h := range s.routes {
		mux.Handle(pattern, h)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("events server starting", "addr", s.addr, "path", s.path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("events server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("events server: %w", err)
	}
}

func (s *Server) handleEvents(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	apiEvent, err := ParseRequest(body)
	if err != nil {
		s.logger.Warn("invalid events payload", "err", err)
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	// Slack sends the challenge before the app is configured; it is
	// answered without a signature check.
	if apiEvent.Type == string(slackevents.URLVerification) {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(rw, "Bad Request", http.StatusBadRequest)
			return
		}
		rw.Header().Set("Content-Type", "text/plain")
		rw.WriteHeader(http.StatusOK)
		io.WriteString(rw, challenge.Challenge)
		return
	}

	if err := VerifyRequest(r.Header, body, s.signingSecret); err != nil {
		s.logger.Warn("request verification failed", "err", err)
		http.Error(rw, "Invalid request", http.StatusBadRequest)
		return
	}

	if apiEvent.Type != string(slackevents.CallbackEvent) {
		s.logger.Debug("unsupported envelope", "type", apiEvent.Type)
		http.Error(rw, "Unsupported request", http.StatusBadRequest)
		return
	}

	eventID := CallbackEventID(apiEvent)
	ev, err := DecodeEvent(apiEvent, s.botUserID())
	if err != nil {
		s.logger.Warn("invalid event", "event_id", eventID, "err", err)
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.handler.HandleEvent(r.Context(), eventID, ev); err != nil {
		s.logger.Error("event handling failed", "event_id", eventID, "kind", ev.Kind(), "err", err)
		http.Error(rw, "Error generating response", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusOK)
	io.WriteString(rw, "Success!")
}
