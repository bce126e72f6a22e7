package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"regenie/internal/domain"
	"regenie/internal/personality"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedProvider replays one response or error per Chat call.
type scriptedProvider struct {
	mu       sync.Mutex
	steps    []scriptStep
	requests []domain.ChatRequest
}

type scriptStep struct {
	resp *domain.ChatResponse
	err  error
}

func reply(content string) scriptStep {
	return scriptStep{resp: &domain.ChatResponse{Content: content, FinishReason: "stop"}}
}

func fail(msg string) scriptStep { return scriptStep{err: errors.New(msg)} }

func toolCall(id, name string, args map[string]any) scriptStep {
	return scriptStep{resp: &domain.ChatResponse{
		ToolCalls:    []domain.ToolCall{{ID: id, Name: name, Arguments: args}},
		FinishReason: "tool_calls",
	}}
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.steps) == 0 {
		return nil, errors.New("script exhausted")
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step.resp, step.err
}

func (p *scriptedProvider) Name() string                 { return "scripted" }
func (p *scriptedProvider) Healthy(context.Context) error { return nil }

// fakeTools implements ToolRunner.
type fakeTools struct {
	mu     sync.Mutex
	calls  []string
	result string
	err    error
}

func (f *fakeTools) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "get_weather", Description: "weather"}}
}

func (f *fakeTools) Execute(ctx context.Context, name string, args map[string]any, status domain.StatusFunc) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	status.Emit(ctx, "is getting weather for London...")
	return f.result, f.err
}

// sleepRecorder replaces the retry sleep.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

// statusLog collects emitted statuses.
type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (s *statusLog) fn() domain.StatusFunc {
	return func(_ context.Context, status string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lines = append(s.lines, status)
	}
}

func builtinPersonalities(t *testing.T) *personality.Registry {
	t.Helper()
	reg, err := personality.Builtin()
	if err != nil {
		t.Fatalf("personalities: %v", err)
	}
	return reg
}

var fixedNow = func() time.Time { return time.Date(2025, 5, 14, 9, 30, 0, 0, time.UTC) }

func newTestGenerator(t *testing.T, p domain.Provider, tools ToolRunner, sleeper *sleepRecorder) *Generator {
	t.Helper()
	return NewGenerator(GeneratorConfig{
		Provider:      p,
		Tools:         tools,
		Personalities: builtinPersonalities(t),
		Logger:        testLogger(),
		Model:         "gpt-4.1-mini",
		Temperature:   0.7,
		MaxTokens:     5000,
		MaxSteps:      3,
		MaxAttempts:   3,
		RetryDelay:    time.Second,
		Sleep:         sleeper.sleep,
		Now:           fixedNow,
	})
}
