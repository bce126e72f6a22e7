package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"regenie/internal/domain"
	"regenie/internal/metrics"
	"regenie/internal/mrkdwn"
	"regenie/internal/personality"
)

const (
	defaultMaxSteps         = 10
	defaultMaxAttempts      = 3
	defaultRetryDelay       = time.Second
	defaultLLMMaxTokens     = 5000
	defaultMaxParallelTools = 5
	defaultRateBurst        = 5
)

// ErrMaxSteps is returned by an attempt whose tool loop did not reach a
// final answer within the step limit.
var ErrMaxSteps = errors.New("tool loop exceeded max steps")

// ToolRunner executes model tool calls. *tool.Registry satisfies it.
type ToolRunner interface {
	Definitions() []domain.ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any, status domain.StatusFunc) (string, error)
}

// GenerateOptions tune one Generate call.
type GenerateOptions struct {
	Status    domain.StatusFunc
	ChannelID string            // selects the personality
	Schema    domain.SchemaKind // empty = the personality's schema
}

// GeneratorConfig holds the dependencies and tuning of a Generator.
type GeneratorConfig struct {
	Provider      domain.Provider
	Tools         ToolRunner // optional
	Personalities *personality.Registry
	Metrics       *metrics.Metrics // optional
	Logger        *slog.Logger

	Model       string
	Temperature float64
	MaxTokens   int
	MaxSteps    int
	MaxAttempts int
	RetryDelay  time.Duration
	// RatePerMinute throttles model calls; 0 disables throttling.
	RatePerMinute float64

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Generator turns a conversation into a structured answer: personality
// prompt, model call with tools, schema validation and retries.
type Generator struct {
	provider      domain.Provider
	tools         ToolRunner
	personalities *personality.Registry
	metrics       *metrics.Metrics
	logger        *slog.Logger
	limiter       *RateLimiter

	model       string
	temperature float64
	maxTokens   int
	maxSteps    int
	maxAttempts int
	retryDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultLLMMaxTokens
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{
		provider:      cfg.Provider,
		tools:         cfg.Tools,
		personalities: cfg.Personalities,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		limiter:       NewRateLimiter(defaultRateBurst, cfg.RatePerMinute),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		maxSteps:      cfg.MaxSteps,
		maxAttempts:   cfg.MaxAttempts,
		retryDelay:    cfg.RetryDelay,
		sleep:         cfg.Sleep,
		now:           cfg.Now,
	}
}

// Generate answers messages. It never fails: when every attempt errors the
// result carries FailureMessage and the last error is only logged.
func (g *Generator) Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) domain.GenerationResult {
	p := g.personalities.ForChannel(opts.ChannelID)
	kind := opts.Schema
	if !kind.Valid() {
		kind = p.Schema
	}
	if !kind.Valid() {
		kind = domain.SchemaFull
	}

	system := domain.TextMessage(domain.RoleSystem, personality.SystemMessage(p.Prompt(g.now()), kind))
	input := append([]domain.Message{system}, messages...)

	start := time.Now()
	defer func() { g.metrics.GenerationDone(string(kind), time.Since(start)) }()

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		opts.Status.Emit(ctx, pick(thinkingStatuses))

		result, err := g.attempt(ctx, input, kind, opts.Status)
		if err == nil {
			g.metrics.GenerationAttempt("ok")
			g.logger.Debug("generation succeeded",
				"attempt", attempt,
				"personality", p.Key,
				"schema", kind,
				"channel", opts.ChannelID,
			)
			return result
		}

		lastErr = err
		g.metrics.GenerationAttempt("error")
		g.logger.Warn("generation attempt failed",
			"attempt", attempt,
			"max_attempts", g.maxAttempts,
			"personality", p.Key,
			"channel", opts.ChannelID,
			"err", err,
		)
		opts.Status.Emit(ctx, fmt.Sprintf("Hmm, that didn't work. Retrying... (%d/%d)", attempt, g.maxAttempts))

		if attempt < g.maxAttempts {
			if err := g.sleep(ctx, time.Duration(attempt)*g.retryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	g.logger.Error("generation failed after retries", "channel", opts.ChannelID, "err", lastErr)
	return domain.GenerationResult{Response: FailureMessage, FollowUps: []string{}}
}

// attempt runs one model conversation, resolving tool calls until the model
// produces a final answer.
func (g *Generator) attempt(ctx context.Context, input []domain.Message, kind domain.SchemaKind, status domain.StatusFunc) (domain.GenerationResult, error) {
	format, err := responseFormat(kind)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	var toolDefs []domain.ToolDefinition
	if g.tools != nil {
		toolDefs = g.tools.Definitions()
	}

	temperature := g.temperature
	messages := slices.Clone(input)
	for step := 0; step < g.maxSteps; step++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return domain.GenerationResult{}, fmt.Errorf("rate limit: %w", err)
		}

		resp, err := g.provider.Chat(ctx, domain.ChatRequest{
			Messages:       messages,
			Tools:          toolDefs,
			Model:          g.model,
			MaxTokens:      g.maxTokens,
			Temperature:    &temperature,
			ResponseFormat: format,
		})
		if err != nil {
			return domain.GenerationResult{}, fmt.Errorf("model call: %w", err)
		}
		g.metrics.Tokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if !resp.HasToolCalls() {
			out, err := parseResponse(kind, resp.Content)
			if err != nil {
				return domain.GenerationResult{}, err
			}
			return domain.GenerationResult{
				ThreadTitle: out.ThreadTitle,
				Response:    mrkdwn.Convert(out.Response),
				FollowUps:   out.FollowUps,
			}, nil
		}

		messages = append(messages, domain.Message{
			Role:      domain.RoleAssistant,
			Text:      resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		messages = append(messages, g.runTools(ctx, resp.ToolCalls, status)...)
	}
	return domain.GenerationResult{}, fmt.Errorf("%w (%d)", ErrMaxSteps, g.maxSteps)
}

// runTools executes calls with bounded parallelism and returns the tool
// messages in call order.
func (g *Generator) runTools(ctx context.Context, calls []domain.ToolCall, status domain.StatusFunc) []domain.Message {
	results := make([]domain.Message, len(calls))
	sem := make(chan struct{}, defaultMaxParallelTools)
	var wg sync.WaitGroup

	for i, tc := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = domain.Message{
				Role:       domain.RoleTool,
				Text:       g.executeTool(ctx, tc, status),
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			}
		}()
	}
	wg.Wait()
	return results
}

func (g *Generator) executeTool(ctx context.Context, tc domain.ToolCall, status domain.StatusFunc) string {
	if g.tools == nil {
		return fmt.Sprintf("Error executing tool %s: no tools available", tc.Name)
	}
	g.logger.Info("executing tool", "tool", tc.Name)

	start := time.Now()
	result, err := g.tools.Execute(ctx, tc.Name, tc.Arguments, status)
	g.metrics.ToolCall(tc.Name, time.Since(start), err)
	if err != nil {
		g.logger.Warn("tool failed", "tool", tc.Name, "err", err)
		return fmt.Sprintf("Error executing tool %s: %s", tc.Name, err.Error())
	}
	g.logger.Debug("tool completed", "tool", tc.Name, "result_len", len(result))
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
