package tool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"regenie/internal/domain"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// stubTool is a minimal tool for testing the registry.
type stubTool struct {
	name   string
	result any
	err    error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub: " + s.name }
func (s *stubTool) Parameters() jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Object}
}
func (s *stubTool) Execute(ctx context.Context, args map[string]any, status domain.StatusFunc) (any, error) {
	status.Emit(ctx, "running "+s.name)
	return s.result, s.err
}

var _ domain.Tool = (*stubTool)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "test_tool", result: "ok"})

	got := reg.Get("test_tool")
	if got == nil {
		t.Fatal("expected to find registered tool")
	}
	if got.Name() != "test_tool" {
		t.Fatalf("expected 'test_tool', got %q", got.Name())
	}
	if reg.Get("nonexistent") != nil {
		t.Fatal("expected nil for unknown tool")
	}
}

func TestRegistry_ExecuteEncodesJSON(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "weather", result: WeatherReport{Temperature: 12.5, City: "York"}})

	var statuses []string
	status := func(_ context.Context, s string) { statuses = append(statuses, s) }

	result, err := reg.Execute(context.Background(), "weather", nil, status)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := `{"temperature":12.5,"weatherCode":0,"humidity":0,"city":"York"}`
	if result != want {
		t.Fatalf("got %s, want %s", result, want)
	}
	if len(statuses) != 1 || statuses[0] != "running weather" {
		t.Fatalf("status not forwarded: %v", statuses)
	}
}

func TestRegistry_ExecuteStringPassthrough(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "echo", result: "hello"})

	result, err := reg.Execute(context.Background(), "echo", nil, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "hello" {
		t.Fatalf("expected 'hello', got %q", result)
	}
}

func TestRegistry_ExecuteErrors(t *testing.T) {
	reg := NewRegistry(testLogger())
	boom := errors.New("boom")
	reg.Register(&stubTool{name: "bad", err: boom})

	if _, err := reg.Execute(context.Background(), "missing", nil, nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
	_, err := reg.Execute(context.Background(), "bad", nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped tool error, got %v", err)
	}
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "search_web"})
	reg.Register(&stubTool{name: "get_weather"})
	reg.Register(&stubTool{name: "get_contents"})

	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	if defs[0].Name != "get_contents" || defs[2].Name != "search_web" {
		t.Fatalf("definitions not sorted: %v", defs)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "dup", result: "v1"})
	reg.Register(&stubTool{name: "dup", result: "v2"})

	result, _ := reg.Execute(context.Background(), "dup", nil, nil)
	if result != "v2" {
		t.Fatalf("expected overwritten tool result 'v2', got %q", result)
	}
}

func TestToolParameters(t *testing.T) {
	params := ToolParameters(
		map[string]Param{
			"query":          {Type: jsonschema.String, Description: "Search query"},
			"specificDomain": {Type: jsonschema.String, Description: "Domain"},
		},
		[]string{"query"},
	)

	if params.Type != jsonschema.Object {
		t.Fatal("expected type=object")
	}
	if len(params.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(params.Properties))
	}
	if params.Properties["query"].Description != "Search query" {
		t.Fatalf("unexpected description %q", params.Properties["query"].Description)
	}
	if len(params.Required) != 1 || params.Required[0] != "query" {
		t.Fatalf("unexpected required: %v", params.Required)
	}
}

func TestArgsString(t *testing.T) {
	if got := ArgsString(map[string]any{"key": "value"}, "key"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
	if got := ArgsString(map[string]any{"other": "value"}, "key"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := ArgsString(nil, "key"); got != "" {
		t.Fatalf("expected empty for nil args, got %q", got)
	}
	if got := ArgsString(map[string]any{"num": 42.0}, "num"); got != "42" {
		t.Fatalf("expected JSON for numeric value, got %q", got)
	}
}

func TestArgsFloat(t *testing.T) {
	args := map[string]any{"a": 51.5, "b": "-0.12", "c": "north", "d": 3}
	if v, ok := ArgsFloat(args, "a"); !ok || v != 51.5 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if v, ok := ArgsFloat(args, "b"); !ok || v != -0.12 {
		t.Errorf("b = %v, %v", v, ok)
	}
	if _, ok := ArgsFloat(args, "c"); ok {
		t.Error("c should not parse")
	}
	if v, ok := ArgsFloat(args, "d"); !ok || v != 3 {
		t.Errorf("d = %v, %v", v, ok)
	}
	if _, ok := ArgsFloat(args, "missing"); ok {
		t.Error("missing should not parse")
	}
}
