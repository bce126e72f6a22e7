package agent

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"regenie/internal/channel"
	"regenie/internal/domain"

	"github.com/slack-go/slack"
)

// slackAPI records the Slack calls a Handler makes. Methods the handler
// never reaches are left to the embedded nil interface.
type slackAPI struct {
	channel.API

	mu        sync.Mutex
	replies   []slack.Message
	calls     []string
	posts     []url.Values
	updates   []url.Values
	statuses  []string
	titles    []string
	prompts   []slack.AssistantThreadsSetSuggestedPromptsParameters
	views     []string
	publishFn func() error
}

func (a *slackAPI) record(call string) {
	a.calls = append(a.calls, call)
}

func (a *slackAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOT", BotID: "BBOT"}, nil
}

func (a *slackAPI) GetConversationRepliesContext(context.Context, *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("replies")
	return a.replies, false, "", nil
}

func (a *slackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("post")
	a.posts = append(a.posts, values)
	return channelID, "2.0", nil
}

func (a *slackAPI) UpdateMessageContext(_ context.Context, channelID, ts string, options ...slack.MsgOption) (string, string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("update")
	a.updates = append(a.updates, values)
	return channelID, ts, "", nil
}

func (a *slackAPI) SetAssistantThreadsStatusContext(_ context.Context, p slack.AssistantThreadsSetStatusParameters) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("status")
	a.statuses = append(a.statuses, p.Status)
	return nil
}

func (a *slackAPI) SetAssistantThreadsTitleContext(_ context.Context, p slack.AssistantThreadsSetTitleParameters) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("title")
	a.titles = append(a.titles, p.Title)
	return nil
}

func (a *slackAPI) SetAssistantThreadsSuggestedPromptsContext(_ context.Context, p slack.AssistantThreadsSetSuggestedPromptsParameters) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("prompts")
	a.prompts = append(a.prompts, p)
	return nil
}

func (a *slackAPI) PublishViewContext(_ context.Context, req slack.PublishViewContextRequest) (*slack.ViewResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("publish")
	a.views = append(a.views, req.UserID)
	if a.publishFn != nil {
		return nil, a.publishFn()
	}
	return &slack.ViewResponse{}, nil
}

// stubResponder returns a fixed result and records its inputs.
type stubResponder struct {
	mu       sync.Mutex
	result   domain.GenerationResult
	messages [][]domain.Message
	opts     []GenerateOptions
}

func (r *stubResponder) Generate(ctx context.Context, messages []domain.Message, opts GenerateOptions) domain.GenerationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, messages)
	r.opts = append(r.opts, opts)
	opts.Status.Emit(ctx, "is searching the web...")
	return r.result
}

func newTestHandler(t *testing.T, api *slackAPI, gen Responder) *Handler {
	t.Helper()
	s := channel.NewSlack(channel.SlackConfig{API: api, Personalities: builtinPersonalities(t), Logger: testLogger()})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	return NewHandler(HandlerConfig{Slack: s, Generator: gen, Logger: testLogger()})
}

func threadMessage(user, botID, text string) slack.Message {
	m := slack.Message{}
	m.User, m.BotID, m.Text = user, botID, text
	return m
}

func TestHandle_MentionOutsideThread(t *testing.T) {
	api := &slackAPI{}
	gen := &stubResponder{result: domain.GenerationResult{Response: "Bees pollinate 🐝", FollowUps: []string{}}}
	h := newTestHandler(t, api, gen)

	err := h.Handle(context.Background(), channel.AppMention{Channel: "C1", User: "U1", Text: "<@UBOT> what do bees do?", TS: "1.0"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(api.posts) != 1 || api.posts[0].Get("text") != ThinkingStatus || api.posts[0].Get("thread_ts") != "1.0" {
		t.Fatalf("status post = %v", api.posts)
	}
	if len(gen.messages) != 1 || len(gen.messages[0]) != 1 || gen.messages[0][0].Text != "what do bees do?" {
		t.Fatalf("generator input = %+v", gen.messages)
	}
	if opts := gen.opts[0]; opts.Schema != domain.SchemaSimple || opts.ChannelID != "C1" {
		t.Errorf("options = %+v", opts)
	}
	last := api.updates[len(api.updates)-1]
	if last.Get("text") != "Bees pollinate 🐝" {
		t.Errorf("final update = %v", last)
	}
	if len(api.updates) != 2 {
		t.Errorf("updates = %d, want status + answer", len(api.updates))
	}
}

func TestHandle_MentionInThread(t *testing.T) {
	api := &slackAPI{replies: []slack.Message{
		threadMessage("U1", "", "first"),
		threadMessage("U2", "", "<@UBOT> summarise"),
	}}
	gen := &stubResponder{result: domain.GenerationResult{Response: "summary", FollowUps: []string{}}}
	h := newTestHandler(t, api, gen)

	err := h.Handle(context.Background(), channel.AppMention{Channel: "C1", Text: "<@UBOT> summarise", TS: "3.0", ThreadTS: "1.0"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if api.posts[0].Get("thread_ts") != "1.0" {
		t.Errorf("status posted to %q", api.posts[0].Get("thread_ts"))
	}
	msgs := gen.messages[0]
	if len(msgs) != 2 || msgs[1].Text != "summarise" {
		t.Errorf("thread messages = %+v", msgs)
	}
}

func TestHandle_AssistantMessage(t *testing.T) {
	api := &slackAPI{replies: []slack.Message{threadMessage("U1", "", "tell me about bees")}}
	gen := &stubResponder{result: domain.GenerationResult{
		ThreadTitle: "🐝 Bees",
		Response:    "*Bees*",
		FollowUps:   []string{"More?"},
	}}
	h := newTestHandler(t, api, gen)

	if err := h.Handle(context.Background(), channel.AssistantMessage{Channel: "D1", User: "U1", Text: "tell me about bees", TS: "2.0", ThreadTS: "1.0"}); err != nil {
		t.Fatalf("handle: %v", err)
	}

	want := []string{"status", "replies", "status", "post", "title", "prompts", "status"}
	if len(api.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", api.calls, want)
	}
	for i := range want {
		if api.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", api.calls, want)
		}
	}
	if api.statuses[len(api.statuses)-1] != "" {
		t.Error("status was not cleared")
	}
	if gen.opts[0].Schema != domain.SchemaFull || gen.opts[0].ChannelID != "D1" {
		t.Errorf("options = %+v", gen.opts[0])
	}
	if api.titles[0] != "🐝 Bees" {
		t.Errorf("title = %q", api.titles[0])
	}
	if p := api.prompts[0]; len(p.Prompts) != 1 || p.Prompts[0].Message != "More?" {
		t.Errorf("prompts = %+v", p)
	}
	if api.posts[0].Get("blocks") == "" {
		t.Error("expected block kit answer")
	}
}

func TestHandle_AssistantMessageFailureSkipsTitleAndPrompts(t *testing.T) {
	api := &slackAPI{replies: []slack.Message{threadMessage("U1", "", "hi")}}
	gen := &stubResponder{result: domain.GenerationResult{Response: FailureMessage, FollowUps: []string{}}}
	h := newTestHandler(t, api, gen)

	if err := h.Handle(context.Background(), channel.AssistantMessage{Channel: "D1", TS: "2.0", ThreadTS: "1.0"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(api.titles) != 0 || len(api.prompts) != 0 {
		t.Errorf("titles = %v prompts = %v", api.titles, api.prompts)
	}
	if api.posts[0].Get("text") != FailureMessage {
		t.Errorf("posted %q", api.posts[0].Get("text"))
	}
}

func TestHandle_AssistantMessageEmptyThread(t *testing.T) {
	api := &slackAPI{}
	h := newTestHandler(t, api, &stubResponder{})

	err := h.Handle(context.Background(), channel.AssistantMessage{Channel: "D1", TS: "2.0", ThreadTS: "1.0"})
	if !errors.Is(err, channel.ErrThreadNotFound) {
		t.Fatalf("err = %v, want ErrThreadNotFound", err)
	}
	if len(api.statuses) != 2 || api.statuses[1] != "" {
		t.Fatalf("status should be cleared after a failed thread read, got %q", api.statuses)
	}
	if len(api.posts) != 0 {
		t.Errorf("nothing should be posted, got %v", api.posts)
	}
}

func TestHandle_ThreadStarted(t *testing.T) {
	api := &slackAPI{}
	h := newTestHandler(t, api, &stubResponder{})

	if err := h.Handle(context.Background(), channel.AssistantThreadStarted{Channel: "D1", ThreadTS: "1.0", User: "U1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(api.posts) != 1 || api.posts[0].Get("thread_ts") != "1.0" {
		t.Fatalf("posts = %v", api.posts)
	}
	welcome := api.posts[0].Get("text")
	found := false
	for _, m := range welcomeMessages {
		found = found || m == welcome
	}
	if !found {
		t.Errorf("unexpected welcome %q", welcome)
	}
	if len(api.prompts) != 1 || len(api.prompts[0].Prompts) != 3 || api.prompts[0].Title == "" {
		t.Errorf("prompts = %+v", api.prompts)
	}
}

func TestHandle_HomeOpened(t *testing.T) {
	api := &slackAPI{publishFn: func() error { return errors.New("views.publish failed") }}
	h := newTestHandler(t, api, &stubResponder{})

	if err := h.Handle(context.Background(), channel.AppHomeOpened{User: "U1", Tab: "home"}); err != nil {
		t.Fatalf("home publish failures must not fail the event: %v", err)
	}
	if len(api.views) != 1 || api.views[0] != "U1" {
		t.Errorf("views = %v", api.views)
	}
}

func TestHandle_Ignored(t *testing.T) {
	api := &slackAPI{}
	h := newTestHandler(t, api, &stubResponder{})
	if err := h.Handle(context.Background(), channel.Ignored{Type: "message", Reason: "bot sender"}); err != nil {
		t.Fatal(err)
	}
	if len(api.calls) != 0 {
		t.Errorf("ignored event made calls: %v", api.calls)
	}
}
