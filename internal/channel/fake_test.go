package channel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"regenie/internal/personality"

	"github.com/slack-go/slack"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// postedMessage is a chat.postMessage or chat.update call as Slack would
// receive it.
type postedMessage struct {
	Channel string
	TS      string // set for updates
	Values  url.Values
}

type fakeAPI struct {
	mu sync.Mutex

	replies     []slack.Message
	repliesErr  error
	files       map[string]*slack.File
	downloads   map[string]string
	downloadErr map[string]error

	repliesReq *slack.GetConversationRepliesParameters
	posts      []postedMessage
	updates    []postedMessage
	statuses   []slack.AssistantThreadsSetStatusParameters
	titles     []slack.AssistantThreadsSetTitleParameters
	prompts    []slack.AssistantThreadsSetSuggestedPromptsParameters
	views      []string
	viewTypes  []slack.ViewType
	viewCtx    context.Context
}

var _ API = (*fakeAPI)(nil)

func (f *fakeAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOT", BotID: "BBOT", User: "regenie", Team: "test"}, nil
}

func (f *fakeAPI) GetConversationRepliesContext(_ context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	f.mu.Lock()
	f.repliesReq = params
	f.mu.Unlock()
	return f.replies, false, "", f.repliesErr
}

func (f *fakeAPI) GetFileInfoContext(_ context.Context, fileID string, _, _ int) (*slack.File, []slack.Comment, *slack.Paging, error) {
	if file, ok := f.files[fileID]; ok {
		return file, nil, nil, nil
	}
	return nil, nil, nil, errors.New("file_not_found")
}

func (f *fakeAPI) GetFileContext(_ context.Context, downloadURL string, w io.Writer) error {
	if err := f.downloadErr[downloadURL]; err != nil {
		return err
	}
	body, ok := f.downloads[downloadURL]
	if !ok {
		return errors.New("not found")
	}
	_, err := io.Copy(w, strings.NewReader(body))
	return err
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, postedMessage{Channel: channelID, Values: values})
	return channelID, "1700000000.000100", nil
}

func (f *fakeAPI) UpdateMessageContext(_ context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, postedMessage{Channel: channelID, TS: timestamp, Values: values})
	return channelID, timestamp, "", nil
}

func (f *fakeAPI) SetAssistantThreadsStatusContext(_ context.Context, params slack.AssistantThreadsSetStatusParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, params)
	return nil
}

func (f *fakeAPI) SetAssistantThreadsTitleContext(_ context.Context, params slack.AssistantThreadsSetTitleParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, params)
	return nil
}

func (f *fakeAPI) SetAssistantThreadsSuggestedPromptsContext(_ context.Context, params slack.AssistantThreadsSetSuggestedPromptsParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, params)
	return nil
}

func (f *fakeAPI) PublishViewContext(ctx context.Context, req slack.PublishViewContextRequest) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.views = append(f.views, req.UserID)
	f.viewCtx = ctx
	f.viewTypes = append(f.viewTypes, req.View.Type)
	return &slack.ViewResponse{}, nil
}

// newTestSlack returns a connected Slack backed by api.
func newTestSlack(t *testing.T, api *fakeAPI) *Slack {
	t.Helper()
	reg, err := personality.Builtin()
	if err != nil {
		t.Fatalf("personalities: %v", err)
	}
	s := NewSlack(SlackConfig{API: api, Personalities: reg, Logger: testLogger()})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return s
}
