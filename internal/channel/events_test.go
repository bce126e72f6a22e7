package channel

import "testing"

// callback wraps an inner event in an event_callback envelope.
func callback(inner string) string {
	return `{"type":"event_callback","event_id":"Ev1","event":` + inner + `}`
}

func decode(t *testing.T, inner string) (Event, error) {
	t.Helper()
	apiEvent, err := ParseRequest([]byte(callback(inner)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return DecodeEvent(apiEvent, "UBOT")
}

func TestParseRequest(t *testing.T) {
	apiEvent, err := ParseRequest([]byte(callback(`{"type":"app_mention","channel":"C1","ts":"1.0"}`)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if apiEvent.Type != "event_callback" || CallbackEventID(apiEvent) != "Ev1" {
		t.Fatalf("unexpected event: %+v", apiEvent)
	}

	verification, err := ParseRequest([]byte(`{"type":"url_verification","challenge":"abc"}`))
	if err != nil {
		t.Fatalf("parse url_verification: %v", err)
	}
	if verification.Type != "url_verification" || CallbackEventID(verification) != "" {
		t.Fatalf("unexpected verification: %+v", verification)
	}

	for _, raw := range []string{
		`not json`,
		`{"event_id":"Ev1"}`,
		`{"type":"event_callback","event_id":"Ev1"}`,
		`{"type":"event_callback","event_id":"Ev1","event":null}`,
		`{"type":"event_callback","event_id":"Ev1","event":{}}`,
		`{"type":"event_callback","event_id":"Ev1","event":{"type":"app_home_opened","tab":7}}`,
	} {
		if _, err := ParseRequest([]byte(raw)); err == nil {
			t.Errorf("ParseRequest(%q): expected error", raw)
		}
	}
}

func TestParseRequest_UnmappedInnerEvent(t *testing.T) {
	apiEvent, err := ParseRequest([]byte(callback(`{"type":"workflow_future_thing","user":"U1"}`)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if CallbackEventID(apiEvent) != "Ev1" {
		t.Fatalf("event id lost: %+v", apiEvent)
	}
	got, err := DecodeEvent(apiEvent, "UBOT")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Ignored{Type: "workflow_future_thing", Reason: "unsupported event type"}
	if got != want {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "mention",
			raw:  `{"type":"app_mention","channel":"C1","user":"U1","text":"<@UBOT> hi","ts":"1.0"}`,
			want: AppMention{Channel: "C1", User: "U1", Text: "<@UBOT> hi", TS: "1.0"},
		},
		{
			name: "mention from bot",
			raw:  `{"type":"app_mention","channel":"C1","bot_id":"B9","text":"hi","ts":"1.0"}`,
			want: Ignored{Type: "app_mention", Reason: "bot sender"},
		},
		{
			name: "dm in thread",
			raw:  `{"type":"message","channel_type":"im","channel":"D1","user":"U1","text":"hello","ts":"2.0","thread_ts":"1.0"}`,
			want: AssistantMessage{Channel: "D1", User: "U1", Text: "hello", TS: "2.0", ThreadTS: "1.0"},
		},
		{
			name: "dm file share",
			raw:  `{"type":"message","subtype":"file_share","channel_type":"im","channel":"D1","user":"U1","text":"<@UBOT> look","ts":"2.0","thread_ts":"1.0"}`,
			want: AssistantMessage{Channel: "D1", User: "U1", Text: "<@UBOT> look", TS: "2.0", ThreadTS: "1.0", SubType: "file_share"},
		},
		{
			name: "dm outside thread",
			raw:  `{"type":"message","channel_type":"im","channel":"D1","user":"U1","text":"hello","ts":"2.0"}`,
			want: Ignored{Type: "message", Reason: "direct message outside a thread"},
		},
		{
			name: "dm edit",
			raw:  `{"type":"message","subtype":"message_changed","channel_type":"im","channel":"D1","ts":"2.0","thread_ts":"1.0"}`,
			want: Ignored{Type: "message", Reason: "subtype message_changed"},
		},
		{
			name: "dm from bot profile",
			raw:  `{"type":"message","channel_type":"im","channel":"D1","text":"hi","ts":"2.0","thread_ts":"1.0","bot_profile":{"id":"B1"}}`,
			want: Ignored{Type: "message", Reason: "bot sender"},
		},
		{
			name: "own dm",
			raw:  `{"type":"message","channel_type":"im","channel":"D1","user":"UBOT","text":"hi","ts":"2.0","thread_ts":"1.0","bot_profile":null}`,
			want: Ignored{Type: "message", Reason: "bot sender"},
		},
		{
			name: "channel file share mentioning bot",
			raw:  `{"type":"message","subtype":"file_share","channel_type":"channel","channel":"C1","user":"U1","text":"<@UBOT> what is this","ts":"3.0"}`,
			want: AppMention{Channel: "C1", User: "U1", Text: "<@UBOT> what is this", TS: "3.0"},
		},
		{
			name: "channel message",
			raw:  `{"type":"message","channel_type":"channel","channel":"C1","user":"U1","text":"<@UBOT> hi","ts":"3.0"}`,
			want: Ignored{Type: "message", Reason: "message not addressed to the bot"},
		},
		{
			name: "home opened",
			raw:  `{"type":"app_home_opened","user":"U1","tab":"home"}`,
			want: AppHomeOpened{User: "U1", Tab: "home"},
		},
		{
			name: "assistant thread started",
			raw:  `{"type":"assistant_thread_started","assistant_thread":{"user_id":"U1","channel_id":"D1","thread_ts":"1.0"}}`,
			want: AssistantThreadStarted{Channel: "D1", ThreadTS: "1.0", User: "U1"},
		},
		{
			name: "unknown",
			raw:  `{"type":"reaction_added"}`,
			want: Ignored{Type: "reaction_added", Reason: "unsupported event type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(t, tt.raw)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	if _, err := decode(t, `{"type":"assistant_thread_started"}`); err == nil {
		t.Error("expected error for assistant thread without channel")
	}

	outer, err := ParseRequest([]byte(`{"type":"app_rate_limited","minute_rate_limited":1}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := DecodeEvent(outer, "UBOT"); err == nil {
		t.Error("expected error for non-callback payload")
	}
}

func TestAppMention_ThreadRoot(t *testing.T) {
	if got := (AppMention{TS: "2.0"}).ThreadRoot(); got != "2.0" {
		t.Errorf("root without thread = %q", got)
	}
	if got := (AppMention{TS: "2.0", ThreadTS: "1.0"}).ThreadRoot(); got != "1.0" {
		t.Errorf("root in thread = %q", got)
	}
}

func TestChannelOf(t *testing.T) {
	if got := ChannelOf(AssistantMessage{Channel: "D1"}); got != "D1" {
		t.Errorf("got %q", got)
	}
	if got := ChannelOf(AppHomeOpened{User: "U1"}); got != "" {
		t.Errorf("home has no channel, got %q", got)
	}
}
