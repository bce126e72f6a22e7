package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slack-go/slack/slackevents"
)

const (
	subtypeFileShare = "file_share"
	channelTypeIM    = "im"
)

// ParseRequest parses an Events API payload. Callbacks whose inner event
// type slackevents has no mapping for come back with a nil inner payload
// and decode to Ignored.
func ParseRequest(body []byte) (slackevents.EventsAPIEvent, error) {
	var outer slackevents.EventsAPICallbackEvent
	if err := json.Unmarshal(body, &outer); err != nil {
		return slackevents.EventsAPIEvent{}, fmt.Errorf("parse events payload: %w", err)
	}
	if outer.Type == "" {
		return slackevents.EventsAPIEvent{}, fmt.Errorf("parse events payload: missing type")
	}
	isCallback := outer.Type == string(slackevents.CallbackEvent)
	if isCallback && outer.InnerEvent == nil {
		return slackevents.EventsAPIEvent{}, fmt.Errorf("parse events payload: event_callback without event")
	}

	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err == nil {
		return ev, nil
	}
	if isCallback {
		var inner struct {
			Type string `json:"type"`
		}
		jerr := json.Unmarshal(*outer.InnerEvent, &inner)
		_, mapped := slackevents.EventsAPIInnerEventMapping[slackevents.EventsAPIType(inner.Type)]
		if jerr == nil && inner.Type != "" && !mapped {
			return slackevents.EventsAPIEvent{
				Token:        outer.Token,
				TeamID:       outer.TeamID,
				Type:         outer.Type,
				APIAppID:     outer.APIAppID,
				EnterpriseID: outer.EnterpriseID,
				Data:         &outer,
				InnerEvent:   slackevents.EventsAPIInnerEvent{Type: inner.Type},
			}, nil
		}
	}
	return slackevents.EventsAPIEvent{}, fmt.Errorf("parse events payload: %w", err)
}

// CallbackEventID returns the event_id of a callback, or "" for other
// payloads.
func CallbackEventID(ev slackevents.EventsAPIEvent) string {
	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok {
		return cb.EventID
	}
	return ""
}

// Event is one inbound Slack event the bot reacts to. The concrete types
// are AppMention, AssistantMessage, AssistantThreadStarted, AppHomeOpened
// and Ignored.
type Event interface {
	Kind() string
	isEvent()
}

// AppMention is an @-mention of the bot in a channel, including file shares
// whose text mentions the bot.
type AppMention struct {
	Channel  string
	User     string
	Text     string
	TS       string
	ThreadTS string
}

// ThreadRoot is the ts replies to this mention belong under.
func (e AppMention) ThreadRoot() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// AssistantMessage is a user message inside an assistant DM thread.
type AssistantMessage struct {
	Channel  string
	User     string
	Text     string
	TS       string
	ThreadTS string
	SubType  string
}

// AssistantThreadStarted fires when a user opens a new assistant thread.
type AssistantThreadStarted struct {
	Channel  string
	ThreadTS string
	User     string
}

// AppHomeOpened fires when a user opens the app's Home tab.
type AppHomeOpened struct {
	User string
	Tab  string
}

// Ignored is any event the bot does not act on.
type Ignored struct {
	Type   string
	Reason string
}

func (AppMention) Kind() string             { return "app_mention" }
func (AssistantMessage) Kind() string       { return "assistant_message" }
func (AssistantThreadStarted) Kind() string { return string(slackevents.AssistantThreadStarted) }
func (AppHomeOpened) Kind() string          { return "app_home_opened" }
func (Ignored) Kind() string                { return "ignored" }

func (AppMention) isEvent()             {}
func (AssistantMessage) isEvent()       {}
func (AssistantThreadStarted) isEvent() {}
func (AppHomeOpened) isEvent()          {}
func (Ignored) isEvent()                {}

// ChannelOf returns the Slack channel an event belongs to, if any.
func ChannelOf(ev Event) string {
	switch e := ev.(type) {
	case AppMention:
		return e.Channel
	case AssistantMessage:
		return e.Channel
	case AssistantThreadStarted:
		return e.Channel
	default:
		return ""
	}
}

// DecodeEvent classifies the inner event of an event_callback.
// botUserID is the bot's own user ID, used to detect mentions in file shares
// and to drop the bot's own messages.
//
// A DM message is always an AssistantMessage candidate, even when it is a
// file share that mentions the bot.
func DecodeEvent(ev slackevents.EventsAPIEvent, botUserID string) (Event, error) {
	if ev.Type != string(slackevents.CallbackEvent) {
		return nil, fmt.Errorf("decode event: %s is not an event callback", ev.Type)
	}

	switch e := ev.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if e.BotID != "" || (botUserID != "" && e.User == botUserID) {
			return Ignored{Type: ev.InnerEvent.Type, Reason: "bot sender"}, nil
		}
		return AppMention{Channel: e.Channel, User: e.User, Text: e.Text, TS: e.TimeStamp, ThreadTS: e.ThreadTimeStamp}, nil

	case *slackevents.MessageEvent:
		return decodeMessage(e, botUserID), nil

	case *slackevents.AppHomeOpenedEvent:
		return AppHomeOpened{User: e.User, Tab: e.Tab}, nil

	case *slackevents.AssistantThreadStartedEvent:
		t := e.AssistantThread
		if t.ChannelID == "" {
			return nil, fmt.Errorf("decode event: assistant_thread_started without assistant_thread")
		}
		return AssistantThreadStarted{Channel: t.ChannelID, ThreadTS: t.ThreadTimeStamp, User: t.UserID}, nil

	default:
		return Ignored{Type: ev.InnerEvent.Type, Reason: "unsupported event type"}, nil
	}
}

func messageFromBot(e *slackevents.MessageEvent, botUserID string) bool {
	if e.BotID != "" || (botUserID != "" && e.User == botUserID) {
		return true
	}
	return e.Message != nil && e.Message.BotProfile != nil
}

func decodeMessage(e *slackevents.MessageEvent, botUserID string) Event {
	if e.ChannelType == channelTypeIM {
		switch {
		case messageFromBot(e, botUserID):
			return Ignored{Type: e.Type, Reason: "bot sender"}
		case e.ThreadTimeStamp == "":
			return Ignored{Type: e.Type, Reason: "direct message outside a thread"}
		case e.SubType != "" && e.SubType != subtypeFileShare:
			return Ignored{Type: e.Type, Reason: "subtype " + e.SubType}
		}
		return AssistantMessage{
			Channel:  e.Channel,
			User:     e.User,
			Text:     e.Text,
			TS:       e.TimeStamp,
			ThreadTS: e.ThreadTimeStamp,
			SubType:  e.SubType,
		}
	}

	if e.SubType == subtypeFileShare && botUserID != "" && strings.Contains(e.Text, "<@"+botUserID+">") {
		if messageFromBot(e, botUserID) {
			return Ignored{Type: e.Type, Reason: "bot sender"}
		}
		return AppMention{Channel: e.Channel, User: e.User, Text: e.Text, TS: e.TimeStamp, ThreadTS: e.ThreadTimeStamp}
	}
	return Ignored{Type: e.Type, Reason: "message not addressed to the bot"}
}
