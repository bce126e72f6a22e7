package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"regenie/internal/domain"

	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"
)

const (
	threadFetchLimit   = 50
	maxAttachmentBytes = 20 << 20
	attachmentWorkers  = 4
	defaultPDFName     = "file.pdf"
)

// ErrThreadNotFound is returned when a thread has no messages at all.
var ErrThreadNotFound = errors.New("no messages found in thread")

// GetThread reads up to 50 messages of a thread, oldest first, and converts
// them to model messages. Messages with neither text nor attachments are
// dropped. Attachment failures are logged and skipped.
func (s *Slack) GetThread(ctx context.Context, channelID, threadTS string) ([]domain.Message, error) {
	raw, _, _, err := s.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     threadFetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("conversations.replies %s/%s: %w", channelID, threadTS, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("thread %s/%s: %w", channelID, threadTS, ErrThreadNotFound)
	}

	converted := make([]*domain.Message, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachmentWorkers)
	for i := range raw {
		g.Go(func() error {
			converted[i] = s.convertMessage(gctx, &raw[i])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read thread %s/%s: %w", channelID, threadTS, err)
	}

	msgs := make([]domain.Message, 0, len(converted))
	for _, m := range converted {
		if m != nil {
			msgs = append(msgs, *m)
		}
	}
	return msgs, nil
}

// convertMessage returns nil for messages that carry nothing for the model.
func (s *Slack) convertMessage(ctx context.Context, m *slack.Message) *domain.Message {
	if m.Text == "" && len(m.Files) == 0 {
		return nil
	}

	role := domain.RoleUser
	text := m.Text
	if m.BotID != "" {
		role = domain.RoleAssistant
	} else {
		text = s.StripMention(text)
	}

	if len(m.Files) == 0 {
		if text == "" {
			return nil
		}
		msg := domain.TextMessage(role, text)
		return &msg
	}

	var parts []domain.Part
	if text != "" {
		parts = append(parts, domain.TextPart(text))
	}
	for i := range m.Files {
		part, ok, err := s.attachmentPart(ctx, &m.Files[i])
		if err != nil {
			s.logger.Warn("skipping attachment", "file_id", m.Files[i].ID, "ts", m.Timestamp, "err", err)
			continue
		}
		if ok {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	msg := domain.PartsMessage(role, parts...)
	return &msg
}

// StripMention removes the first "<@bot> " from user text.
func (s *Slack) StripMention(text string) string {
	if s.botUserID == "" {
		return text
	}
	return strings.Replace(text, "<@"+s.botUserID+"> ", "", 1)
}

// attachmentPart downloads a supported file. ok is false for file types the
// model does not accept.
func (s *Slack) attachmentPart(ctx context.Context, f *slack.File) (domain.Part, bool, error) {
	if f.ID == "" {
		return domain.Part{}, false, fmt.Errorf("file without ID")
	}

	file := f
	if file.Mimetype == "" || downloadURL(file) == "" {
		info, _, _, err := s.api.GetFileInfoContext(ctx, f.ID, 0, 0)
		if err != nil {
			return domain.Part{}, false, fmt.Errorf("files.info: %w", err)
		}
		file = info
	}

	mime := file.Mimetype
	if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
		return domain.Part{}, false, nil
	}
	url := downloadURL(file)
	if url == "" {
		return domain.Part{}, false, fmt.Errorf("no download URL")
	}

	buf := &limitedBuffer{max: maxAttachmentBytes}
	if err := s.api.GetFileContext(ctx, url, buf); err != nil {
		return domain.Part{}, false, fmt.Errorf("download: %w", err)
	}

	if mime == "application/pdf" {
		name := file.Name
		if name == "" {
			name = defaultPDFName
		}
		return domain.FilePart(mime, name, buf.Bytes()), true, nil
	}
	return domain.ImagePart(mime, buf.Bytes()), true, nil
}

func downloadURL(f *slack.File) string {
	if f.URLPrivateDownload != "" {
		return f.URLPrivateDownload
	}
	return f.URLPrivate
}

type limitedBuffer struct {
	bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > b.max {
		return 0, fmt.Errorf("attachment exceeds %d bytes", b.max)
	}
	return b.Buffer.Write(p)
}
