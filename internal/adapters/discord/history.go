package discord

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"discord-credits-bot/internal/domain"
)

// History выгружает историю канала через REST API Discord.
type History struct {
	session *discordgo.Session
}

var _ domain.HistorySource = (*History)(nil)

// NewHistory создаёт источник истории.
func NewHistory(session *discordgo.Session) *History {
	return &History{session: session}
}

// ListBefore реализует domain.HistorySource: страница сообщений старше beforeID,
// от новых к старым.
func (h *History) ListBefore(ctx context.Context, channelID int64, beforeID string, limit int) ([]domain.HistoryMessage, error) {
	msgs, err := h.session.ChannelMessages(
		strconv.FormatInt(channelID, 10), limit, beforeID, "", "",
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("чтение истории канала: %w", err)
	}

	out := make([]domain.HistoryMessage, 0, len(msgs))
	for _, msg := range msgs {
		hm := domain.HistoryMessage{MessageID: msg.ID}
		if msg.Author != nil {
			hm.AuthorID = parseSnowflake(msg.Author.ID)
			hm.AuthorBot = msg.Author.Bot
		}
		for _, att := range msg.Attachments {
			hm.Attachments = append(hm.Attachments, domain.AttachmentRef{
				FileName:    att.Filename,
				ContentType: att.ContentType,
				URL:         att.URL,
				Size:        att.Size,
			})
		}
		out = append(out, hm)
	}
	return out, nil
}
