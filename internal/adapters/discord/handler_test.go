package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"discord-credits-bot/internal/domain"
	"discord-credits-bot/internal/usecase/intake"
)

func TestParseSnowflake(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"123456789012345678", 123456789012345678},
		{"1", 1},
		{"", 0},
		{"not-a-number", 0},
	}
	for _, tc := range cases {
		if got := parseSnowflake(tc.in); got != tc.want {
			t.Errorf("parseSnowflake(%q) = %d, ожидалось %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatSnowflakeRoundTrip(t *testing.T) {
	const id = int64(987654321098765432)
	if got := parseSnowflake(formatSnowflake(id)); got != id {
		t.Fatalf("round trip дал %d, ожидалось %d", got, id)
	}
}

func TestRejectReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{intake.ErrNotPDF, "not_pdf"},
		{intake.ErrUnreadable, "unreadable"},
		{intake.ErrTooLarge, "too_large"},
		{errors.New("что-то ещё"), "other"},
	}
	for _, tc := range cases {
		if got := rejectReason(tc.err); got != tc.want {
			t.Errorf("rejectReason(%v) = %q, ожидалось %q", tc.err, got, tc.want)
		}
	}
}

func TestDisplayNameOf(t *testing.T) {
	if got := displayNameOf(nil); got != "" {
		t.Errorf("nil пользователь: получено %q", got)
	}
	if got := displayNameOf(&discordgo.User{Username: "alice"}); got != "alice" {
		t.Errorf("fallback на username: получено %q", got)
	}
	if got := displayNameOf(&discordgo.User{Username: "alice", GlobalName: "Alice"}); got != "Alice" {
		t.Errorf("GlobalName имеет приоритет: получено %q", got)
	}
}

type stubListen struct {
	channels map[int64]bool
	queried  []int64
}

func (s *stubListen) AddListenChannel(ctx context.Context, guildID, channelID int64) error {
	return nil
}

func (s *stubListen) RemoveListenChannel(ctx context.Context, guildID, channelID int64) error {
	return nil
}

func (s *stubListen) ListListenChannels(ctx context.Context, guildID int64) ([]int64, error) {
	return nil, nil
}

func (s *stubListen) ClearListenChannels(ctx context.Context, guildID int64) error {
	return nil
}

func (s *stubListen) IsListenChannel(ctx context.Context, guildID, channelID int64) (bool, error) {
	s.queried = append(s.queried, channelID)
	return s.channels[channelID], nil
}

type countingFetcher struct{ calls int }

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	return nil, errors.New("fetch не должен вызываться")
}

func uploadMessage(channelID string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "1",
		GuildID:   "100",
		ChannelID: channelID,
		Author:    &discordgo.User{ID: "42"},
		Attachments: []*discordgo.MessageAttachment{
			{Filename: "book.pdf", ContentType: "application/pdf", URL: "https://cdn/book.pdf"},
		},
	}}
}

// Пустой allowlist означает «не слушаем ничего»: вложения из
// несконфигурированного канала не скачиваются.
func TestMessageCreateIgnoresUnlistedChannel(t *testing.T) {
	listen := &stubListen{channels: map[int64]bool{}}
	fetcher := &countingFetcher{}
	h := &Handler{log: zerolog.Nop(), listen: listen, fetcher: fetcher}

	h.OnMessageCreate(nil, uploadMessage("555"))

	if fetcher.calls != 0 {
		t.Fatalf("вложение скачано из неразрешённого канала: %d вызовов", fetcher.calls)
	}
	if len(listen.queried) != 1 || listen.queried[0] != 555 {
		t.Fatalf("ожидалась одна проверка allowlist для канала 555, получено %v", listen.queried)
	}
}

func TestMessageCreateIgnoresBots(t *testing.T) {
	listen := &stubListen{channels: map[int64]bool{555: true}}
	fetcher := &countingFetcher{}
	h := &Handler{log: zerolog.Nop(), listen: listen, fetcher: fetcher}

	m := uploadMessage("555")
	m.Author.Bot = true
	h.OnMessageCreate(nil, m)

	if len(listen.queried) != 0 || fetcher.calls != 0 {
		t.Fatalf("сообщение бота не должно обрабатываться: запросы %v, скачиваний %d", listen.queried, fetcher.calls)
	}
}

var _ domain.ListenRepo = (*stubListen)(nil)
var _ domain.AttachmentFetcher = (*countingFetcher)(nil)
