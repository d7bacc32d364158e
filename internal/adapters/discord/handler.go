package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"discord-credits-bot/internal/domain"
	"discord-credits-bot/internal/infra/metrics"
	"discord-credits-bot/internal/usecase/intake"
	"discord-credits-bot/internal/usecase/ranking"
	"discord-credits-bot/internal/usecase/scan"
)

const (
	colorGreen = 0x2ecc71
	colorBlue  = 0x3498db

	reactionAwarded   = "🏆"
	reactionDuplicate = "♻️"
	reactionRejected  = "❌"

	nameCacheTTL = time.Hour
)

// Handler обслуживает события шлюза Discord: живые загрузки PDF и слэш-команды.
type Handler struct {
	session *discordgo.Session
	log     zerolog.Logger
	policy  domain.AccessPolicy

	intake  domain.PDFIntake
	ledger  domain.Awarder
	ranking *ranking.Service
	scanner *scan.Service
	config  domain.ConfigRepo
	listen  domain.ListenRepo
	fetcher domain.AttachmentFetcher
	cache   domain.Cache

	leaderboardSize int
	allTimePageSize int
}

// NewHandler создаёт обработчик.
func NewHandler(session *discordgo.Session, log zerolog.Logger, policy domain.AccessPolicy, pdf domain.PDFIntake, ledger domain.Awarder, rankingUC *ranking.Service, scanner *scan.Service, config domain.ConfigRepo, listen domain.ListenRepo, fetcher domain.AttachmentFetcher, cache domain.Cache, leaderboardSize, allTimePageSize int) *Handler {
	return &Handler{
		session:         session,
		log:             log,
		policy:          policy,
		intake:          pdf,
		ledger:          ledger,
		ranking:         rankingUC,
		scanner:         scanner,
		config:          config,
		listen:          listen,
		fetcher:         fetcher,
		cache:           cache,
		leaderboardSize: leaderboardSize,
		allTimePageSize: allTimePageSize,
	}
}

func parseSnowflake(id string) int64 {
	v, _ := strconv.ParseInt(id, 10, 64)
	return v
}

func formatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// OnMessageCreate обрабатывает живую загрузку PDF. Канал обязан быть в
// allowlist гильдии, иначе вложения игнорируются — пустой allowlist означает,
// что бот не слушает ничего.
func (h *Handler) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || len(m.Attachments) == 0 {
		return
	}

	ctx := context.Background()
	guildID := parseSnowflake(m.GuildID)
	channelID := parseSnowflake(m.ChannelID)

	listened, err := h.listen.IsListenChannel(ctx, guildID, channelID)
	if err != nil {
		h.log.Error().Err(err).Int64("channel_id", channelID).Msg("проверка allowlist не удалась")
		return
	}
	if !listened {
		return
	}

	userID := parseSnowflake(m.Author.ID)
	for _, att := range m.Attachments {
		if att == nil || !intake.LooksLikePDF(att.ContentType, att.Filename) {
			continue
		}
		h.handleUpload(ctx, m, guildID, userID, att)
	}
}

func (h *Handler) handleUpload(ctx context.Context, m *discordgo.MessageCreate, guildID, userID int64, att *discordgo.MessageAttachment) {
	data, err := h.fetcher.Fetch(ctx, att.URL)
	if err != nil {
		h.log.Warn().Err(err).Str("file", att.Filename).Msg("не удалось скачать вложение")
		metrics.IntakeRejected.WithLabelValues("fetch_failed").Inc()
		h.react(m.ChannelID, m.ID, reactionRejected)
		return
	}

	res, err := h.intake.Process(data, att.Filename)
	if err != nil {
		h.log.Debug().Err(err).Str("file", att.Filename).Msg("вложение отклонено")
		metrics.IntakeRejected.WithLabelValues(rejectReason(err)).Inc()
		h.react(m.ChannelID, m.ID, reactionRejected)
		return
	}

	award, err := h.ledger.Award(ctx, userID, res, att.Filename, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Str("file", att.Filename).Msg("начисление не удалось")
		h.react(m.ChannelID, m.ID, reactionRejected)
		h.send(m.ChannelID, fmt.Sprintf("⚠️ %s, something went wrong while processing `%s`. Please try again later.", m.Author.Mention(), att.Filename))
		return
	}

	if award.Duplicate {
		h.react(m.ChannelID, m.ID, reactionDuplicate)
		h.send(m.ChannelID, fmt.Sprintf("⚠️ %s, this PDF has already been uploaded. No credits awarded.", m.Author.Mention()))
		return
	}

	h.react(m.ChannelID, m.ID, reactionAwarded)
	h.send(m.ChannelID, fmt.Sprintf("✅ %s earned **%s credits** for uploading `%s`!", m.Author.Mention(), humanize.Comma(int64(award.PageCount)), att.Filename))
	h.publishAward(ctx, guildID, m.Author, att.Filename, award)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, intake.ErrNotPDF):
		return "not_pdf"
	case errors.Is(err, intake.ErrUnreadable):
		return "unreadable"
	case errors.Is(err, intake.ErrTooLarge):
		return "too_large"
	default:
		return "other"
	}
}

// publishAward отправляет в настроенный канал лидерборда уведомление о
// загрузке и обновлённый топ. Отсутствие настройки — не ошибка: богатые
// уведомления просто не публикуются.
func (h *Handler) publishAward(ctx context.Context, guildID int64, author *discordgo.User, fileName string, award domain.AwardResult) {
	channel, err := h.leaderboardChannel(ctx, guildID)
	if err != nil {
		h.log.Error().Err(err).Msg("чтение канала лидерборда не удалось")
		return
	}
	if channel == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📚 NEW BOOK UPLOADED!",
		Description: fmt.Sprintf("**%s** has uploaded a new book!", displayNameOf(author)),
		Color:       colorGreen,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📖 Book", Value: fmt.Sprintf("`%s`", fileName), Inline: false},
			{Name: "⭐ Points Earned", Value: fmt.Sprintf("**+%s** credits", humanize.Comma(int64(award.PageCount))), Inline: true},
			{Name: "🏆 Total Credits", Value: fmt.Sprintf("**%s** credits", humanize.Comma(award.NewTotal)), Inline: true},
			{Name: "📊 Rank", Value: fmt.Sprintf("**#%d**", award.Rank), Inline: true},
		},
	}
	if author.AvatarURL("") != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: author.AvatarURL("")}
	}
	h.sendEmbed(channel, embed)

	h.publishLeaderboard(ctx, channel)
}

func (h *Handler) publishLeaderboard(ctx context.Context, channel string) {
	entries, err := h.ranking.Leaderboard(ctx, h.leaderboardSize)
	if err != nil {
		h.log.Error().Err(err).Msg("построение лидерборда не удалось")
		return
	}
	if len(entries) == 0 {
		return
	}
	h.fillNames(entries)

	embed := &discordgo.MessageEmbed{
		Title:       "🏆 LEADERBOARD UPDATED!",
		Description: "Top contributors right now:",
		Color:       colorGreen,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("🏅 Top %d", h.leaderboardSize), Value: ranking.FormatEntries(entries), Inline: false},
		},
	}
	h.sendEmbed(channel, embed)
}

func (h *Handler) leaderboardChannel(ctx context.Context, guildID int64) (string, error) {
	value, err := h.config.GetConfigValue(ctx, guildID, domain.ConfigKeyLeaderboardChannel)
	if err != nil {
		return "", err
	}
	return value, nil
}

// fillNames проставляет отображаемые имена через кэш, с фолбэком на REST API.
func (h *Handler) fillNames(entries []domain.LeaderboardEntry) {
	for i := range entries {
		entries[i].DisplayName = h.resolveName(entries[i].UserID)
	}
}

func (h *Handler) resolveName(userID int64) string {
	key := fmt.Sprintf("name:%d", userID)
	if val, err := h.cache.Get(key); err == nil && len(val) > 0 {
		return string(val)
	}

	user, err := h.session.User(formatSnowflake(userID))
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("не удалось получить пользователя")
		return fmt.Sprintf("User %d", userID)
	}
	name := displayNameOf(user)
	if err := h.cache.Set(key, []byte(name), nameCacheTTL); err != nil {
		h.log.Warn().Err(err).Msg("кэш имён недоступен")
	}
	return name
}

func displayNameOf(user *discordgo.User) string {
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

func (h *Handler) react(channelID, messageID, emoji string) {
	if err := h.session.MessageReactionAdd(channelID, messageID, emoji); err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Warn().Err(err).Msg("не удалось поставить реакцию")
	}
}

func (h *Handler) send(channelID, content string) {
	if _, err := h.session.ChannelMessageSend(channelID, content); err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Warn().Err(err).Msg("не удалось отправить сообщение")
	}
}

func (h *Handler) sendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := h.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Warn().Err(err).Msg("не удалось отправить embed")
	}
}

// OnInteractionCreate диспетчеризует слэш-команды.
func (h *Handler) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx := context.Background()

	switch data.Name {
	case "stats":
		h.handleStats(ctx, i)
	case "leaderboard":
		h.handleLeaderboard(ctx, i)
	case "alltime":
		h.handleAllTime(ctx, i, data)
	case "set_leaderboard_channel":
		h.adminOnly(i, func() { h.handleSetLeaderboardChannel(ctx, i, data) })
	case "run_leaderboard_listener":
		h.adminOnly(i, func() { h.handleRunListener(ctx, i) })
	case "listen_add":
		h.adminOnly(i, func() { h.handleListenAdd(ctx, i, data) })
	case "listen_remove":
		h.adminOnly(i, func() { h.handleListenRemove(ctx, i, data) })
	case "listen_list":
		h.adminOnly(i, func() { h.handleListenList(ctx, i) })
	case "listen_clear":
		h.adminOnly(i, func() { h.handleListenClear(ctx, i) })
	default:
		h.respondEphemeral(i, "Unknown command.")
	}
}

// adminOnly пропускает команду только для администраторов гильдии либо при
// включённом DEV_MODE.
func (h *Handler) adminOnly(i *discordgo.InteractionCreate, fn func()) {
	isAdmin := i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0
	if err := h.policy.AuthorizeAdmin(isAdmin); err != nil {
		h.respondEphemeral(i, "❌ You need administrator permissions to use this command.")
		return
	}
	fn()
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

func (h *Handler) handleStats(ctx context.Context, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		h.respondEphemeral(i, "Could not identify you, sorry.")
		return
	}

	stats, err := h.ranking.Stats(ctx, parseSnowflake(user.ID))
	if errors.Is(err, domain.ErrAccountNotFound) {
		h.respond(i, "You haven't uploaded any PDFs yet! Upload a PDF to earn credits.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("сводка по пользователю не удалась")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📊 Stats for %s", displayNameOf(user)),
		Color: colorBlue,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total Credits", Value: fmt.Sprintf("**%s** pages", humanize.Comma(stats.Points)), Inline: true},
			{Name: "Global Rank", Value: fmt.Sprintf("**#%d**", stats.Rank), Inline: true},
			{Name: "Books Uploaded", Value: fmt.Sprintf("**%d**", len(stats.Uploads)), Inline: true},
		},
	}
	if list := ranking.FormatUploadList(stats.Uploads); list != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "📚 Your Uploads", Value: list, Inline: false})
	}
	h.respondEmbed(i, embed, false)
}

func (h *Handler) handleLeaderboard(ctx context.Context, i *discordgo.InteractionCreate) {
	entries, err := h.ranking.Leaderboard(ctx, h.leaderboardSize)
	if err != nil {
		h.log.Error().Err(err).Msg("построение лидерборда не удалось")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	if len(entries) == 0 {
		h.respondEphemeral(i, "No one has uploaded any PDFs yet! Be the first to earn credits.")
		return
	}
	h.fillNames(entries)

	embed := &discordgo.MessageEmbed{
		Title:       "🏆 LEADERBOARD",
		Description: fmt.Sprintf("Requested by **%s**", displayNameOf(interactionUser(i))),
		Color:       colorGreen,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("🏅 Top %d", h.leaderboardSize), Value: ranking.FormatEntries(entries), Inline: false},
		},
	}
	h.respondEmbed(i, embed, false)
}

func (h *Handler) handleAllTime(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	page := 1
	for _, opt := range data.Options {
		if opt.Name == "page" {
			page = int(opt.IntValue())
		}
	}

	result, err := h.ranking.AllTime(ctx, page, h.allTimePageSize)
	if err != nil {
		h.log.Error().Err(err).Msg("полный рейтинг не удался")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	if result.TotalUsers == 0 {
		h.respondEphemeral(i, "No one has uploaded any PDFs yet! Be the first to earn credits.")
		return
	}

	description := "Complete ranking of all contributors"
	if len(result.Entries) == 0 {
		description = fmt.Sprintf("Page %d is empty — there are only %d pages.", result.Page, result.TotalPages)
	} else {
		h.fillNames(result.Entries)
		description += "\n\n" + ranking.FormatEntries(result.Entries)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📊 ALL-TIME RANKINGS",
		Description: description,
		Color:       colorGreen,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👥 Total Contributors", Value: fmt.Sprintf("**%d**", result.TotalUsers), Inline: true},
			{Name: "📄 Page", Value: fmt.Sprintf("**%d/%d**", result.Page, result.TotalPages), Inline: true},
		},
	}
	h.respondEmbed(i, embed, false)
}

func (h *Handler) handleSetLeaderboardChannel(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var channelID string
	for _, opt := range data.Options {
		if opt.Name == "channel" {
			if ch := opt.ChannelValue(nil); ch != nil {
				channelID = ch.ID
			}
		}
	}
	if channelID == "" {
		h.respondEphemeral(i, "Please pick a text channel.")
		return
	}

	if err := h.config.SetConfigValue(ctx, parseSnowflake(i.GuildID), domain.ConfigKeyLeaderboardChannel, channelID); err != nil {
		h.log.Error().Err(err).Msg("сохранение канала лидерборда не удалось")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	h.respondEphemeral(i, fmt.Sprintf("✅ Leaderboard updates bound to <#%s>", channelID))
}

// handleRunListener добавляет вызывающий канал в allowlist и сканирует его
// историю. Ответ откладывается: проход может занять минуты.
func (h *Handler) handleRunListener(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Warn().Err(err).Msg("не удалось отложить ответ")
		return
	}

	guildID := parseSnowflake(i.GuildID)
	channelID := parseSnowflake(i.ChannelID)

	if err := h.listen.AddListenChannel(ctx, guildID, channelID); err != nil {
		h.log.Error().Err(err).Msg("добавление канала в allowlist не удалось")
		h.followup(i, "⚠️ Something went wrong, please try again later.")
		return
	}

	summary, err := h.scanner.ScanChannel(ctx, guildID, channelID)
	if errors.Is(err, scan.ErrScanInProgress) {
		h.followup(i, "⏳ This channel is already being scanned. Try again later.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("историческое сканирование не удалось")
		h.followup(i, "⚠️ Scan failed, please try again later.")
		return
	}

	h.followup(i, ranking.FormatScanSummary(summary))

	if summary.Awarded > 0 {
		if channel, err := h.leaderboardChannel(ctx, guildID); err == nil && channel != "" {
			h.publishLeaderboard(ctx, channel)
		}
	}
}

func channelOption(data discordgo.ApplicationCommandInteractionData) string {
	for _, opt := range data.Options {
		if opt.Name == "channel" {
			if ch := opt.ChannelValue(nil); ch != nil {
				return ch.ID
			}
		}
	}
	return ""
}

func (h *Handler) handleListenAdd(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	channelID := channelOption(data)
	if channelID == "" {
		h.respondEphemeral(i, "Please pick a text channel.")
		return
	}
	if err := h.listen.AddListenChannel(ctx, parseSnowflake(i.GuildID), parseSnowflake(channelID)); err != nil {
		h.log.Error().Err(err).Msg("добавление канала не удалось")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	h.respondEphemeral(i, fmt.Sprintf("✅ Now listening for PDFs in <#%s>", channelID))
}

func (h *Handler) handleListenRemove(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	channelID := channelOption(data)
	if channelID == "" {
		h.respondEphemeral(i, "Please pick a text channel.")
		return
	}
	if err := h.listen.RemoveListenChannel(ctx, parseSnowflake(i.GuildID), parseSnowflake(channelID)); err != nil {
		h.log.Error().Err(err).Msg("удаление канала не удалось")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	h.respondEphemeral(i, fmt.Sprintf("✅ Stopped listening in <#%s>", channelID))
}

func (h *Handler) handleListenList(ctx context.Context, i *discordgo.InteractionCreate) {
	channels, err := h.listen.ListListenChannels(ctx, parseSnowflake(i.GuildID))
	if err != nil {
		h.log.Error().Err(err).Msg("список каналов не удался")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	if len(channels) == 0 {
		h.respondEphemeral(i, "No channels configured. PDFs are ignored everywhere — use /listen_add to opt a channel in.")
		return
	}

	var b strings.Builder
	b.WriteString("Listening for PDFs in:\n")
	for _, id := range channels {
		fmt.Fprintf(&b, "• <#%d>\n", id)
	}
	h.respondEphemeral(i, strings.TrimRight(b.String(), "\n"))
}

func (h *Handler) handleListenClear(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := h.listen.ClearListenChannels(ctx, parseSnowflake(i.GuildID)); err != nil {
		h.log.Error().Err(err).Msg("очистка каналов не удалась")
		h.respondEphemeral(i, "⚠️ Something went wrong, please try again later.")
		return
	}
	h.respondEphemeral(i, "✅ Allowlist cleared. PDFs are ignored until a channel is added again.")
}

func (h *Handler) respond(i *discordgo.InteractionCreate, content string) {
	h.respondWith(i, &discordgo.InteractionResponseData{Content: content})
}

func (h *Handler) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	h.respondWith(i, &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral})
}

func (h *Handler) respondEmbed(i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	h.respondWith(i, data)
}

func (h *Handler) respondWith(i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Warn().Err(err).Msg("не удалось ответить на команду")
	}
}

func (h *Handler) followup(i *discordgo.InteractionCreate, content string) {
	if _, err := h.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content}); err != nil {
		metrics.BotSendErrors.Inc()
		h.log.Warn().Err(err).Msg("не удалось отправить followup")
	}
}
