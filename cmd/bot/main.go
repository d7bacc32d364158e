package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"discord-credits-bot/internal/adapters/discord"
	"discord-credits-bot/internal/adapters/repo"
	"discord-credits-bot/internal/domain"
	"discord-credits-bot/internal/infra/cache"
	"discord-credits-bot/internal/infra/config"
	"discord-credits-bot/internal/infra/db"
	ophttp "discord-credits-bot/internal/infra/http"
	"discord-credits-bot/internal/infra/log"
	"discord-credits-bot/internal/infra/metrics"
	"discord-credits-bot/internal/usecase/intake"
	"discord-credits-bot/internal/usecase/ledger"
	"discord-credits-bot/internal/usecase/ranking"
	"discord-credits-bot/internal/usecase/scan"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить схему")
	}

	var store domain.Cache
	if cfg.RedisAddr != "" {
		store = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		logger.Warn().Msg("REDIS_ADDR не задан, кэш и блокировки работают в памяти процесса")
		store = cache.NewMemory()
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	processor := intake.NewProcessor(cfg.Limits.MaxPDFBytes)
	ledgerService := ledger.NewService(repoAdapter)
	rankingService := ranking.NewService(repoAdapter)

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать сессию Discord")
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	fetcher := discord.NewHTTPFetcher(cfg.Limits.MaxPDFBytes)
	scanService := scan.NewService(discord.NewHistory(session), fetcher, processor, ledgerService, store, logger, cfg.Limits.ScanMaxMessages)

	policy := domain.AccessPolicy{BypassAdminChecks: cfg.Discord.DevMode}
	if cfg.Discord.DevMode {
		logger.Warn().Msg("DEV_MODE включён: проверки прав администратора отключены")
	}

	h := discord.NewHandler(
		session, logger, policy,
		processor, ledgerService, rankingService, scanService,
		repoAdapter, repoAdapter, fetcher, store,
		cfg.Limits.LeaderboardSize, cfg.Limits.AllTimePageSize,
	)
	session.AddHandler(h.OnMessageCreate)
	session.AddHandler(h.OnInteractionCreate)

	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("не удалось открыть шлюз Discord")
	}
	defer session.Close()

	guildID := ""
	if cfg.Discord.GuildID != 0 {
		guildID = fmt.Sprintf("%d", cfg.Discord.GuildID)
	}
	if err := discord.RegisterCommands(session, guildID); err != nil {
		logger.Fatal().Err(err).Msg("не удалось зарегистрировать команды")
	}

	srv := ophttp.NewServer(logger, pool)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("служебный HTTP сервер остановлен")
		}
	}()

	logger.Info().Msg("бот запущен")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Info().Msg("остановка бота")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

var _ domain.CreditRepo = (*repo.Postgres)(nil)
var _ domain.ConfigRepo = (*repo.Postgres)(nil)
var _ domain.ListenRepo = (*repo.Postgres)(nil)
