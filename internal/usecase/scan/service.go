package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"discord-credits-bot/internal/domain"
	"discord-credits-bot/internal/infra/metrics"
	"discord-credits-bot/internal/usecase/intake"
)

// ErrScanInProgress возвращается, если канал уже сканируется.
var ErrScanInProgress = errors.New("сканирование канала уже выполняется")

const (
	historyPageSize = 100
	scanLockTTL     = 30 * time.Minute
)

// Service выполняет историческое сканирование канала: прогоняет старые
// сообщения через тот же конвейер intake → ledger, что и живые загрузки.
type Service struct {
	history domain.HistorySource
	fetcher domain.AttachmentFetcher
	intake  domain.PDFIntake
	ledger  domain.Awarder
	cache   domain.Cache
	log     zerolog.Logger
	maxMsgs int
}

// NewService создаёт сервис сканирования. maxMsgs ограничивает глубину прохода.
func NewService(history domain.HistorySource, fetcher domain.AttachmentFetcher, pdf domain.PDFIntake, ledger domain.Awarder, cache domain.Cache, log zerolog.Logger, maxMsgs int) *Service {
	return &Service{
		history: history,
		fetcher: fetcher,
		intake:  pdf,
		ledger:  ledger,
		cache:   cache,
		log:     log,
		maxMsgs: maxMsgs,
	}
}

func lockKey(channelID int64) string {
	return fmt.Sprintf("scan:lock:%d", channelID)
}

// ScanChannel проходит историю канала от новых сообщений к старым и начисляет
// кредиты за найденные PDF. Ошибки отдельных вложений логируются и
// учитываются как Skipped, но не прерывают проход. На канал действует
// взаимное исключение через кэш: второй запуск получает ErrScanInProgress.
func (s *Service) ScanChannel(ctx context.Context, guildID, channelID int64) (domain.ScanSummary, error) {
	acquired, err := s.cache.TryAcquire(lockKey(channelID), scanLockTTL)
	if err != nil {
		return domain.ScanSummary{}, fmt.Errorf("захват блокировки: %w", err)
	}
	if !acquired {
		return domain.ScanSummary{}, ErrScanInProgress
	}
	defer func() {
		if err := s.cache.Release(lockKey(channelID)); err != nil {
			s.log.Warn().Err(err).Int64("channel_id", channelID).Msg("не удалось снять блокировку сканирования")
		}
	}()

	summary := domain.ScanSummary{
		ScanID:    uuid.NewString(),
		ChannelID: channelID,
	}
	logger := s.log.With().Str("scan_id", summary.ScanID).Int64("guild_id", guildID).Int64("channel_id", channelID).Logger()
	logger.Info().Msg("историческое сканирование запущено")

	beforeID := ""
	for summary.Scanned < s.maxMsgs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		limit := historyPageSize
		if rest := s.maxMsgs - summary.Scanned; rest < limit {
			limit = rest
		}
		messages, err := s.history.ListBefore(ctx, channelID, beforeID, limit)
		if err != nil {
			return summary, fmt.Errorf("чтение истории: %w", err)
		}
		if len(messages) == 0 {
			break
		}

		for _, msg := range messages {
			summary.Scanned++
			metrics.ScanMessages.Inc()
			if msg.AuthorBot {
				continue
			}
			for _, att := range msg.Attachments {
				if !intake.LooksLikePDF(att.ContentType, att.FileName) {
					continue
				}
				s.processAttachment(ctx, logger, msg, att, &summary)
			}
		}
		beforeID = messages[len(messages)-1].MessageID
	}

	logger.Info().
		Int("scanned", summary.Scanned).
		Int("awarded", summary.Awarded).
		Int("duplicates", summary.Duplicates).
		Int("skipped", summary.Skipped).
		Msg("историческое сканирование завершено")
	return summary, nil
}

func (s *Service) processAttachment(ctx context.Context, logger zerolog.Logger, msg domain.HistoryMessage, att domain.AttachmentRef, summary *domain.ScanSummary) {
	data, err := s.fetcher.Fetch(ctx, att.URL)
	if err != nil {
		logger.Warn().Err(err).Str("file", att.FileName).Msg("не удалось скачать вложение")
		summary.Skipped++
		return
	}

	res, err := s.intake.Process(data, att.FileName)
	if err != nil {
		logger.Debug().Err(err).Str("file", att.FileName).Msg("вложение отклонено")
		summary.Skipped++
		return
	}

	award, err := s.ledger.Award(ctx, msg.AuthorID, res, att.FileName, time.Now().UTC())
	if err != nil {
		logger.Warn().Err(err).Str("file", att.FileName).Msg("начисление не удалось")
		summary.Skipped++
		return
	}
	if award.Duplicate {
		summary.Duplicates++
		return
	}
	summary.Awarded++
	summary.Pages += award.PageCount
}
