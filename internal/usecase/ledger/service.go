package ledger

import (
	"context"
	"fmt"
	"time"

	"discord-credits-bot/internal/domain"
	"discord-credits-bot/internal/infra/metrics"
)

// Service начисляет кредиты за уникальные загрузки.
type Service struct {
	repo domain.CreditRepo
}

var _ domain.Awarder = (*Service)(nil)

// NewService создаёт сервис начислений.
func NewService(repo domain.CreditRepo) *Service {
	return &Service{repo: repo}
}

// Award применяет результат обработки PDF: записывает загрузку и начисляет по
// кредиту за страницу. Порядок «сначала запись, потом начисление» внутри одной
// транзакции хранилища гарантирует не более одного начисления на file_hash,
// в том числе при одновременной загрузке одинаковых байтов.
//
// Проверка allowlist каналов — предусловие вызывающей стороны, здесь не
// повторяется.
func (s *Service) Award(ctx context.Context, userID int64, res domain.IntakeResult, fileName string, now time.Time) (domain.AwardResult, error) {
	applied, err := s.repo.ApplyAward(ctx, domain.Upload{
		FileHash:   res.FileHash,
		UserID:     userID,
		FileName:   fileName,
		PageCount:  res.PageCount,
		UploadDate: now,
	})
	if err != nil {
		return domain.AwardResult{}, fmt.Errorf("применение начисления: %w", err)
	}
	if !applied {
		metrics.UploadsDuplicate.Inc()
		return domain.AwardResult{Duplicate: true}, nil
	}

	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return domain.AwardResult{}, fmt.Errorf("чтение счёта после начисления: %w", err)
	}
	rank, err := s.repo.RankOf(ctx, userID)
	if err != nil {
		return domain.AwardResult{}, fmt.Errorf("вычисление ранга: %w", err)
	}

	metrics.UploadsAwarded.Inc()
	metrics.PagesAwarded.Add(float64(res.PageCount))
	return domain.AwardResult{
		PageCount: res.PageCount,
		NewTotal:  acc.Points,
		Rank:      rank,
	}, nil
}
