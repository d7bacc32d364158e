package ranking

import (
	"context"
	"fmt"

	"discord-credits-bot/internal/domain"
)

// Service отвечает за рейтинги и сводки по пользователям.
type Service struct {
	repo domain.CreditRepo
}

// NewService создаёт сервис рейтингов.
func NewService(repo domain.CreditRepo) *Service {
	return &Service{repo: repo}
}

// Leaderboard возвращает top-n счетов с проставленными 1-based рангами.
// Порядок задаёт хранилище: очки по убыванию, при равенстве раньше тот, кто
// загрузил раньше.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	accounts, err := s.repo.TopN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("выборка топа: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(accounts))
	for i, acc := range accounts {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   i + 1,
			UserID: acc.UserID,
			Points: acc.Points,
		})
	}
	return entries, nil
}

// Stats возвращает сводку по пользователю. Если счёта нет,
// возвращается domain.ErrAccountNotFound.
func (s *Service) Stats(ctx context.Context, userID int64) (domain.UserStats, error) {
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	rank, err := s.repo.RankOf(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("вычисление ранга: %w", err)
	}
	uploads, err := s.repo.ListUploadsByUser(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("список загрузок: %w", err)
	}
	return domain.UserStats{Points: acc.Points, Rank: rank, Uploads: uploads}, nil
}

// AllTime возвращает страницу полного рейтинга. Страницы 1-based; запрос за
// последней страницей даёт пустой результат, а не ошибку.
func (s *Service) AllTime(ctx context.Context, page, pageSize int) (domain.RankingPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return domain.RankingPage{}, fmt.Errorf("подсчёт счетов: %w", err)
	}
	totalPages := (total + pageSize - 1) / pageSize

	result := domain.RankingPage{
		Page:       page,
		PageSize:   pageSize,
		TotalUsers: total,
		TotalPages: totalPages,
	}

	offset := (page - 1) * pageSize
	if offset >= total {
		return result, nil
	}

	accounts, err := s.repo.ListAccountsPage(ctx, pageSize, offset)
	if err != nil {
		return domain.RankingPage{}, fmt.Errorf("выборка страницы: %w", err)
	}
	for i, acc := range accounts {
		result.Entries = append(result.Entries, domain.LeaderboardEntry{
			Rank:   offset + i + 1,
			UserID: acc.UserID,
			Points: acc.Points,
		})
	}
	return result, nil
}
