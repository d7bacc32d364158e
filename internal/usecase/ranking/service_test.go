package ranking

import (
	"context"
	"sort"
	"testing"
	"time"

	"discord-credits-bot/internal/domain"
)

// rankedStub отдаёт счета в порядке того же компаратора, что и Postgres.
type rankedStub struct {
	accounts []domain.Account
	uploads  map[int64][]domain.Upload
}

func (s *rankedStub) ranked() []domain.Account {
	accounts := append([]domain.Account(nil), s.accounts...)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Points != accounts[j].Points {
			return accounts[i].Points > accounts[j].Points
		}
		if !accounts[i].LastUpload.Equal(accounts[j].LastUpload) {
			return accounts[i].LastUpload.Before(accounts[j].LastUpload)
		}
		return accounts[i].UserID < accounts[j].UserID
	})
	return accounts
}

func (s *rankedStub) ApplyAward(context.Context, domain.Upload) (bool, error) { return false, nil }

func (s *rankedStub) GetAccount(_ context.Context, userID int64) (domain.Account, error) {
	for _, acc := range s.accounts {
		if acc.UserID == userID {
			return acc, nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (s *rankedStub) ListUploadsByUser(_ context.Context, userID int64) ([]domain.Upload, error) {
	return s.uploads[userID], nil
}

func (s *rankedStub) RankOf(_ context.Context, userID int64) (int, error) {
	for i, acc := range s.ranked() {
		if acc.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, domain.ErrAccountNotFound
}

func (s *rankedStub) TopN(_ context.Context, n int) ([]domain.Account, error) {
	ranked := s.ranked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (s *rankedStub) CountAccounts(context.Context) (int, error) { return len(s.accounts), nil }

func (s *rankedStub) ListAccountsPage(_ context.Context, limit, offset int) ([]domain.Account, error) {
	ranked := s.ranked()
	if offset >= len(ranked) {
		return nil, nil
	}
	ranked = ranked[offset:]
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestLeaderboardOrdering(t *testing.T) {
	repo := &rankedStub{accounts: []domain.Account{
		{UserID: 2, Points: 5, LastUpload: day(1)},
		{UserID: 1, Points: 10, LastUpload: day(2)},
	}}
	svc := NewService(repo)

	entries, err := svc.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", len(entries))
	}
	if entries[0].UserID != 1 || entries[1].UserID != 2 {
		t.Fatalf("ожидали порядок [1, 2], получили [%d, %d]", entries[0].UserID, entries[1].UserID)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Fatal("ранги должны быть 1-based по позиции")
	}
}

func TestLeaderboardTieBreaks(t *testing.T) {
	repo := &rankedStub{accounts: []domain.Account{
		{UserID: 3, Points: 10, LastUpload: day(5)},
		{UserID: 2, Points: 10, LastUpload: day(1)},
		{UserID: 5, Points: 10, LastUpload: day(5)},
	}}
	svc := NewService(repo)

	entries, err := svc.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// При равных очках выше тот, кто загрузил раньше; при равном времени — меньший user_id.
	want := []int64{2, 3, 5}
	for i, id := range want {
		if entries[i].UserID != id {
			t.Fatalf("позиция %d: ожидали %d, получили %d", i+1, id, entries[i].UserID)
		}
	}
}

func TestRankMatchesLeaderboardPosition(t *testing.T) {
	repo := &rankedStub{accounts: []domain.Account{
		{UserID: 1, Points: 3, LastUpload: day(1)},
		{UserID: 2, Points: 8, LastUpload: day(2)},
		{UserID: 3, Points: 8, LastUpload: day(1)},
		{UserID: 4, Points: 1, LastUpload: day(4)},
	}}
	svc := NewService(repo)

	entries, err := svc.Leaderboard(context.Background(), len(repo.accounts))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, e := range entries {
		rank, err := repo.RankOf(context.Background(), e.UserID)
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if rank != e.Rank {
			t.Fatalf("ранг пользователя %d (%d) не совпадает с позицией в лидерборде (%d)", e.UserID, rank, e.Rank)
		}
	}
}

func TestStatsUnknownUser(t *testing.T) {
	svc := NewService(&rankedStub{})
	if _, err := svc.Stats(context.Background(), 42); err != domain.ErrAccountNotFound {
		t.Fatalf("ожидали ErrAccountNotFound, получили %v", err)
	}
}

func TestStats(t *testing.T) {
	repo := &rankedStub{
		accounts: []domain.Account{
			{UserID: 1, Points: 15, LastUpload: day(1)},
			{UserID: 2, Points: 20, LastUpload: day(2)},
		},
		uploads: map[int64][]domain.Upload{
			1: {{FileHash: "a", UserID: 1, FileName: "a.pdf", PageCount: 5}, {FileHash: "b", UserID: 1, FileName: "b.pdf", PageCount: 10}},
		},
	}
	svc := NewService(repo)

	stats, err := svc.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if stats.Points != 15 {
		t.Fatalf("ожидали 15 очков, получили %d", stats.Points)
	}
	if stats.Rank != 2 {
		t.Fatalf("ожидали ранг 2, получили %d", stats.Rank)
	}
	if len(stats.Uploads) != 2 {
		t.Fatalf("ожидали 2 загрузки, получили %d", len(stats.Uploads))
	}
}

func TestAllTimePagination(t *testing.T) {
	var accounts []domain.Account
	for i := 1; i <= 5; i++ {
		accounts = append(accounts, domain.Account{UserID: int64(i), Points: int64(100 - i), LastUpload: day(i)})
	}
	svc := NewService(&rankedStub{accounts: accounts})

	page, err := svc.AllTime(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if page.TotalUsers != 5 || page.TotalPages != 3 {
		t.Fatalf("ожидали 5 пользователей на 3 страницах, получили %d/%d", page.TotalUsers, page.TotalPages)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("ожидали 2 записи, получили %d", len(page.Entries))
	}
	if page.Entries[0].Rank != 3 || page.Entries[1].Rank != 4 {
		t.Fatalf("ранги должны продолжаться между страницами: %d, %d", page.Entries[0].Rank, page.Entries[1].Rank)
	}
}

func TestAllTimeBeyondLastPage(t *testing.T) {
	var accounts []domain.Account
	for i := 1; i <= 5; i++ {
		accounts = append(accounts, domain.Account{UserID: int64(i), Points: int64(i), LastUpload: day(i)})
	}
	svc := NewService(&rankedStub{accounts: accounts})

	page, err := svc.AllTime(context.Background(), 99, 10)
	if err != nil {
		t.Fatalf("страница за пределами рейтинга не должна давать ошибку: %v", err)
	}
	if len(page.Entries) != 0 {
		t.Fatalf("ожидали пустую страницу, получили %d записей", len(page.Entries))
	}
}

func TestAllTimeClampsPage(t *testing.T) {
	svc := NewService(&rankedStub{accounts: []domain.Account{{UserID: 1, Points: 1, LastUpload: day(1)}}})

	page, err := svc.AllTime(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if page.Page != 1 || len(page.Entries) != 1 {
		t.Fatalf("ожидали первую страницу с одной записью, получили page=%d len=%d", page.Page, len(page.Entries))
	}
}
