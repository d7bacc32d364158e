package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"discord-credits-bot/internal/domain"
)

// stubRepo повторяет контракт хранилища: один upload на file_hash, начисление
// и запись атомарны, компаратор рейтинга тот же, что в Postgres.
type stubRepo struct {
	mu       sync.Mutex
	uploads  map[string]domain.Upload
	accounts map[int64]domain.Account
	applyErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		uploads:  make(map[string]domain.Upload),
		accounts: make(map[int64]domain.Account),
	}
}

func (s *stubRepo) ApplyAward(_ context.Context, upload domain.Upload) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return false, s.applyErr
	}
	if _, ok := s.uploads[upload.FileHash]; ok {
		return false, nil
	}
	s.uploads[upload.FileHash] = upload
	acc := s.accounts[upload.UserID]
	acc.UserID = upload.UserID
	acc.Points += int64(upload.PageCount)
	acc.LastUpload = upload.UploadDate
	s.accounts[upload.UserID] = acc
	return true, nil
}

func (s *stubRepo) GetAccount(_ context.Context, userID int64) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (s *stubRepo) ListUploadsByUser(_ context.Context, userID int64) ([]domain.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var uploads []domain.Upload
	for _, u := range s.uploads {
		if u.UserID == userID {
			uploads = append(uploads, u)
		}
	}
	return uploads, nil
}

func (s *stubRepo) ranked() []domain.Account {
	var accounts []domain.Account
	for _, acc := range s.accounts {
		accounts = append(accounts, acc)
	}
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

func (s *stubRepo) RankOf(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, acc := range s.ranked() {
		if acc.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, domain.ErrAccountNotFound
}

func (s *stubRepo) TopN(_ context.Context, n int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranked := s.ranked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (s *stubRepo) CountAccounts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), nil
}

func (s *stubRepo) ListAccountsPage(_ context.Context, limit, offset int) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func TestAwardFirstUpload(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)

	res, err := svc.Award(context.Background(), 100, domain.IntakeResult{FileHash: "aaa", PageCount: 10}, "book.pdf", time.Now())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if res.Duplicate {
		t.Fatal("первая загрузка не должна быть дубликатом")
	}
	if res.NewTotal != 10 {
		t.Fatalf("ожидали 10 кредитов, получили %d", res.NewTotal)
	}
	if res.Rank != 1 {
		t.Fatalf("ожидали ранг 1, получили %d", res.Rank)
	}
}

func TestAwardDuplicateKeepsTotal(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	now := time.Now()

	if _, err := svc.Award(context.Background(), 100, domain.IntakeResult{FileHash: "aaa", PageCount: 10}, "book.pdf", now); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	res, err := svc.Award(context.Background(), 100, domain.IntakeResult{FileHash: "aaa", PageCount: 10}, "book.pdf", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Duplicate {
		t.Fatal("повторная загрузка тех же байтов должна быть дубликатом")
	}

	acc, err := repo.GetAccount(context.Background(), 100)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if acc.Points != 10 {
		t.Fatalf("баланс не должен меняться на дубликате: %d", acc.Points)
	}
}

func TestAwardDuplicateFromAnotherUser(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	now := time.Now()

	if _, err := svc.Award(context.Background(), 100, domain.IntakeResult{FileHash: "aaa", PageCount: 10}, "book.pdf", now); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	res, err := svc.Award(context.Background(), 200, domain.IntakeResult{FileHash: "aaa", PageCount: 10}, "copy.pdf", now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !res.Duplicate {
		t.Fatal("тот же файл от другого пользователя — тоже дубликат")
	}
	if _, err := repo.GetAccount(context.Background(), 200); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatal("у второго пользователя не должно появиться счёта")
	}
}

func TestPointsEqualSumOfUploads(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)
	now := time.Now()

	pages := []int{5, 7, 3}
	for i, n := range pages {
		hash := string(rune('a' + i))
		if _, err := svc.Award(context.Background(), 100, domain.IntakeResult{FileHash: hash, PageCount: n}, "b.pdf", now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	acc, err := repo.GetAccount(context.Background(), 100)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	uploads, _ := repo.ListUploadsByUser(context.Background(), 100)
	var sum int64
	for _, u := range uploads {
		sum += int64(u.PageCount)
	}
	if acc.Points != sum {
		t.Fatalf("баланс %d не равен сумме страниц %d", acc.Points, sum)
	}
}

func TestAwardStorageError(t *testing.T) {
	repo := newStubRepo()
	repo.applyErr = errors.New("storage unavailable")
	svc := NewService(repo)

	if _, err := svc.Award(context.Background(), 100, domain.IntakeResult{FileHash: "aaa", PageCount: 1}, "b.pdf", time.Now()); err == nil {
		t.Fatal("ожидали ошибку хранилища")
	}
}
