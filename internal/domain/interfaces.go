package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotFound возвращается, когда у пользователя ещё нет счёта.
var ErrAccountNotFound = errors.New("счёт пользователя не найден")

// CreditRepo управляет счетами и записями загрузок.
type CreditRepo interface {
	// ApplyAward атомарно (одной транзакцией) записывает загрузку и начисляет
	// кредиты. Возвращает false, если file_hash уже известен: запись не
	// создаётся, баланс не меняется. Дубликат отсекает уникальный индекс
	// хранилища, а не предварительная проверка.
	ApplyAward(ctx context.Context, upload Upload) (bool, error)
	GetAccount(ctx context.Context, userID int64) (Account, error)
	ListUploadsByUser(ctx context.Context, userID int64) ([]Upload, error)
	// RankOf возвращает 1-based позицию пользователя в порядке убывания очков.
	// Тот же компаратор, что у TopN и ListAccountsPage.
	RankOf(ctx context.Context, userID int64) (int, error)
	TopN(ctx context.Context, n int) ([]Account, error)
	CountAccounts(ctx context.Context) (int, error)
	ListAccountsPage(ctx context.Context, limit, offset int) ([]Account, error)
}

// ConfigRepo хранит настройки гильдии как пары ключ-значение.
type ConfigRepo interface {
	// GetConfigValue возвращает пустую строку, если ключ не задан.
	GetConfigValue(ctx context.Context, guildID int64, key string) (string, error)
	SetConfigValue(ctx context.Context, guildID int64, key, value string) error
}

// ListenRepo хранит allowlist каналов, в которых бот принимает PDF.
// Пустой список означает «никакие каналы не слушаем».
type ListenRepo interface {
	AddListenChannel(ctx context.Context, guildID, channelID int64) error
	RemoveListenChannel(ctx context.Context, guildID, channelID int64) error
	ListListenChannels(ctx context.Context, guildID int64) ([]int64, error)
	ClearListenChannels(ctx context.Context, guildID int64) error
	IsListenChannel(ctx context.Context, guildID, channelID int64) (bool, error)
}

// PDFIntake превращает байты вложения в результат обработки или отказ.
type PDFIntake interface {
	Process(data []byte, name string) (IntakeResult, error)
}

// Awarder начисляет кредиты за результат обработки PDF.
type Awarder interface {
	Award(ctx context.Context, userID int64, res IntakeResult, fileName string, now time.Time) (AwardResult, error)
}

// Cache используется для простых TTL-хранилищ и блокировок.
type Cache interface {
	// TryAcquire ставит ключ, если он ещё не занят. false — ключ уже есть.
	TryAcquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// HistorySource выгружает историю канала страницами, от новых сообщений к старым.
type HistorySource interface {
	ListBefore(ctx context.Context, channelID int64, beforeID string, limit int) ([]HistoryMessage, error)
}

// AttachmentFetcher скачивает содержимое вложения по URL.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
