package domain

import "time"

// Account хранит накопленные кредиты пользователя Discord.
type Account struct {
	UserID     int64
	Points     int64
	LastUpload time.Time
}

// Upload описывает один уникальный загруженный PDF.
type Upload struct {
	FileHash   string
	UserID     int64
	FileName   string
	PageCount  int
	UploadDate time.Time
}

// IntakeResult — результат обработки PDF: идентичность по содержимому и число страниц.
type IntakeResult struct {
	FileHash  string
	PageCount int
}

// AwardResult описывает исход начисления кредитов за загрузку.
// Duplicate — нормальный исход, а не ошибка: файл уже известен, баланс не меняется.
type AwardResult struct {
	Duplicate bool
	PageCount int
	NewTotal  int64
	Rank      int
}

// LeaderboardEntry — строка таблицы лидеров. DisplayName заполняет транспортный
// адаптер при рендеринге, ядро оперирует только идентификаторами.
type LeaderboardEntry struct {
	Rank        int
	UserID      int64
	Points      int64
	DisplayName string
}

// UserStats — сводка по пользователю для команды /stats.
type UserStats struct {
	Points  int64
	Rank    int
	Uploads []Upload
}

// RankingPage — страница полного рейтинга для /alltime.
type RankingPage struct {
	Page       int
	PageSize   int
	TotalUsers int
	TotalPages int
	Entries    []LeaderboardEntry
}

// ScanSummary — итог исторического сканирования канала.
type ScanSummary struct {
	ScanID     string
	ChannelID  int64
	Scanned    int
	Awarded    int
	Duplicates int
	Skipped    int
	Pages      int
}

// AttachmentRef описывает вложение сообщения без его содержимого.
type AttachmentRef struct {
	FileName    string
	ContentType string
	URL         string
	Size        int
}

// HistoryMessage — нормализованное сообщение из истории канала.
type HistoryMessage struct {
	MessageID   string
	AuthorID    int64
	AuthorBot   bool
	Attachments []AttachmentRef
}

// ConfigKeyLeaderboardChannel — ключ guild_config с каналом для публикации лидерборда.
const ConfigKeyLeaderboardChannel = "leaderboard_channel"
