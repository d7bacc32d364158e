package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-credits-bot/internal/domain"
	"discord-credits-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.CreditRepo = (*Postgres)(nil)
var _ domain.ConfigRepo = (*Postgres)(nil)
var _ domain.ListenRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS credits (
	user_id BIGINT PRIMARY KEY,
	points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
	last_upload TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS uploads (
	file_hash TEXT PRIMARY KEY,
	user_id BIGINT NOT NULL,
	file_name TEXT NOT NULL,
	page_count INT NOT NULL CHECK (page_count > 0),
	upload_date TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS guild_config (
	guild_id BIGINT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (guild_id, key)
)`,
	`CREATE TABLE IF NOT EXISTS listen_channels (
	guild_id BIGINT NOT NULL,
	channel_id BIGINT NOT NULL,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (guild_id, channel_id)
)`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_user ON uploads (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_listen_channels_guild ON listen_channels (guild_id)`,
}

// EnsureSchema идемпотентно создаёт таблицы и индексы.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("создание схемы: %w", err)
		}
	}
	return nil
}

// ApplyAward реализует domain.CreditRepo. Запись загрузки и начисление кредитов
// выполняются одной транзакцией; дубликат отсекает первичный ключ file_hash
// (ON CONFLICT DO NOTHING), а не предварительный SELECT — гонка
// check-then-insert исключена на уровне хранилища.
func (p *Postgres) ApplyAward(ctx context.Context, upload domain.Upload) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveStoreRequest("begin_tx", "uploads", start, err)
	if err != nil {
		return false, fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start = time.Now()
	tag, err := tx.Exec(ctx, `
INSERT INTO uploads (file_hash, user_id, file_name, page_count, upload_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (file_hash) DO NOTHING
`, upload.FileHash, upload.UserID, upload.FileName, upload.PageCount, upload.UploadDate)
	metrics.ObserveStoreRequest("record_upload", "uploads", start, err)
	if err != nil {
		return false, fmt.Errorf("запись загрузки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO credits (user_id, points, last_upload)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
	points = credits.points + EXCLUDED.points,
	last_upload = EXCLUDED.last_upload
`, upload.UserID, upload.PageCount, upload.UploadDate)
	metrics.ObserveStoreRequest("upsert_credit", "credits", start, err)
	if err != nil {
		return false, fmt.Errorf("начисление кредитов: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("фиксация транзакции: %w", err)
	}
	return true, nil
}

// GetAccount реализует domain.CreditRepo.
func (p *Postgres) GetAccount(ctx context.Context, userID int64) (domain.Account, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var acc domain.Account
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT user_id, points, COALESCE(last_upload, to_timestamp(0))
FROM credits WHERE user_id = $1
`, userID).Scan(&acc.UserID, &acc.Points, &acc.LastUpload)
	metrics.ObserveStoreRequest("get_account", "credits", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("чтение счёта: %w", err)
	}
	return acc, nil
}

// ListUploadsByUser реализует domain.CreditRepo. Загрузки идут от новых к старым.
func (p *Postgres) ListUploadsByUser(ctx context.Context, userID int64) ([]domain.Upload, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT file_hash, user_id, file_name, page_count, upload_date
FROM uploads
WHERE user_id = $1
ORDER BY upload_date DESC
`, userID)
	metrics.ObserveStoreRequest("list_uploads", "uploads", start, err)
	if err != nil {
		return nil, fmt.Errorf("список загрузок: %w", err)
	}
	defer rows.Close()

	var uploads []domain.Upload
	for rows.Next() {
		var u domain.Upload
		if err := rows.Scan(&u.FileHash, &u.UserID, &u.FileName, &u.PageCount, &u.UploadDate); err != nil {
			return nil, fmt.Errorf("чтение загрузки: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// Компаратор рейтинга един для RankOf, TopN и ListAccountsPage:
// очки по убыванию, при равенстве раньше тот, кто загрузил раньше,
// финальный детерминирующий критерий — user_id.
const rankOrder = `points DESC, last_upload ASC, user_id ASC`

// RankOf реализует domain.CreditRepo.
func (p *Postgres) RankOf(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var rank int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT pos FROM (
	SELECT user_id, ROW_NUMBER() OVER (ORDER BY `+rankOrder+`) AS pos
	FROM credits
) ranked
WHERE user_id = $1
`, userID).Scan(&rank)
	metrics.ObserveStoreRequest("rank_of", "credits", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("вычисление ранга: %w", err)
	}
	return rank, nil
}

// TopN реализует domain.CreditRepo.
func (p *Postgres) TopN(ctx context.Context, n int) ([]domain.Account, error) {
	return p.listRanked(ctx, "top_n", n, 0)
}

// ListAccountsPage реализует domain.CreditRepo.
func (p *Postgres) ListAccountsPage(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	return p.listRanked(ctx, "accounts_page", limit, offset)
}

func (p *Postgres) listRanked(ctx context.Context, op string, limit, offset int) ([]domain.Account, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, points, COALESCE(last_upload, to_timestamp(0))
FROM credits
ORDER BY `+rankOrder+`
LIMIT $1 OFFSET $2
`, limit, offset)
	metrics.ObserveStoreRequest(op, "credits", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка рейтинга: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		if err := rows.Scan(&acc.UserID, &acc.Points, &acc.LastUpload); err != nil {
			return nil, fmt.Errorf("чтение счёта: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// CountAccounts реализует domain.CreditRepo.
func (p *Postgres) CountAccounts(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM credits`).Scan(&count)
	metrics.ObserveStoreRequest("count_accounts", "credits", start, err)
	if err != nil {
		return 0, fmt.Errorf("подсчёт счетов: %w", err)
	}
	return count, nil
}

// GetConfigValue реализует domain.ConfigRepo.
func (p *Postgres) GetConfigValue(ctx context.Context, guildID int64, key string) (string, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var value string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT value FROM guild_config WHERE guild_id = $1 AND key = $2
`, guildID, key).Scan(&value)
	metrics.ObserveStoreRequest("get_config", "guild_config", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("чтение конфига: %w", err)
	}
	return value, nil
}

// SetConfigValue реализует domain.ConfigRepo.
func (p *Postgres) SetConfigValue(ctx context.Context, guildID int64, key, value string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO guild_config (guild_id, key, value)
VALUES ($1, $2, $3)
ON CONFLICT (guild_id, key) DO UPDATE SET value = EXCLUDED.value
`, guildID, key, value)
	metrics.ObserveStoreRequest("set_config", "guild_config", start, err)
	if err != nil {
		return fmt.Errorf("запись конфига: %w", err)
	}
	return nil
}

// AddListenChannel реализует domain.ListenRepo.
func (p *Postgres) AddListenChannel(ctx context.Context, guildID, channelID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO listen_channels (guild_id, channel_id)
VALUES ($1, $2)
ON CONFLICT (guild_id, channel_id) DO NOTHING
`, guildID, channelID)
	metrics.ObserveStoreRequest("listen_add", "listen_channels", start, err)
	if err != nil {
		return fmt.Errorf("добавление канала: %w", err)
	}
	return nil
}

// RemoveListenChannel реализует domain.ListenRepo.
func (p *Postgres) RemoveListenChannel(ctx context.Context, guildID, channelID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM listen_channels WHERE guild_id = $1 AND channel_id = $2
`, guildID, channelID)
	metrics.ObserveStoreRequest("listen_remove", "listen_channels", start, err)
	if err != nil {
		return fmt.Errorf("удаление канала: %w", err)
	}
	return nil
}

// ListListenChannels реализует domain.ListenRepo. Каналы идут в порядке добавления.
func (p *Postgres) ListListenChannels(ctx context.Context, guildID int64) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT channel_id FROM listen_channels
WHERE guild_id = $1
ORDER BY added_at ASC
`, guildID)
	metrics.ObserveStoreRequest("listen_list", "listen_channels", start, err)
	if err != nil {
		return nil, fmt.Errorf("список каналов: %w", err)
	}
	defer rows.Close()

	var channels []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("чтение канала: %w", err)
		}
		channels = append(channels, id)
	}
	return channels, rows.Err()
}

// ClearListenChannels реализует domain.ListenRepo.
func (p *Postgres) ClearListenChannels(ctx context.Context, guildID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM listen_channels WHERE guild_id = $1`, guildID)
	metrics.ObserveStoreRequest("listen_clear", "listen_channels", start, err)
	if err != nil {
		return fmt.Errorf("очистка каналов: %w", err)
	}
	return nil
}

// IsListenChannel реализует domain.ListenRepo.
func (p *Postgres) IsListenChannel(ctx context.Context, guildID, channelID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var one int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT 1 FROM listen_channels
WHERE guild_id = $1 AND channel_id = $2
`, guildID, channelID).Scan(&one)
	metrics.ObserveStoreRequest("listen_check", "listen_channels", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("проверка канала: %w", err)
	}
	return true, nil
}
