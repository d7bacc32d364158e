package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"discord-credits-bot/internal/domain"
)

// HTTPFetcher скачивает вложения по CDN-ссылкам Discord.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

var _ domain.AttachmentFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher создаёт загрузчик вложений. maxBytes <= 0 отключает лимит.
func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: maxBytes,
	}
}

// Fetch реализует domain.AttachmentFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("скачивание вложения: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("скачивание вложения: статус %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("чтение вложения: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("вложение больше %d байт", f.maxBytes)
	}
	return data, nil
}
