package intake

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"discord-credits-bot/internal/domain"
)

var (
	// ErrNotPDF — содержимое не является PDF.
	ErrNotPDF = errors.New("файл не является PDF")
	// ErrUnreadable — PDF распарсить не удалось или число страниц некорректно.
	ErrUnreadable = errors.New("не удалось прочитать PDF")
	// ErrTooLarge — вложение превышает настроенный лимит размера.
	ErrTooLarge = errors.New("файл слишком большой")
)

var pdfSignature = []byte("%PDF-")

// Processor извлекает из PDF идентичность по содержимому и число страниц.
// Хранилище не трогает: обработка свободна от побочных эффектов.
type Processor struct {
	conf     *model.Configuration
	maxBytes int64
}

var _ domain.PDFIntake = (*Processor)(nil)

// NewProcessor создаёт обработчик. maxBytes <= 0 отключает лимит размера.
func NewProcessor(maxBytes int64) *Processor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Processor{conf: conf, maxBytes: maxBytes}
}

// Process вычисляет SHA-256 дайджест всех байтов файла и число страниц.
// Дайджест зависит только от содержимого, не от имени файла, и считается до
// любых мутаций — это единственный ключ дедупликации.
func (p *Processor) Process(data []byte, name string) (domain.IntakeResult, error) {
	if p.maxBytes > 0 && int64(len(data)) > p.maxBytes {
		return domain.IntakeResult{}, ErrTooLarge
	}
	if !bytes.HasPrefix(data, pdfSignature) {
		return domain.IntakeResult{}, ErrNotPDF
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	pages, err := api.PageCount(bytes.NewReader(data), p.conf)
	if err != nil {
		return domain.IntakeResult{}, ErrUnreadable
	}
	if pages < 1 {
		return domain.IntakeResult{}, ErrUnreadable
	}

	return domain.IntakeResult{FileHash: fileHash, PageCount: pages}, nil
}

// LooksLikePDF решает, стоит ли вообще скачивать вложение: либо заявлен
// PDF content type, либо имя оканчивается на .pdf.
func LooksLikePDF(contentType, fileName string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(fileName), ".pdf")
}
