package ranking

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"discord-credits-bot/internal/domain"
)

var medals = []string{"🥇", "🥈", "🥉"}

const statsUploadsShown = 10

// positionMarker возвращает маркер позиции: медали для первых трёх мест,
// дальше номер.
func positionMarker(rank int) string {
	if rank >= 1 && rank <= len(medals) {
		return medals[rank-1]
	}
	return fmt.Sprintf("**%d.**", rank)
}

// FormatEntries формирует строки рейтинга для лидерборда и /alltime.
// DisplayName к этому моменту уже заполнен адаптером; пустое имя
// рендерится как "User <id>".
func FormatEntries(entries []domain.LeaderboardEntry) string {
	var b strings.Builder
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = fmt.Sprintf("User %d", e.UserID)
		}
		fmt.Fprintf(&b, "%s **%s** = **%s** credits\n", positionMarker(e.Rank), name, humanize.Comma(e.Points))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatUploadList перечисляет загрузки пользователя для /stats: первые десять
// плюс счётчик остатка.
func FormatUploadList(uploads []domain.Upload) string {
	var b strings.Builder
	shown := uploads
	if len(shown) > statsUploadsShown {
		shown = shown[:statsUploadsShown]
	}
	for _, u := range shown {
		fmt.Fprintf(&b, "• `%s` - %s pages\n", u.FileName, humanize.Comma(int64(u.PageCount)))
	}
	if rest := len(uploads) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "... and %d more\n", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatScanSummary формирует отчёт исторического сканирования.
func FormatScanSummary(s domain.ScanSummary) string {
	return fmt.Sprintf(
		"✅ **Historical Scan Complete!**\n\n"+
			"• Scanned messages: **%d**\n"+
			"• Processed: **%d** new PDFs\n"+
			"• Duplicates: **%d** (skipped)\n"+
			"• Errors: **%d**",
		s.Scanned, s.Awarded, s.Duplicates, s.Skipped)
}
