// Package history keeps a record of successfully analysed tickets.
package history

import (
	"time"

	"github.com/zombor/lotto-checker/internal/ticket"
)

// Scan is one analysed ticket
type Scan struct {
	ID         string              `json:"id"`
	DrawNumber string              `json:"draw_number"`
	Summary    string              `json:"summary"`
	BestRank   int                 `json:"best_rank"` // 0 when no row won
	ImageFile  string              `json:"image_file"`
	Result     *ticket.LottoResult `json:"result"`
	CreatedAt  time.Time           `json:"created_at"`
}
