package ticket

const (
	// NumbersPerRow is how many numbers are printed on one ticket row
	NumbersPerRow = 6
	// MaxRows is the most rows a single ticket carries (A through E)
	MaxRows = 5
)

// TicketRow is one printed row of a ticket together with its grading
type TicketRow struct {
	Label      string `json:"label"`
	Numbers    []int  `json:"numbers"`
	MatchCount int    `json:"matchCount"`
	HasBonus   bool   `json:"hasBonus"`
	Rank       int    `json:"rank"` // 0 = no prize, 1-5 = prize tier
	Prize      string `json:"prize"`
}

// Source is a grounding citation returned alongside an analysis
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// LottoResult is the complete outcome of analysing one ticket image.
// It is produced in one piece by an analyzer and never updated afterwards.
type LottoResult struct {
	DrawNumber     string      `json:"drawNumber"`
	WinningNumbers []int       `json:"winningNumbers"`
	BonusNumber    int         `json:"bonusNumber"`
	TicketRows     []TicketRow `json:"ticketRows"`
	Summary        string      `json:"summary"`
	Sources        []Source    `json:"sources"`
}

// IsWinning reports whether the row was assigned a prize tier
func (r TicketRow) IsWinning() bool {
	return r.Rank >= 1 && r.Rank <= 5
}

// BestRank returns the highest prize tier on the ticket, or 0 if nothing won
func (l *LottoResult) BestRank() int {
	best := 0
	for _, row := range l.TicketRows {
		if row.IsWinning() && (best == 0 || row.Rank < best) {
			best = row.Rank
		}
	}
	return best
}
