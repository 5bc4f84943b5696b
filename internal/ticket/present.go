package ticket

import "slices"

// Highlight describes how a single ticket number is displayed
type Highlight int

const (
	Plain Highlight = iota
	Matched
	BonusMatched
)

// String returns the CSS class used for the highlight
func (h Highlight) String() string {
	switch h {
	case Matched:
		return "matched"
	case BonusMatched:
		return "bonus-matched"
	default:
		return "plain"
	}
}

// NumberView is a ticket number with its highlight
type NumberView struct {
	Value     int
	Highlight Highlight
}

// RowView is a ticket row ready for rendering
type RowView struct {
	Label     string
	Numbers   []NumberView
	RankLabel string
	RankClass string
	Prize     string
	Winning   bool
}

// View is the rendering model for a LottoResult
type View struct {
	DrawNumber     string
	Summary        string
	WinningNumbers []int
	BonusNumber    int
	IsWinner       bool
	Rows           []RowView
	Sources        []Source
}

// RankLabel returns the display label for a prize tier
func RankLabel(rank int) string {
	switch rank {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	case 4:
		return "4th"
	case 5:
		return "5th"
	default:
		return "No Prize"
	}
}

// RankClass returns the CSS class for a prize tier badge
func RankClass(rank int) string {
	switch rank {
	case 1, 2, 3, 4, 5:
		return "rank-" + RankLabel(rank)[:1]
	default:
		return "rank-none"
	}
}

// Classify decides how a ticket number is highlighted against the draw.
// A main-number match always wins over a bonus match.
func Classify(n int, result *LottoResult) Highlight {
	if slices.Contains(result.WinningNumbers, n) {
		return Matched
	}
	if n == result.BonusNumber {
		return BonusMatched
	}
	return Plain
}

// Present builds the view for a result. Ranks are taken as supplied.
func Present(result *LottoResult) View {
	view := View{
		DrawNumber:     result.DrawNumber,
		Summary:        result.Summary,
		WinningNumbers: result.WinningNumbers,
		BonusNumber:    result.BonusNumber,
		Rows:           make([]RowView, 0, len(result.TicketRows)),
		Sources:        result.Sources,
	}

	for _, row := range result.TicketRows {
		numbers := make([]NumberView, 0, len(row.Numbers))
		for _, n := range row.Numbers {
			numbers = append(numbers, NumberView{Value: n, Highlight: Classify(n, result)})
		}
		rv := RowView{
			Label:     row.Label,
			Numbers:   numbers,
			RankLabel: RankLabel(row.Rank),
			RankClass: RankClass(row.Rank),
			Prize:     row.Prize,
			Winning:   row.IsWinning(),
		}
		if rv.Winning {
			view.IsWinner = true
		}
		view.Rows = append(view.Rows, rv)
	}

	return view
}
