package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zombor/lotto-checker/internal/ticket"
)

// drawNumber accepts the draw identifier as either a JSON string or number
type drawNumber string

func (d *drawNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = drawNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("drawNumber must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("drawNumber must be a string or number: %w", err)
	}
	*d = drawNumber(n.String())
	return nil
}

// lottoPayload mirrors the JSON object the model is asked to return
type lottoPayload struct {
	DrawNumber     drawNumber         `json:"drawNumber"`
	WinningNumbers []int              `json:"winningNumbers"`
	BonusNumber    int                `json:"bonusNumber"`
	TicketRows     []ticket.TicketRow `json:"ticketRows"`
	Summary        string             `json:"summary"`
}

// firstJSONObject returns the first balanced {...} span in text.
// Braces inside string literals are ignored.
func firstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseLottoJSON decodes the model reply into a LottoResult.
// Prose around the JSON object is tolerated.
func parseLottoJSON(text string) (*ticket.LottoResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	payload := text
	if obj, ok := firstJSONObject(text); ok {
		payload = obj
	}

	var data *lottoPayload
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	if err := data.validate(); err != nil {
		return nil, fmt.Errorf("invalid ticket data: %w", err)
	}

	return &ticket.LottoResult{
		DrawNumber:     string(data.DrawNumber),
		WinningNumbers: data.WinningNumbers,
		BonusNumber:    data.BonusNumber,
		TicketRows:     data.TicketRows,
		Summary:        data.Summary,
		Sources:        []ticket.Source{},
	}, nil
}

// validate rejects replies that do not have the LottoResult shape.
// Values are not checked against each other; ranks are taken as supplied.
func (p *lottoPayload) validate() error {
	if strings.TrimSpace(string(p.DrawNumber)) == "" {
		return fmt.Errorf("missing drawNumber")
	}
	if len(p.WinningNumbers) != ticket.NumbersPerRow {
		return fmt.Errorf("winningNumbers has %d numbers, want %d", len(p.WinningNumbers), ticket.NumbersPerRow)
	}
	if len(p.TicketRows) == 0 {
		return fmt.Errorf("missing ticketRows")
	}
	if len(p.TicketRows) > ticket.MaxRows {
		return fmt.Errorf("ticketRows has %d rows, at most %d allowed", len(p.TicketRows), ticket.MaxRows)
	}
	for i, row := range p.TicketRows {
		if len(row.Numbers) != ticket.NumbersPerRow {
			return fmt.Errorf("row %d (%s) has %d numbers, want %d", i, row.Label, len(row.Numbers), ticket.NumbersPerRow)
		}
		if row.Rank < 0 || row.Rank > 5 {
			return fmt.Errorf("row %d (%s) has rank %d, want 0 to 5", i, row.Label, row.Rank)
		}
	}
	return nil
}

// newSource fills in placeholders for missing citation fields
func newSource(title, uri string) ticket.Source {
	title = strings.TrimSpace(title)
	if title == "" {
		title = placeholderTitle
	}
	uri = strings.TrimSpace(uri)
	if uri == "" {
		uri = placeholderURI
	}
	return ticket.Source{Title: title, URI: uri}
}
