// Package report renders comparison results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/epsshift/internal/domain/compare"
	"github.com/okian/epsshift/internal/domain/era"
	"github.com/okian/epsshift/internal/domain/model"
	"github.com/okian/epsshift/internal/domain/types"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json", case-insensitive. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Header returns the ranking title for n records.
func Header(n int, start, end time.Time) string {
	return fmt.Sprintf("--- Top %d CVEs with the largest EPSS increase from %s to %s ---",
		n, era.Format(start), era.Format(end))
}

// Line formats one ranked shift. rank is 1-based.
func Line(rank int, s model.Shift) string {
	return fmt.Sprintf("%d. %s | EPSS start: %.4f | EPSS end: %.4f | Increase: +%.4f",
		rank, s.CVE, s.Start, s.End, s.Delta)
}

// ClampNotice tells the user fewer records qualified than were requested.
func ClampNotice(n int) string {
	return fmt.Sprintf("Only %d CVEs increased. Showing all.", n)
}

// Render returns the header followed by one numbered line per shift.
func Render(shifts []model.Shift, start, end time.Time) []string {
	lines := make([]string, 0, len(shifts)+1)
	lines = append(lines, Header(len(shifts), start, end))
	for i, s := range shifts {
		lines = append(lines, Line(i+1, s))
	}
	return lines
}

// Write prints res as text: the clamp notice when applicable, then the
// ranking.
func Write(w io.Writer, res compare.Result, start, end time.Time) error {
	var b strings.Builder
	if res.Clamped {
		fmt.Fprintf(&b, "\n%s\n\n", ClampNotice(res.Limit))
	}
	b.WriteString("\n")
	for _, line := range Render(res.Shifts, start, end) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Entries converts ranked shifts to report entries.
func Entries(shifts []model.Shift) []types.Entry {
	out := make([]types.Entry, len(shifts))
	for i, s := range shifts {
		out[i] = types.Entry{Rank: i + 1, CVE: s.CVE, Start: s.Start, End: s.End, Delta: s.Delta}
	}
	return out
}

// Build returns the machine-readable form of res.
func Build(res compare.Result, start, end time.Time) types.Report {
	return types.Report{
		Start:     era.Format(start),
		End:       era.Format(end),
		Requested: res.Requested,
		Clamped:   res.Clamped,
		Entries:   Entries(res.Shifts),
	}
}

// WriteJSON encodes res as an indented JSON document.
func WriteJSON(w io.Writer, res compare.Result, start, end time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Build(res, start, end)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Emit writes res in format f.
func Emit(w io.Writer, f Format, res compare.Result, start, end time.Time) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, res, start, end)
	case FormatText, "":
		return Write(w, res, start, end)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}
