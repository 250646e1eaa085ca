// Package compare ranks the CVEs whose EPSS score grew the most between two
// snapshots.
package compare

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/okian/epsshift/internal/domain/model"
)

// Result is the ranked output of a comparison.
type Result struct {
	// Shifts holds the increases, largest first, truncated to Limit.
	Shifts []model.Shift
	// Requested is the limit the caller asked for.
	Requested int
	// Limit is the limit actually applied.
	Limit int
	// Clamped is set when Requested exceeded the number of increases.
	Clamped bool
	// Joined counts identifiers present in both snapshots.
	Joined int
	// Increased counts joined identifiers with a positive delta.
	Increased int
}

// Compare joins start and end on CVE, keeps strictly positive deltas and
// returns at most limit of them ordered by delta descending. Equal deltas
// keep the order of the start snapshot. If an identifier repeats in a
// snapshot only its first row takes part in the join.
func Compare(start, end model.Snapshot, limit int) (Result, error) {
	if limit < 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	endScores := make(map[string]float64, len(end.Records))
	for _, r := range end.Records {
		if _, ok := endScores[r.CVE]; !ok {
			endScores[r.CVE] = r.Score
		}
	}

	joined := make(map[string]struct{}, len(start.Records))
	increases := make([]model.Shift, 0)
	for _, r := range start.Records {
		endScore, ok := endScores[r.CVE]
		if !ok {
			continue
		}
		if _, dup := joined[r.CVE]; dup {
			continue
		}
		joined[r.CVE] = struct{}{}

		s := model.NewShift(r.CVE, r.Score, endScore)
		if s.Delta > 0 {
			increases = append(increases, s)
		}
	}

	res := Result{
		Requested: limit,
		Limit:     limit,
		Joined:    len(joined),
		Increased: len(increases),
	}
	if limit > len(increases) {
		res.Limit = len(increases)
		res.Clamped = true
	}

	slices.SortStableFunc(increases, func(a, b model.Shift) int {
		return cmp.Compare(b.Delta, a.Delta)
	})
	res.Shifts = increases[:res.Limit]
	return res, nil
}
