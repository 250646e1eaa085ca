// Package model contains domain models passed between layers.
package model

import "time"

// ScoreRecord is one row of an EPSS snapshot.
type ScoreRecord struct {
	CVE        string  // vulnerability identifier, the join key
	Score      float64 // exploitation probability in [0,1]
	Percentile float64 // zero when the table has no percentile column
}

// Snapshot is the full set of scores published for one date.
type Snapshot struct {
	Date         time.Time
	ModelVersion string    // from the metadata comment line, may be empty
	ScoreDate    time.Time // from the metadata comment line, may be zero
	Records      []ScoreRecord
	Dropped      int // rows skipped at load time because their CVE repeated
}

// Len returns the number of records.
func (s Snapshot) Len() int { return len(s.Records) }

// Shift captures how a CVE's score moved between two snapshots.
type Shift struct {
	CVE   string
	Start float64
	End   float64
	Delta float64 // End - Start
}

// NewShift builds a Shift and computes its delta.
func NewShift(cve string, start, end float64) Shift {
	return Shift{CVE: cve, Start: start, End: end, Delta: end - start}
}
