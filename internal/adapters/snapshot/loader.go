// Package snapshot parses decompressed EPSS tables into domain snapshots.
//
// A table looks like:
//
//	#model_version:v2023.03.01,score_date:2023-04-01T00:00:00+0000
//	cve,epss,percentile
//	CVE-1999-0001,0.01141,0.83094
//
// Lines starting with '#' are skipped; the first one is read for metadata.
package snapshot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/epsshift/internal/domain/dedupe"
	"github.com/okian/epsshift/internal/domain/model"
	"github.com/okian/epsshift/pkg/logger"
)

// Column names the loader understands. Other columns are ignored.
const (
	ColumnCVE        = "cve"
	ColumnEPSS       = "epss"
	ColumnPercentile = "percentile"
)

const (
	scoreDateLayout = "2006-01-02T15:04:05-0700"
	cancelCheckRows = 10_000
	// expectedRows pre-sizes buffers; they grow past it for full snapshots.
	expectedRows = 1 << 16
)

// Loader reads EPSS tables.
type Loader struct {
	policy dedupe.Policy
	logger logger.Logger
}

// NewLoader creates a Loader. The default duplicate policy keeps the first row.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		policy: dedupe.PolicyFirst,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile opens path and parses it as the snapshot for date.
func (l *Loader) LoadFile(ctx context.Context, path string, date time.Time) (model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := l.Load(ctx, f, date)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// Load parses r as the snapshot for date.
func (l *Loader) Load(ctx context.Context, r io.Reader, date time.Time) (model.Snapshot, error) {
	snap := model.Snapshot{Date: date}

	br := bufio.NewReader(r)
	if err := readMetadata(br, &snap); err != nil {
		return model.Snapshot{}, err
	}

	cr := csv.NewReader(br)
	cr.Comment = '#'
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.Snapshot{}, fmt.Errorf("%w: missing header row", ErrDataFormat)
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: header: %w", ErrDataFormat, err)
	}
	cols, err := locateColumns(header)
	if err != nil {
		return model.Snapshot{}, err
	}

	seen := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(expectedRows))
	snap.Records = make([]model.ScoreRecord, 0, expectedRows)
	for row := 1; ; row++ {
		if row%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return model.Snapshot{}, fmt.Errorf("load cancelled: %w", err)
			}
		}

		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("%w: %w", ErrDataFormat, err)
		}

		rec, err := cols.record(fields)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return model.Snapshot{}, fmt.Errorf("%w: line %d: %w", ErrDataFormat, line, err)
		}

		if seen.SeenAndRecord(rec.CVE) {
			if l.policy == dedupe.PolicyReject {
				line, _ := cr.FieldPos(0)
				return model.Snapshot{}, fmt.Errorf("%w: %s repeated at line %d", ErrDuplicateIdentifier, rec.CVE, line)
			}
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	snap.Dropped = seen.Duplicates()

	if snap.Dropped > 0 {
		l.logger.Warn(ctx, "dropped repeated CVE rows",
			logger.String("date", date.Format(time.DateOnly)),
			logger.Int("dropped", snap.Dropped))
	}
	l.logger.Debug(ctx, "snapshot loaded",
		logger.String("date", date.Format(time.DateOnly)),
		logger.Int("records", len(snap.Records)),
		logger.String("model_version", snap.ModelVersion))
	return snap, nil
}

// readMetadata consumes leading '#' lines, parsing the first one.
func readMetadata(br *bufio.Reader, snap *model.Snapshot) error {
	first := true
	for {
		b, err := br.Peek(1)
		if err != nil || b[0] != '#' {
			// Empty input is reported by the header read.
			return nil
		}
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: metadata: %w", ErrDataFormat, err)
		}
		if first {
			parseMetadata(strings.TrimSpace(strings.TrimPrefix(line, "#")), snap)
			first = false
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// parseMetadata reads "model_version:v2023.03.01,score_date:2023-04-01T00:00:00+0000".
// Unknown keys and unparsable values are ignored.
func parseMetadata(line string, snap *model.Snapshot) {
	for _, part := range strings.Split(line, ",") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "model_version":
			snap.ModelVersion = strings.TrimSpace(value)
		case "score_date":
			if t, err := time.Parse(scoreDateLayout, strings.TrimSpace(value)); err == nil {
				snap.ScoreDate = t.UTC()
			}
		}
	}
}

type columns struct {
	cve, epss, percentile int
}

func locateColumns(header []string) (columns, error) {
	cols := columns{cve: -1, epss: -1, percentile: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case ColumnCVE:
			cols.cve = i
		case ColumnEPSS:
			cols.epss = i
		case ColumnPercentile:
			cols.percentile = i
		}
	}
	var missing []string
	if cols.cve < 0 {
		missing = append(missing, ColumnCVE)
	}
	if cols.epss < 0 {
		missing = append(missing, ColumnEPSS)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: missing column(s) %s in header %q",
			ErrDataFormat, strings.Join(missing, ", "), strings.Join(header, ","))
	}
	return cols, nil
}

func (c columns) record(fields []string) (model.ScoreRecord, error) {
	cve := strings.TrimSpace(fields[c.cve])
	if cve == "" {
		return model.ScoreRecord{}, errors.New("empty cve")
	}
	score, err := parseProbability(fields[c.epss])
	if err != nil {
		return model.ScoreRecord{}, fmt.Errorf("%s epss: %w", cve, err)
	}
	rec := model.ScoreRecord{CVE: cve, Score: score}
	if c.percentile >= 0 {
		p, err := parseProbability(fields[c.percentile])
		if err != nil {
			return model.ScoreRecord{}, fmt.Errorf("%s percentile: %w", cve, err)
		}
		rec.Percentile = p
	}
	return rec, nil
}

func parseProbability(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("%v outside [0,1]", v)
	}
	return v, nil
}
