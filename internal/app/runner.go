// Package app runs a single EPSS comparison from two dates to a report.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/epsshift/internal/adapters/fetcher"
	"github.com/okian/epsshift/internal/adapters/report"
	"github.com/okian/epsshift/internal/adapters/snapshot"
	"github.com/okian/epsshift/internal/domain/compare"
	"github.com/okian/epsshift/internal/domain/era"
	"github.com/okian/epsshift/internal/domain/model"
	"github.com/okian/epsshift/pkg/logger"
	"github.com/okian/epsshift/pkg/metrics"
)

// Fetcher makes the table for a date available locally and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) (string, error)
}

// Loader parses a local table into a snapshot.
type Loader interface {
	LoadFile(ctx context.Context, path string, date time.Time) (model.Snapshot, error)
}

// Request describes one comparison.
type Request struct {
	Start time.Time
	End   time.Time
	// Limit is the number of increases to report.
	Limit int
}

// Runner wires the fetcher, loader, comparator and renderer together.
type Runner struct {
	fetcher Fetcher
	loader  Loader
	metrics *metrics.Manager
	logger  logger.Logger
	out     io.Writer
	notices io.Writer
	format  report.Format

	// checked remembers the date pair whose warning was already shown.
	checked struct {
		start, end time.Time
		ok         bool
	}
}

// New constructs a Runner. Without options it downloads from the public host
// into the working directory and prints text to stdout.
func New(opts ...Option) *Runner {
	r := &Runner{
		out:    os.Stdout,
		format: report.FormatText,
		logger: nil, // resolved on first use
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notices == nil {
		r.notices = r.out
	}
	if r.fetcher == nil {
		r.fetcher = fetcher.New(fetcher.WithProgress(r.notices), fetcher.WithMetrics(r.metrics))
	}
	if r.loader == nil {
		r.loader = snapshot.NewLoader()
	}
	return r
}

func (r *Runner) log() logger.Logger {
	if r.logger == nil {
		r.logger = logger.Get()
	}
	return r.logger
}

// Check verifies that start is before end and prints the model change
// warning when the dates fall in different eras. Run calls it unless it
// already succeeded for the same dates.
func (r *Runner) Check(start, end time.Time) error {
	if !era.ValidateOrder(start, end) {
		return fmt.Errorf("%w: %s is not before %s", era.ErrDateOrder, era.Format(start), era.Format(end))
	}
	from, to := era.Classify(start), era.Classify(end)
	if era.Mismatch(from, to) {
		fmt.Fprintf(r.notices, "%s\n\n", EraWarning(from, to))
		r.log().Warn(context.Background(), "comparing across scoring model eras",
			logger.String("start_era", string(from)),
			logger.String("end_era", string(to)))
	}
	r.checked.start, r.checked.end, r.checked.ok = start, end, true
	return nil
}

// EraWarning is the notice shown when two dates use different models.
func EraWarning(from, to era.Label) string {
	return fmt.Sprintf("Warning: you are comparing %s → %s. The EPSS model change may cause large score variations!", from, to)
}

// Run fetches both snapshots, compares them and writes the report.
func (r *Runner) Run(ctx context.Context, req Request) (compare.Result, error) {
	if req.Limit < 0 {
		return compare.Result{}, fmt.Errorf("%w: %d is negative", ErrCountFormat, req.Limit)
	}
	if !r.checked.ok || !r.checked.start.Equal(req.Start) || !r.checked.end.Equal(req.End) {
		if err := r.Check(req.Start, req.End); err != nil {
			return compare.Result{}, err
		}
	}

	started := time.Now()
	log := r.log().With(logger.String("run_id", uuid.NewString()))
	log.Info(ctx, "comparison started",
		logger.String("start", era.Format(req.Start)),
		logger.String("end", era.Format(req.End)),
		logger.Int("limit", req.Limit))

	startPath, err := r.fetcher.Fetch(ctx, req.Start)
	if err != nil {
		return compare.Result{}, fmt.Errorf("fetch %s: %w", era.Format(req.Start), err)
	}
	endPath, err := r.fetcher.Fetch(ctx, req.End)
	if err != nil {
		return compare.Result{}, fmt.Errorf("fetch %s: %w", era.Format(req.End), err)
	}

	from, err := r.load(ctx, log, metrics.SideStart, startPath, req.Start)
	if err != nil {
		return compare.Result{}, err
	}
	to, err := r.load(ctx, log, metrics.SideEnd, endPath, req.End)
	if err != nil {
		return compare.Result{}, err
	}

	res, err := compare.Compare(from, to, req.Limit)
	if err != nil {
		return compare.Result{}, err
	}
	r.metrics.RecordComparison(res.Joined, res.Increased, len(res.Shifts))

	if err := report.Emit(r.out, r.format, res, req.Start, req.End); err != nil {
		return compare.Result{}, err
	}

	log.Info(ctx, "comparison finished",
		logger.Int("joined", res.Joined),
		logger.Int("increased", res.Increased),
		logger.Int("reported", len(res.Shifts)),
		logger.Bool("clamped", res.Clamped),
		logger.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (r *Runner) load(ctx context.Context, log logger.Logger, side, path string, date time.Time) (model.Snapshot, error) {
	snap, err := r.loader.LoadFile(ctx, path, date)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load %s: %w", era.Format(date), err)
	}
	r.metrics.RecordSnapshot(side, snap.Len(), snap.Dropped)

	if label, ok := era.FromModelVersion(snap.ModelVersion); ok && label != era.Classify(date) {
		log.Warn(ctx, "snapshot model version does not match the date's era",
			logger.String("date", era.Format(date)),
			logger.String("model_version", snap.ModelVersion),
			logger.String("expected_era", string(era.Classify(date))))
	}
	return snap, nil
}

// ParseCount reads the number of increases to show.
func ParseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCountFormat, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrCountFormat, n)
	}
	return n, nil
}
