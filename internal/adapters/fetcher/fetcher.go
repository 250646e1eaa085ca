// Package fetcher downloads dated EPSS snapshots and extracts them to disk.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/gzip"

	"github.com/okian/epsshift/internal/config"
	"github.com/okian/epsshift/internal/domain/era"
	"github.com/okian/epsshift/pkg/logger"
	"github.com/okian/epsshift/pkg/metrics"
)

const (
	filePermission = 0o644
	dirPermission  = 0o755
)

// Fetcher retrieves epss_scores-<date>.csv.gz files.
type Fetcher struct {
	baseURL          string
	dataDir          string
	client           *http.Client
	maxRetries       int
	retryMaxInterval time.Duration
	keepArchive      bool
	progress         io.Writer
	logger           logger.Logger
	metrics          *metrics.Manager
}

// New returns a Fetcher with the default host, timeout and no retries.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:          config.DefaultBaseURL,
		dataDir:          ".",
		client:           &http.Client{Timeout: config.DefaultHTTPTimeout},
		retryMaxInterval: config.DefaultRetryMaxInterval,
		progress:         io.Discard,
		logger:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the remote address of the snapshot for date.
func (f *Fetcher) URL(date time.Time) string {
	return fmt.Sprintf("%s/epss_scores-%s.csv.gz", strings.TrimRight(f.baseURL, "/"), era.Format(date))
}

// Paths returns the local compressed and decompressed file names for date.
func (f *Fetcher) Paths(date time.Time) (archive, table string) {
	d := era.Format(date)
	return filepath.Join(f.dataDir, d+".csv.gz"), filepath.Join(f.dataDir, d+".csv")
}

// Fetch downloads the snapshot for date and returns the path of the
// extracted table. The compressed file is removed afterwards unless the
// fetcher was built with WithKeepArchive(true).
func (f *Fetcher) Fetch(ctx context.Context, date time.Time) (string, error) {
	started := time.Now()
	url := f.URL(date)
	archive, table := f.Paths(date)

	if err := os.MkdirAll(f.dataDir, dirPermission); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	fmt.Fprintf(f.progress, "Downloading %s ...\n", url)
	n, err := f.download(ctx, url, archive)
	if err != nil {
		_ = os.Remove(archive)
		return "", err
	}
	if !f.keepArchive {
		defer func() {
			if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
				f.logger.Warn(ctx, "failed to remove archive", logger.String("path", archive), logger.Error(err))
			}
		}()
	}

	fmt.Fprintf(f.progress, "Downloaded %s. Extracting...\n", archive)
	if err := extract(archive, table); err != nil {
		f.metrics.RecordFetchError("extract")
		return "", err
	}
	fmt.Fprintf(f.progress, "Extracted %s.\n", table)

	elapsed := time.Since(started)
	f.metrics.RecordFetch(elapsed, n)
	f.logger.Info(ctx, "snapshot fetched",
		logger.String("date", era.Format(date)),
		logger.String("path", table),
		logger.Int64("bytes", n),
		logger.Duration("elapsed", elapsed))
	return table, nil
}

// download GETs url into path, retrying per the configured policy.
func (f *Fetcher) download(ctx context.Context, url, path string) (int64, error) {
	var written int64
	attempt := 0
	op := func() error {
		attempt++
		f.metrics.RecordFetchAttempt()
		n, err := f.get(ctx, url, path)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				f.metrics.RecordFetchError(fmt.Sprintf("status_%d", se.Code))
				if !se.Retryable() {
					return backoff.Permanent(err)
				}
				return err
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			f.metrics.RecordFetchError("transport")
			return err
		}
		written = n
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.MaxInterval = f.retryMaxInterval
	eb.MaxElapsedTime = 0 // bounded by the retry count instead
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		f.logger.Warn(ctx, "download failed, retrying",
			logger.String("url", url),
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return 0, err
	}
	return written, nil
}

// get performs a single GET and stores a successful body at path.
func (f *Fetcher) get(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: request: %w", ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return 0, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: url}
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	return n, nil
}

// extract gunzips archive into table through a temporary file so a failed
// extraction never leaves a truncated table behind.
func extract(archive, table string) error {
	in, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(table), filepath.Base(table)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, zr); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if err := os.Chmod(tmp.Name(), filePermission); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	if err := os.Rename(tmp.Name(), table); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
