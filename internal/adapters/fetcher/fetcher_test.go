package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/epsshift/pkg/metrics"
)

const table = "#model_version:v2023.03.01,score_date:2024-01-01T00:00:00+0000\ncve,epss,percentile\nCVE-2024-0001,0.10000,0.50000\n"

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func counter(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestFetch(t *testing.T) {
	Convey("Given a server publishing a snapshot", t, func() {
		payload := gzipped(t, table)
		var requested atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requested.Store(r.URL.Path)
			if r.URL.Path != "/epss_scores-2024-01-01.csv.gz" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write(payload)
		}))
		defer srv.Close()

		dir := filepath.Join(t.TempDir(), "data")
		var progress bytes.Buffer
		m := metrics.NewManager()

		Convey("When fetching with defaults", func() {
			f := New(WithBaseURL(srv.URL+"/"), WithDataDir(dir), WithProgress(&progress), WithMetrics(m))
			path, err := f.Fetch(context.Background(), day("2024-01-01"))

			Convey("Then the extracted table is written and the archive removed", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, filepath.Join(dir, "2024-01-01.csv"))
				So(requested.Load(), ShouldEqual, "/epss_scores-2024-01-01.csv.gz")

				b, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(b), ShouldEqual, table)

				_, statErr := os.Stat(filepath.Join(dir, "2024-01-01.csv.gz"))
				So(os.IsNotExist(statErr), ShouldBeTrue)

				leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
				So(leftovers, ShouldBeEmpty)
			})

			Convey("Then progress is reported", func() {
				out := progress.String()
				So(out, ShouldContainSubstring, "Downloading "+srv.URL+"/epss_scores-2024-01-01.csv.gz")
				So(out, ShouldContainSubstring, "Extracting")
				So(out, ShouldContainSubstring, "Extracted "+path)
			})

			Convey("Then the attempt and bytes are recorded", func() {
				So(counter(m.Registry(), "epsshift_compare_fetch_attempts_total"), ShouldEqual, 1.0)
				So(counter(m.Registry(), "epsshift_compare_fetch_bytes_total"), ShouldEqual, float64(len(payload)))
			})
		})

		Convey("When the archive is kept", func() {
			f := New(WithBaseURL(srv.URL), WithDataDir(dir), WithKeepArchive(true))
			_, err := f.Fetch(context.Background(), day("2024-01-01"))

			Convey("Then the compressed file stays next to the table", func() {
				So(err, ShouldBeNil)
				b, readErr := os.ReadFile(filepath.Join(dir, "2024-01-01.csv.gz"))
				So(readErr, ShouldBeNil)
				So(b, ShouldResemble, payload)
			})
		})

		Convey("When the date is not published", func() {
			f := New(WithBaseURL(srv.URL), WithDataDir(dir), WithRetry(3, time.Millisecond), WithMetrics(m))
			_, err := f.Fetch(context.Background(), day("2024-01-02"))

			Convey("Then a status error is returned without retrying", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				var se *StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusNotFound)
				So(se.URL, ShouldEndWith, "/epss_scores-2024-01-02.csv.gz")
				So(counter(m.Registry(), "epsshift_compare_fetch_attempts_total"), ShouldEqual, 1.0)
				So(counter(m.Registry(), "epsshift_compare_fetch_errors_total"), ShouldEqual, 1.0)
			})

			Convey("Then no files are left behind", func() {
				entries, _ := os.ReadDir(dir)
				So(entries, ShouldBeEmpty)
			})
		})
	})
}

func TestFetchRetries(t *testing.T) {
	Convey("Given a server that fails twice before succeeding", t, func() {
		payload := gzipped(t, table)
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(payload)
		}))
		defer srv.Close()
		dir := t.TempDir()

		Convey("When retries are disabled", func() {
			f := New(WithBaseURL(srv.URL), WithDataDir(dir))
			_, err := f.Fetch(context.Background(), day("2024-01-01"))

			Convey("Then the first failure is final", func() {
				var se *StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(atomic.LoadInt32(&calls), ShouldEqual, int32(1))
			})
		})

		Convey("When two retries are allowed", func() {
			f := New(WithBaseURL(srv.URL), WithDataDir(dir), WithRetry(2, 5*time.Millisecond))
			path, err := f.Fetch(context.Background(), day("2024-01-01"))

			Convey("Then the third attempt succeeds", func() {
				So(err, ShouldBeNil)
				So(atomic.LoadInt32(&calls), ShouldEqual, int32(3))
				b, _ := os.ReadFile(path)
				So(string(b), ShouldEqual, table)
			})
		})
	})
}

func TestFetchFailures(t *testing.T) {
	Convey("Given a server returning a body that is not gzip", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		}))
		defer srv.Close()
		dir := t.TempDir()

		Convey("When fetching", func() {
			_, err := New(WithBaseURL(srv.URL), WithDataDir(dir)).Fetch(context.Background(), day("2024-01-01"))

			Convey("Then a decompress error is returned and no table exists", func() {
				So(errors.Is(err, ErrDecompress), ShouldBeTrue)
				_, statErr := os.Stat(filepath.Join(dir, "2024-01-01.csv"))
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})

	Convey("Given a server that never answers in time", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		Convey("When the timeout elapses", func() {
			f := New(WithBaseURL(srv.URL), WithDataDir(t.TempDir()), WithTimeout(50*time.Millisecond))
			_, err := f.Fetch(context.Background(), day("2024-01-01"))

			Convey("Then a fetch error is returned", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				So(strings.Contains(err.Error(), "Timeout") || strings.Contains(err.Error(), "deadline"), ShouldBeTrue)
			})
		})
	})

	Convey("Given an unreachable host", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		Convey("When fetching", func() {
			_, err := New(WithBaseURL(url), WithDataDir(t.TempDir())).Fetch(context.Background(), day("2024-01-01"))

			Convey("Then a fetch error is returned", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				var se *StatusError
				So(errors.As(err, &se), ShouldBeFalse)
			})
		})
	})
}

func TestStatusErrorRetryable(t *testing.T) {
	Convey("Given status errors", t, func() {
		cases := []struct {
			code int
			want bool
		}{
			{http.StatusNotFound, false},
			{http.StatusForbidden, false},
			{http.StatusRequestTimeout, true},
			{http.StatusTooManyRequests, true},
			{http.StatusInternalServerError, true},
			{http.StatusBadGateway, true},
		}
		for _, c := range cases {
			So((&StatusError{Code: c.code}).Retryable(), ShouldEqual, c.want)
		}
	})
}

func TestURL(t *testing.T) {
	Convey("Given the default fetcher", t, func() {
		f := New()
		So(f.URL(day("2025-03-17")), ShouldEqual, "https://epss.empiricalsecurity.com/epss_scores-2025-03-17.csv.gz")
		archive, tbl := f.Paths(day("2025-03-17"))
		So(archive, ShouldEqual, "2025-03-17.csv.gz")
		So(tbl, ShouldEqual, "2025-03-17.csv")
	})
}
