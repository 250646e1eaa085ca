package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/epsshift/internal/adapters/fetcher"
	"github.com/okian/epsshift/internal/adapters/prompt"
	"github.com/okian/epsshift/internal/adapters/report"
	"github.com/okian/epsshift/internal/adapters/snapshot"
	app "github.com/okian/epsshift/internal/app"
	"github.com/okian/epsshift/internal/config"
	"github.com/okian/epsshift/internal/domain/dedupe"
	"github.com/okian/epsshift/internal/domain/era"
	"github.com/okian/epsshift/pkg/logger"
	"github.com/okian/epsshift/pkg/metrics"
)

// flags holds command line values. Empty strings and unset flags fall back
// to configuration or to an interactive prompt.
type flags struct {
	configPath  string
	start       string
	end         string
	count       int
	dataDir     string
	baseURL     string
	keepArchive bool
	logLevel    string
	output      string
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "epsshift",
		Short: "Show the CVEs whose EPSS score grew the most between two dates",
		Long: `epsshift downloads the EPSS snapshots published for two dates, joins them
on CVE and prints the largest score increases.

Dates and count not given as flags are asked for interactively.

Example:
  epsshift --start 2024-01-01 --end 2024-06-01 --count 20
  EPSSHIFT_MAX_RETRIES=3 epsshift --data-dir /tmp/epss`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f, in, out, errOut)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	fs.StringVarP(&f.start, "start", "s", "", "first date, YYYY-MM-DD")
	fs.StringVarP(&f.end, "end", "e", "", "second date, YYYY-MM-DD")
	fs.IntVarP(&f.count, "count", "n", 0, "number of increases to show")
	fs.StringVar(&f.dataDir, "data-dir", "", "directory receiving downloaded tables")
	fs.StringVar(&f.baseURL, "base-url", "", "host serving epss_scores-<date>.csv.gz")
	fs.BoolVar(&f.keepArchive, "keep-archive", false, "keep the .csv.gz after extraction")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVarP(&f.output, "output", "o", string(report.FormatText), "report format: text or json")
	return cmd
}

func run(cmd *cobra.Command, f flags, in io.Reader, out, errOut io.Writer) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	if err := logger.InitWithWriter(errOut); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	format, err := report.ParseFormat(f.output)
	if err != nil {
		return err
	}
	// Keep stdout a clean JSON document.
	notices := out
	if format == report.FormatJSON {
		notices = errOut
	}

	policy, err := dedupe.ParsePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return err
	}

	m := metrics.NewManager(metrics.WithMetricsEnabled(cfg.MetricsTextfile != ""))
	defer func() {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn(ctx, "failed to write metrics", logger.String("path", cfg.MetricsTextfile), logger.Error(err))
		}
	}()

	runner := app.New(
		app.WithLogger(log),
		app.WithMetrics(m),
		app.WithOutput(out),
		app.WithNotices(notices),
		app.WithFormat(format),
		app.WithFetcher(fetcher.New(
			fetcher.WithBaseURL(cfg.BaseURL),
			fetcher.WithDataDir(cfg.DataDir),
			fetcher.WithTimeout(cfg.HTTPTimeout),
			fetcher.WithRetry(cfg.MaxRetries, cfg.RetryMaxInterval),
			fetcher.WithKeepArchive(cfg.KeepArchive),
			fetcher.WithProgress(notices),
			fetcher.WithLogger(log.Named("fetcher")),
			fetcher.WithMetrics(m),
		)),
		app.WithLoader(snapshot.NewLoader(
			snapshot.WithDuplicatePolicy(policy),
			snapshot.WithLogger(log.Named("snapshot")),
		)),
	)

	p := prompt.New(in, notices)

	start, err := dateValue(p, f.start, prompt.StartDate)
	if err != nil {
		return err
	}
	end, err := dateValue(p, f.end, prompt.EndDate)
	if err != nil {
		return err
	}
	// The order check and era warning come before the count question.
	if err := runner.Check(start, end); err != nil {
		return err
	}

	count := f.count
	if !cmd.Flags().Changed("count") {
		answer, err := p.Ask(prompt.Count)
		if err != nil {
			return fmt.Errorf("%w: %w", app.ErrCountFormat, err)
		}
		if answer == "" {
			count = cfg.DefaultCount
		} else if count, err = app.ParseCount(answer); err != nil {
			return err
		}
	}

	_, err = runner.Run(ctx, app.Request{Start: start, End: end, Limit: count})
	return err
}

// loadConfig layers command line flags over defaults, file and env.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), f.configPath)
	if err != nil {
		return nil, err
	}
	changed := cmd.Flags().Changed
	if changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if changed("keep-archive") {
		cfg.KeepArchive = f.keepArchive
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dateValue parses value, asking question first when value is empty.
func dateValue(p *prompt.Prompter, value, question string) (_ time.Time, err error) {
	if value == "" {
		if value, err = p.Ask(question); err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", era.ErrDateFormat, err)
		}
	}
	return era.ParseDate(value)
}
