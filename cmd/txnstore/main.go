// Command txnstore ingests transaction CSV files into a SQL store and
// answers date-range summary queries over them.
//
// Usage:
//
//	txnstore [flags] ingest <file.csv>
//	txnstore [flags] summary -start 2024-01-01 -end 2024-01-31 [-group-by category|date]
//	txnstore [flags] count
//	txnstore [flags] clear
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/WillPhil45/Transaction-API/internal/config"
	"github.com/WillPhil45/Transaction-API/internal/ingest"
	"github.com/WillPhil45/Transaction-API/internal/logctx"
	"github.com/WillPhil45/Transaction-API/internal/metrics"
	"github.com/WillPhil45/Transaction-API/internal/metrics/prompush"
	"github.com/WillPhil45/Transaction-API/internal/query"
	"github.com/WillPhil45/Transaction-API/internal/source"
	"github.com/WillPhil45/Transaction-API/internal/storage"

	// Register the backends with the storage factory. The config selects
	// which to use, but support for all of them is built in.
	_ "github.com/WillPhil45/Transaction-API/internal/storage/postgres"
	_ "github.com/WillPhil45/Transaction-API/internal/storage/sqlite"
)

func main() {
	var (
		cfgPath        string
		metricsBackend string
		pushGatewayURL string
		validate       bool
	)

	flag.StringVar(&cfgPath, "config", "", "config JSON path (defaults apply when empty)")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend (pushgateway, none); overrides config")
	flag.StringVar(&pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL; overrides config")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Usage = usage

	flag.Parse()

	logger := newLogger(*verbose)
	logctx.SetDefault(logger)
	ctx := logctx.With(context.Background(), logger)

	cfg, envIssues, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := append(envIssues, config.Validate(cfg)...)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		fatalf("configuration is invalid")
	}
	if validate {
		logger.Info().Str("config", cfgPath).Msg("configuration is valid")
		return
	}

	setupMetrics(logger, cfg.Metrics, metricsBackend, pushGatewayURL)
	defer func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn().Err(err).Msg("metrics flush failed")
		}
	}()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	storeCfg := storage.Config{
		Kind:       cfg.Store.Kind,
		DSN:        cfg.Store.DSN,
		Table:      cfg.Store.Table,
		OnConflict: cfg.Store.OnConflict,
	}
	repo, err := storage.New(ctx, storeCfg)
	if err != nil {
		fatalf("open store: %v", err)
	}
	defer repo.Close()

	if err := storage.EnsureSchema(ctx, repo, storeCfg); err != nil {
		fatalf("ensure schema: %v", err)
	}

	switch args[0] {
	case "ingest":
		err = runIngest(ctx, repo, cfg, args[1:])
	case "summary":
		err = runSummary(ctx, repo, args[1:])
	case "count":
		err = runCount(ctx, repo)
	case "clear":
		err = runClear(ctx, repo)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		if query.IsValidation(err) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		fatalf("%v", err)
	}
}

// runIngest uploads one CSV file as a single job and prints the job outcome
// as JSON. The argument is a local path or an http(s) URL. A header mismatch
// or store failure exits non-zero; rejected rows alone do not.
func runIngest(ctx context.Context, repo storage.Repository, cfg config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: txnstore ingest <file.csv | url>")
	}
	if ext := filepath.Ext(uploadPath(args[0])); !strings.EqualFold(ext, ".csv") {
		return fmt.Errorf("unsupported file type %q: only .csv files are accepted", ext)
	}

	src := source.ForPath(args[0])
	rc, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	runner := ingest.NewRunner(repo, cfg.Ingest, cfg.Limits)
	tracker := ingest.NewTracker(filepath.Base(uploadPath(src.Name())), cfg.Ingest.RejectSampleCap)

	runErr := runner.Run(ctx, tracker, rc)
	if err := printJSON(tracker.Snapshot()); err != nil {
		return err
	}
	return runErr
}

// uploadPath strips the query/fragment from a URL argument so extension and
// base-name checks look at the path component only.
func uploadPath(arg string) string {
	u, err := url.Parse(arg)
	if err != nil || u.Path == "" {
		return arg
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return u.Path
	}
	return arg
}

// runSummary answers one date-range aggregation query and prints the result
// as JSON.
func runSummary(ctx context.Context, repo storage.Repository, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	start := fs.String("start", "", "range start date (YYYY-MM-DD, inclusive)")
	end := fs.String("end", "", "range end date (YYYY-MM-DD, inclusive)")
	groupBy := fs.String("group-by", "", "optional group field (category or date)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine := query.NewEngine(repo)
	summary, err := engine.Summary(ctx, query.DateRange{
		Start:   *start,
		End:     *end,
		GroupBy: *groupBy,
	})
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runCount(ctx context.Context, repo storage.Repository) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int64{"count": n})
}

func runClear(ctx context.Context, repo storage.Repository) error {
	n, err := repo.Clear(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int64{"deleted": n})
}

// setupMetrics decides the metrics backend: flag → config → none.
func setupMetrics(logger zerolog.Logger, cfg config.Metrics, backendFlag, gatewayFlag string) {
	backend := backendFlag
	if backend == "" {
		backend = cfg.Backend
	}
	switch backend {
	case "pushgateway":
		gwURL := gatewayFlag
		if gwURL == "" {
			gwURL = cfg.PushgatewayURL
		}
		b, err := prompush.NewBackend(cfg.Job, gwURL)
		if err != nil {
			logger.Warn().Err(err).Msg("metrics backend init failed, metrics disabled")
			return
		}
		logger.Info().Str("url", gwURL).Str("job", cfg.Job).Msg("pushgateway metrics enabled")
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		logger.Warn().Str("backend", backend).Msg("unknown metrics backend, metrics disabled")
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: txnstore [flags] <command> [args]

commands:
  ingest <file|url>   upload one CSV file as a single job
  summary             aggregate a date range (-start, -end, -group-by)
  count               print the number of stored transactions
  clear               delete all stored transactions

flags:
`)
	flag.PrintDefaults()
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
