package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/August26/proxyscout/internal/analytics"
	"github.com/August26/proxyscout/internal/checker"
	"github.com/August26/proxyscout/internal/config"
	"github.com/August26/proxyscout/internal/discovery"
	"github.com/August26/proxyscout/internal/geo"
	"github.com/August26/proxyscout/internal/logging"
	"github.com/August26/proxyscout/internal/model"
	"github.com/August26/proxyscout/internal/output"
	"github.com/August26/proxyscout/internal/parser"
	"github.com/August26/proxyscout/internal/progress"
	"github.com/August26/proxyscout/internal/store"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, closeLog, err := logging.Open(cfg.LogFile, cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout, os.Stderr); err != nil {
		log.Error("proxyscout failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseFlags fills a config from defaults, then the -config file if given,
// then the flags. Flags passed explicitly win over the file.
func parseFlags(fs *flag.FlagSet, args []string) (model.Config, error) {
	cfg := config.Default()
	var configFile string

	fs.StringVar(&configFile, "config", "", "optional YAML config file")
	fs.StringVar(&cfg.ProxyType, "type", cfg.ProxyType, "proxy type: http | socks4 | socks5")
	fs.StringVar(&cfg.InputFile, "input", cfg.InputFile, "path to file with proxy list")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "optional path to write working proxies sorted by country")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "optional path to write the full report")
	fs.StringVar(&cfg.ReportFormat, "format", cfg.ReportFormat, "report format: json | csv")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "number of concurrent workers")
	fs.IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "timeout in seconds for each proxy check")
	fs.IntVar(&cfg.BatchTimeoutSeconds, "batch-timeout", cfg.BatchTimeoutSeconds, "deadline in seconds for the whole batch, 0 = none")
	fs.IntVar(&cfg.GeoTimeoutSeconds, "geo-timeout", cfg.GeoTimeoutSeconds, "timeout in seconds for a country lookup")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "extra attempts per failed proxy")
	fs.StringVar(&cfg.ProbeURL, "probe-url", cfg.ProbeURL, "URL fetched through http proxies")
	fs.StringVar(&cfg.ProbeAddr, "probe-addr", cfg.ProbeAddr, "host:port dialed through socks proxies")
	fs.StringVar(&cfg.GeoURL, "geo-url", cfg.GeoURL, "ip-api compatible lookup endpoint")
	fs.StringVar(&cfg.GeoIPDB, "geoip", cfg.GeoIPDB, "optional GeoIP2/GeoLite2 country database")
	fs.StringVar(&cfg.Database, "db", cfg.Database, "optional SQLite database for working proxies")
	fs.BoolVar(&cfg.Discover, "discover", cfg.Discover, "search the web for candidates before checking")
	fs.StringVar(&cfg.SearchURL, "search-url", cfg.SearchURL, "search endpoint, %s receives the query")
	fs.Float64Var(&cfg.DiscoverRate, "discover-rate", cfg.DiscoverRate, "link fetches per second during discovery, 0 = unlimited")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logs")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file instead of stderr")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if configFile != "" {
		if err := config.LoadFile(configFile, &cfg); err != nil {
			return cfg, err
		}
		// again, so flags on the command line override the file
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
	}
	return cfg, config.Validate(cfg)
}

func run(ctx context.Context, cfg model.Config, log *slog.Logger, stdout, stderr io.Writer) error {
	protocol, err := model.ParseProtocol(cfg.ProxyType)
	if err != nil {
		return err
	}

	log.Info("starting proxyscout",
		"type", protocol,
		"timeout_seconds", cfg.TimeoutSeconds,
		"batch_timeout_seconds", cfg.BatchTimeoutSeconds,
		"concurrency", cfg.Concurrency,
		"retries", cfg.Retries,
		"discover", cfg.Discover,
	)

	dialer, err := checker.NewDialer(protocol, checker.DialOptions{
		ProbeURL:  cfg.ProbeURL,
		ProbeAddr: cfg.ProbeAddr,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	locators := geo.Chain{}
	if cfg.GeoIPDB != "" {
		db, err := geo.OpenGeoIP2(cfg.GeoIPDB, log)
		if err != nil {
			return err
		}
		defer db.Close()
		locators = append(locators, db)
	}
	locators = append(locators, geo.NewIPAPI(cfg.GeoURL, time.Duration(cfg.GeoTimeoutSeconds)*time.Second, log))
	locator := geo.NewCache(locators)

	opts := []checker.Option{
		checker.WithConcurrency(cfg.Concurrency),
		checker.WithCheckTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		checker.WithBatchTimeout(time.Duration(cfg.BatchTimeoutSeconds) * time.Second),
		checker.WithRetries(cfg.Retries, checker.DefaultRetryDelay),
		checker.WithLogger(log),
	}
	if cfg.Database != "" {
		st, err := store.Open(ctx, cfg.Database, protocol)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, checker.WithStore(st))
	}

	var lines []string
	if cfg.InputFile != "" {
		lines, err = parser.LoadFromFile(cfg.InputFile)
		if err != nil {
			return err
		}
		log.Info("proxies loaded", "count", len(lines), "path", cfg.InputFile)
	}

	if cfg.Discover {
		found, err := discover(ctx, protocol, cfg, log, stderr)
		if err != nil {
			return err
		}
		lines = append(lines, found...)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	start := time.Now()
	bar := progress.NewBar(stderr, "checking")
	obs := &validationObserver{Reporter: progress.Multi{bar, &progress.Log{Log: log}}, bar: bar}
	report := checker.NewEngine(dialer, locator, opts...).Validate(ctx, protocol, lines, obs)
	stats := analytics.Compute(report, time.Since(start))

	log.Info("batch finished",
		"total_ms", stats.TotalProcessingTimeMs,
		"working", stats.WorkingProxies,
		"total", stats.TotalProxies,
	)

	output.PrintResultsTable(stdout, report)
	output.PrintSummary(stdout, stats)

	if cfg.OutputFile != "" {
		sorted := output.SortByCountry(ctx, report.Outcomes, locator)
		if err := output.WriteSorted(cfg.OutputFile, sorted); err != nil {
			log.Error("failed to write sorted proxies", "err", err, "path", cfg.OutputFile)
		} else {
			log.Info("sorted proxies written", "path", cfg.OutputFile, "count", len(sorted))
		}
	}

	if cfg.ReportFile != "" {
		if err := output.WriteFile(cfg.ReportFile, cfg.ReportFormat, report, stats); err != nil {
			log.Error("failed to write report", "err", err, "path", cfg.ReportFile)
		} else {
			log.Info("report written", "path", cfg.ReportFile, "format", cfg.ReportFormat)
		}
	}
	return nil
}

// discover runs a discovery session until it finishes or ctx is done.
// A failed search is not fatal: the batch goes on with the input file.
func discover(ctx context.Context, protocol model.Protocol, cfg model.Config, log *slog.Logger, stderr io.Writer) ([]string, error) {
	bar := progress.NewBar(stderr, "discovering")
	obs := &discoveryObserver{Reporter: progress.Multi{bar, &progress.Log{Log: log}}, bar: bar}

	s := discovery.New(protocol, obs,
		discovery.WithSearchURL(cfg.SearchURL),
		discovery.WithRate(cfg.DiscoverRate),
		discovery.WithLogger(log),
	)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Stop()
	}
	res := s.Wait()
	if res.State == discovery.StateFailed {
		log.Warn("discovery failed, continuing without discovered proxies", "err", res.Err)
	}
	return res.Candidates, nil
}

type validationObserver struct {
	progress.Reporter
	bar *progress.Bar
}

func (o *validationObserver) OnCompleted(model.ValidationReport) {
	o.bar.Finish()
}

type discoveryObserver struct {
	progress.Reporter
	bar *progress.Bar
}

func (o *discoveryObserver) OnCompleted(discovery.Result) {
	o.bar.Finish()
}
