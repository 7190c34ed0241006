package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/config"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/fetcher"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/observability"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/parser"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/sink"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

var (
	cfgFile        string
	verbose        bool
	simulate       bool
	sinkType       string
	outputPath     string
	mongoURI       string
	metricsPort    int
	metricsPath    string
	followLinks    bool
	maxFollowDepth int
)

const metadataDepthKey = "depth"

func main() {
	rootCmd := &cobra.Command{
		Use:   "politecrawl",
		Short: "politecrawl — per-domain polite fetch scheduler demo",
		Long: `politecrawl drives a bounded, priority-ordered, per-origin fetch
queue: seeds are offered into a DomainQueue per domain, polled under a
politeness policy (crawl delay or thread cap), fetched, and released —
with a deadline-driven graceful abort if the crawl runs past its budget.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [url...]",
		Short: "Run the polite scheduler against one or more seed URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPoliteCrawl,
	}

	cmd.Flags().BoolVar(&simulate, "simulate", true, "use the simulated fetcher instead of real HTTP")
	cmd.Flags().StringVar(&sinkType, "sink", "memory", "output sink: memory, json, mongo")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "./output/politecrawl.json", "output path for the json sink")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "mongodb://localhost:27017", "connection URI for the mongo sink")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve DOMAINS_FETCHING/URLS_REJECTED/URLS_ABORTED as Prometheus gauges on this port (0 = disabled, use in-process counters)")
	cmd.Flags().StringVar(&metricsPath, "metrics-path", "/metrics", "HTTP path for the metrics endpoint")
	cmd.Flags().BoolVar(&followLinks, "follow-links", true, "parse fetched pages and offer discovered links back into the scheduler")
	cmd.Flags().IntVar(&maxFollowDepth, "max-depth", 2, "maximum link-follow depth from a seed URL (ignored when --follow-links=false)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("politecrawl %s\n", config.Version)
		},
	}
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func buildSink(logger *slog.Logger) (polite.OutputSink, func(), error) {
	switch sinkType {
	case "memory":
		return sink.NewMemorySink(), func() {}, nil
	case "json":
		s, err := sink.NewJSONSink(outputPath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create json sink: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case "mongo":
		s, err := sink.NewMongoSink(mongoURI, "politecrawl", "crawl_records", logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create mongo sink: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink type %q (want memory, json, or mongo)", sinkType)
	}
}

// runPoliteCrawl wires config -> logger -> sink/counters -> Manager ->
// fetcher, offers every seed, then drains all domain queues to completion.
func runPoliteCrawl(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, rawURL := range args {
		if err := config.ValidateURL(rawURL); err != nil {
			return fmt.Errorf("invalid URL %q: %w", rawURL, err)
		}
	}

	outSink, closeSink, err := buildSink(logger)
	if err != nil {
		return err
	}
	defer closeSink()

	policy := cfg.Polite.BuildFetcherPolicy()

	// --metrics-port/--metrics-path override the config file; absent an
	// explicit flag, config.metrics is the source of truth.
	effectivePort, effectivePath := metricsPort, metricsPath
	if !cmd.Flags().Changed("metrics-port") && cfg.Metrics.Enabled {
		effectivePort = cfg.Metrics.Port
	}
	if !cmd.Flags().Changed("metrics-path") && cfg.Metrics.Path != "" {
		effectivePath = cfg.Metrics.Path
	}

	var counters polite.Counters
	var snapshot func() map[string]int64
	if effectivePort > 0 {
		promCounters := observability.NewPrometheusCounters(logger)
		if err := promCounters.StartServer(effectivePort, effectivePath); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		counters = promCounters
		snapshot = promCounters.Snapshot
	} else {
		atomicCounters := polite.NewAtomicCounters()
		counters = atomicCounters
		snapshot = atomicCounters.Snapshot
	}

	mgr := polite.NewManager(policy, outSink, counters, polite.WithLogger(logger))

	var f polite.Fetcher
	if simulate {
		f = fetcher.NewSimulatedFetcher(policy, 50*time.Millisecond)
	} else {
		httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
		if err != nil {
			return fmt.Errorf("create fetcher: %w", err)
		}
		f = fetcher.NewPoliteAdapter(httpFetcher, policy)
	}

	var seeded int
	for i, rawURL := range args {
		domain, err := polite.DomainOf(rawURL)
		if err != nil {
			logger.Warn("seed skipped, bad URL", "url", rawURL, "error", err)
			continue
		}
		score := float64(len(args) - i)
		item, err := polite.NewScoredURL(rawURL, score, map[string]string{metadataDepthKey: "0"})
		if err != nil {
			logger.Warn("seed skipped, bad score", "url", rawURL, "error", err)
			continue
		}
		if mgr.Offer(domain, item) {
			seeded++
		} else {
			logger.Warn("seed rejected by bounded admission queue", "url", rawURL, "domain", domain)
		}
	}
	if seeded == 0 {
		return fmt.Errorf("no seeds were admitted — check URLs")
	}
	logger.Info("starting polite crawl", "seeds", seeded, "domains", len(mgr.Domains()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var discoverer *parser.CompositeParser
	if followLinks {
		discoverer = parser.NewCompositeParser(logger)
	}

	start := time.Now()
	fetched, errored := drain(ctx, mgr, f, outSink, discoverer, cfg.Parser.Rules, maxFollowDepth, logger)
	elapsed := time.Since(start)

	fmt.Printf("\npolitecrawl complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  fetched: %d\n", fetched)
	fmt.Printf("  errored: %d\n", errored)
	snap := snapshot()
	fmt.Printf("  aborted: %d\n", snap[polite.CounterURLsAborted])
	fmt.Printf("  rejected: %d\n", snap[polite.CounterURLsRejected])

	return nil
}

// drain repeatedly polls every tracked domain until all of them are empty,
// dispatching each admitted batch through f and releasing it afterward. When
// discoverer is non-nil, every fetched page is parsed for outgoing links,
// which are scored and offered back into mgr up to maxDepth. It backs off
// briefly when every domain is momentarily gated by politeness timing,
// rather than busy-spinning.
func drain(ctx context.Context, mgr *polite.Manager, f polite.Fetcher, out polite.OutputSink, discoverer *parser.CompositeParser, rules []config.ParseRule, maxDepth int, logger *slog.Logger) (fetched, errored int) {
	for {
		if ctx.Err() != nil {
			return fetched, errored
		}

		domains := mgr.Domains()
		mgr.Reap()
		if len(domains) == 0 {
			return fetched, errored
		}

		progressed := false
		for _, domain := range domains {
			q := mgr.Queue(domain)
			batch, ok := q.Poll()
			if !ok {
				continue
			}
			progressed = true

			for _, item := range batch.Items() {
				datum, err := f.Fetch(ctx, item)
				if err != nil {
					logger.Warn("fetch failed", "url", item.NormalizedURL, "error", err)
					errored++
					continue
				}
				if err := out.Append(ctx, datum); err != nil {
					logger.Warn("sink append failed", "url", item.NormalizedURL, "error", err)
				}
				if datum.Status == polite.StatusFetched {
					fetched++
					if discoverer != nil {
						discoverAndOffer(mgr, discoverer, item, datum, rules, maxDepth, logger)
					}
				} else {
					errored++
				}
			}

			q.Release(batch)
		}

		if !progressed {
			select {
			case <-ctx.Done():
				return fetched, errored
			case <-time.After(25 * time.Millisecond):
			}
		}

		if len(mgr.Domains()) == 0 {
			return fetched, errored
		}
	}
}

// discoverAndOffer parses a fetched page for outgoing links and offers them
// back into mgr, scored and stamped one depth deeper than item, as long as
// the seed's depth budget allows it.
func discoverAndOffer(mgr *polite.Manager, discoverer *parser.CompositeParser, item polite.ScoredURL, datum polite.FetchedDatum, rules []config.ParseRule, maxDepth int, logger *slog.Logger) {
	depth, _ := strconv.Atoi(item.Metadata[metadataDepthKey])
	if depth >= maxDepth {
		return
	}

	req, err := types.NewRequest(item.NormalizedURL)
	if err != nil {
		return
	}
	resp := &types.Response{
		StatusCode:  datum.HTTPCode,
		Headers:     datum.Headers,
		Body:        datum.Body,
		Request:     req,
		ContentType: datum.ContentType,
		FinalURL:    datum.FinalURL,
	}

	_, links, err := discoverer.Parse(resp, rules)
	if err != nil {
		logger.Warn("link discovery failed", "url", item.NormalizedURL, "error", err)
		return
	}

	childDepth := strconv.Itoa(depth + 1)
	for _, link := range parser.ScoreLinks(links, depth) {
		link.Metadata[metadataDepthKey] = childDepth
		domain, err := polite.DomainOf(link.NormalizedURL)
		if err != nil {
			continue
		}
		mgr.Offer(domain, link)
	}
}
