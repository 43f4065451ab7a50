// Package main is the tansaku CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/cli"
	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/optim"
	"github.com/hyperjump/tansaku/internal/server"
	"github.com/hyperjump/tansaku/internal/watcher"
	"github.com/hyperjump/tansaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tansaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "run":
		runOptimize()
	case "search":
		runSearch()
	case "bounds":
		runBounds()
	case "version", "--version", "-v":
		fmt.Printf("tansaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags registers the flags every corpus-loading subcommand shares.
type commonFlags struct {
	configPath *string
	source     *string
	debug      *bool
}

func registerCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		source:     fs.String("source", "", "corpus source (overrides corpus.source)"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// setup loads config and creates the logger and app, exiting on failure.
func setup(c commonFlags) (*config.Config, *zap.Logger, *app) {
	cfg, resolvedConfigPath, err := loadConfig(*c.configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *c.source != "" {
		cfg.Corpus.Source = *c.source
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("source", cfg.Corpus.Source),
	)
	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return cfg, logger, a
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := registerCommon(fs)
	watch := fs.Bool("watch", false, "rebuild the corpus when its source changes")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, a := setup(common)
	defer logger.Sync()
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap, err := a.build(ctx)
	if err != nil {
		logger.Fatal("Failed to build corpus", zap.Error(err))
	}
	srv := server.NewServer(snap, &cfg.Server, logger)

	if *watch {
		w, err := watcher.NewWatcher(cfg.Corpus.Source, func() {
			next, err := a.build(ctx)
			if err != nil {
				logger.Warn("corpus rebuild failed; keeping previous corpus", zap.Error(err))
				return
			}
			srv.Swap(next)
		}, watcher.WithLogger(logger))
		if err != nil {
			logger.Fatal("Failed to create watcher", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = srv.Stop(stopCtx)
}

func runOptimize() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	common := registerCommon(fs)
	steps := fs.Int("steps", 0, "number of evaluations (0 = optimizer.steps)")
	seed := fs.Int64("seed", 0, "proposer seed (0 = optimizer.seed)")
	serverURL := fs.String("server", "", "drive a running tansaku server instead of building the corpus locally")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		if *steps <= 0 {
			fmt.Println("-steps is required with -server")
			os.Exit(1)
		}
		states, err := runViaHTTP(context.Background(), *serverURL, *steps, optim.NewRandomProposer(*seed))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Run failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteStates(os.Stdout, states, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, logger, a := setup(common)
	defer logger.Sync()
	defer a.Close()
	if *steps <= 0 {
		*steps = cfg.Optimizer.Steps
	}
	if *seed == 0 {
		*seed = cfg.Optimizer.Seed
	}

	ctx := context.Background()
	snap, err := a.build(ctx)
	if err != nil {
		logger.Fatal("Failed to build corpus", zap.Error(err))
	}
	states, err := optim.Run(ctx,
		optim.NewRandomProposer(*seed),
		snap.Corpus.Index(),
		optim.EvaluateCorpusFn(snap.Corpus, snap.Evaluator),
		*steps,
		optim.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("Run failed", zap.Error(err))
	}
	if err := cli.WriteStates(os.Stdout, states, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tansaku search [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces. It is embedded with the configured\nembedder; use -vector to search with a raw vector instead.\n\n")
	fs.PrintDefaults()
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseVector parses a comma-separated list of numbers.
func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	v := make([]float64, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("empty component at position %d", i)
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		v = append(v, f)
	}
	return v, nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	common := registerCommon(fs)
	k := fs.Int("k", 5, "number of nearest rows")
	vector := fs.String("vector", "", "comma-separated query vector in index space")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	text := buildSearchQuery(fs.Args())
	if text == "" && *vector == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	_, logger, a := setup(common)
	defer logger.Sync()
	defer a.Close()

	ctx := context.Background()
	snap, err := a.build(ctx)
	if err != nil {
		logger.Fatal("Failed to build corpus", zap.Error(err))
	}

	query, err := searchVector(ctx, a, snap, text, *vector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query: %v\n", err)
		os.Exit(1)
	}
	res, err := snap.Corpus.Index().Search([][]float64{query}, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResult(ctx, os.Stdout, res, snap.Corpus.Storage(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// searchVector returns the raw -vector as is, or embeds text and maps it into the index's
// search space.
func searchVector(ctx context.Context, a *app, snap *server.Snapshot, text, raw string) ([]float64, error) {
	if raw != "" {
		return parseVector(raw)
	}
	emb, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	q := make([]float64, len(emb))
	for i, v := range emb {
		q[i] = float64(v)
	}
	if p, ok := snap.Corpus.Index().Unwrap().(index.Projector); ok {
		return p.Project(q)
	}
	return q, nil
}

func runBounds() {
	fs := flag.NewFlagSet("bounds", flag.ExitOnError)
	common := registerCommon(fs)
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	_, logger, a := setup(common)
	defer logger.Sync()
	defer a.Close()

	snap, err := a.build(context.Background())
	if err != nil {
		logger.Fatal("Failed to build corpus", zap.Error(err))
	}
	if err := optim.CheckBounds(snap.Corpus.Index()); err != nil {
		logger.Fatal("Invalid bounds", zap.Error(err))
	}
	if err := cli.WriteBounds(os.Stdout, snap.Corpus.Index().Bounds(), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`tansaku - optimize over a corpus through its embedding space

Usage:
  tansaku <command> [flags]

Commands:
  serve     Build the corpus and serve the evaluation API (-watch rebuilds on change)
  run       Run a random-search optimizer over the corpus
  search    Find the rows nearest to a text or vector query
  bounds    Print per-dimension bounds of the search space
  version   Print version
  help      Show this help

Common flags:
  -config   config file path (default %s, falls back to ./config.yaml)
  -source   corpus source: .jsonl, .xlsx, .db/.sqlite file, or document directory
  -debug    enable debug logging

Examples:
  tansaku serve -watch
  tansaku run -steps 50 -output json
  tansaku run -server http://localhost:8080 -steps 20
  tansaku search -k 3 gaussian process surrogate
  tansaku search -vector 0.1,0.2,0.3
`, defaultConfigPath)
}
