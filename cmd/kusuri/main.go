// Package main is the Kusuri CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kusuri/internal/cli"
	"github.com/hyperjump/kusuri/internal/config"
	"github.com/hyperjump/kusuri/internal/dataset"
	"github.com/hyperjump/kusuri/internal/models"
	"github.com/hyperjump/kusuri/internal/recommend"
	"github.com/hyperjump/kusuri/internal/server"
	"github.com/hyperjump/kusuri/internal/similarity"
	"github.com/hyperjump/kusuri/internal/snapshot"
	"github.com/hyperjump/kusuri/internal/storage"
	"github.com/hyperjump/kusuri/internal/watcher"
	"github.com/hyperjump/kusuri/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kusuri/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kusuri server" from the project dir uses the project's config.
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
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kusuri version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the services shared by the server and direct CLI modes.
type Components struct {
	Holder *snapshot.Holder
	Engine *recommend.Engine
}

// initializeComponents wires the snapshot holder and engine from cfg. The first snapshot
// is not loaded here; callers decide whether a failed load is fatal.
func initializeComponents(cfg *config.Config, logger *zap.Logger) *Components {
	loader := &snapshot.Loader{
		RecordsPath:    cfg.Data.RecordsPath,
		SimilarityPath: cfg.Data.SimilarityPath,
		Suggest:        cfg.Suggest.EnabledOrDefault(),
		Fuzziness:      cfg.Suggest.Fuzziness,
	}
	holder := snapshot.NewHolder(loader.Load, snapshot.WithLogger(logger))
	engine := recommend.NewEngine(holder,
		recommend.WithOverFetch(cfg.Recommend.OverFetch),
		recommend.WithLogger(logger),
	)
	return &Components{Holder: holder, Engine: engine}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (reloads, per-request scoring)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components := initializeComponents(cfg, logger)
	if _, err := components.Holder.Reload(); err != nil {
		logger.Fatal("Failed to load dataset", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Data.WatchOrDefault() {
		watchOpts := []watcher.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			[]string{cfg.Data.RecordsPath, cfg.Data.SimilarityPath},
			func(changed []string) {
				if _, err := components.Holder.Reload(); err != nil {
					logger.Warn("reload failed, keeping current dataset", zap.Strings("files", changed), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Engine, components.Holder, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printRecommendUsage prints recommend subcommand usage.
func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kusuri recommend [flags] <medicine name>\n\n")
	fmt.Fprintf(fs.Output(), "The medicine name is all remaining arguments joined by spaces. Lookup is case-insensitive.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Weights left unset take the server's (or config's) defaults. Out-of-range values are accepted.
--manufacturer-weight is accepted for compatibility and does not change the ranking.

Examples:
  kusuri recommend Augmentin 625 Duo Tablet
  kusuri recommend --top-n 10 --alpha 0.5 "Azithral 500 Tablet"
  kusuri recommend --projection raw --output compact Allegra 120mg Tablet
  kusuri recommend --server "" Augmentin 625 Duo Tablet   # load the dataset directly
`)
}

// buildQuery joins all positional args with spaces so multi-word names
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "kusuri recommend Dolo 650 -top-n 3"
// would otherwise leave -top-n unparsed. A bare "-" (stdin) is positional.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
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

// recommendInput builds the wire request from the parsed flags. Only flags the user set
// are sent, so unset weights take the server's defaults rather than the CLI's.
func recommendInput(fs *flag.FlagSet, query string) (*models.RecommendationInput, error) {
	in := &models.RecommendationInput{MedicineName: query}
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		getter, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		switch f.Name {
		case "top-n":
			n := getter.Get().(int)
			in.TopN = &n
		case "alpha":
			v := getter.Get().(float64)
			in.Alpha = &v
		case "satisfaction-weight":
			v := getter.Get().(float64)
			in.SatisfactionWeight = &v
		case "side-effect-weight":
			v := getter.Get().(float64)
			in.SideEffectWeight = &v
		case "manufacturer-weight":
			v := getter.Get().(float64)
			in.ManufacturerWeight = &v
		case "projection":
			p, perr := models.ParseProjection(getter.Get().(string))
			if perr != nil {
				err = perr
				return
			}
			in.Projection = string(p)
		}
	})
	return in, err
}

func runRecommend() {
	args := argsReorder(os.Args[2:])
	configPath := configPathFromArgs(args, defaultConfigPath)

	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	_ = fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = load the dataset directly)")
	_ = fs.Int("top-n", 5, "number of recommendations")
	_ = fs.Float64("alpha", 0.8, "weight of similarity against satisfaction")
	_ = fs.Float64("satisfaction-weight", 0.3, "weight of normalized satisfaction")
	_ = fs.Float64("side-effect-weight", 0.2, "penalty per unit of the record's manufacturer weight")
	_ = fs.Float64("manufacturer-weight", 0.3, "accepted for compatibility; not used in scoring")
	_ = fs.String("projection", "normalized", "satisfaction shown in results: normalized or raw")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(args)

	query := buildQuery(fs.Args())
	if query == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	input, err := recommendInput(fs, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var response *models.RecommendationResponse
	if *serverURL != "" {
		response, err = recommendViaHTTP(*serverURL, input)
	} else {
		response, err = recommendDirect(configPath, input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommendation failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// recommendDirect loads the dataset named by the config and runs the request in-process.
func recommendDirect(configPath string, input *models.RecommendationInput) (*models.RecommendationResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	components := initializeComponents(cfg, logger)
	if _, err := components.Holder.Reload(); err != nil {
		return nil, err
	}
	req := input.Resolve(cfg.Recommend.RequestDefaults())
	if req.ResultSize > cfg.Recommend.MaxResultSize {
		return nil, fmt.Errorf("top_n must be at most %d", cfg.Recommend.MaxResultSize)
	}
	resp, err := components.Engine.Recommend(req)
	if err != nil {
		var nf *recommend.NotFoundError
		if errors.As(err, &nf) {
			if snap := components.Holder.Current(); snap != nil && snap.Suggester != nil {
				if names, sErr := snap.Suggester.Suggest(nf.Query, cfg.Suggest.Limit); sErr == nil && len(names) > 0 {
					return nil, fmt.Errorf("%w (did you mean: %s?)", err, strings.Join(names, ", "))
				}
			}
		}
		return nil, err
	}
	return resp, nil
}

// apiError is the error body returned by the server.
type apiError struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions"`
}

// responseError turns a non-2xx response into an error, keeping the server's message.
func responseError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var e apiError
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		if len(e.Suggestions) > 0 {
			return fmt.Errorf("%s (did you mean: %s?)", e.Error, strings.Join(e.Suggestions, ", "))
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func recommendViaHTTP(serverURL string, input *models.RecommendationInput) (*models.RecommendationResponse, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	var response models.RecommendationResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dbPath := fs.String("db", "", "SQLite database to write (default: data.database_path from config)")
	matrixIn := fs.String("matrix", "", "similarity matrix to convert (.csv or binary)")
	matrixOut := fs.String("matrix-out", "", "where to write the binary matrix (default: data.similarity_path from config)")
	format := fs.String("format", "csv", "format of records read from stdin (\"-\"): csv or xlsx")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kusuri import [flags] <records.csv|records.xlsx|->")
		fs.PrintDefaults()
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	target := *dbPath
	if target == "" {
		target = cfg.Data.DatabasePath
	}
	recs, err := readRecords(path, *format, os.Stdin)
	if err != nil {
		logger.Fatal("Import failed", zap.String("path", path), zap.Error(err))
	}
	n, err := importRecords(context.Background(), recs, target)
	if err != nil {
		logger.Fatal("Import failed", zap.String("db", target), zap.Error(err))
	}
	fmt.Printf("Imported %d record(s) from %s into %s\n", n, path, target)

	if *matrixIn != "" {
		out := *matrixOut
		if out == "" {
			out = cfg.Data.SimilarityPath
		}
		size, err := convertMatrix(*matrixIn, out, n)
		if err != nil {
			logger.Fatal("Matrix conversion failed", zap.String("path", *matrixIn), zap.Error(err))
		}
		fmt.Printf("Wrote %d×%d similarity matrix to %s\n", size, size, out)
	}
}

// readRecords loads the records file at path, or parses stdin in format when path is "-".
func readRecords(path, format string, stdin io.Reader) ([]models.ItemRecord, error) {
	if path == "-" {
		return dataset.Read(stdin, format)
	}
	return dataset.Load(path)
}

// importRecords replaces the contents of the database at dbPath with recs and returns
// the row count the database reports afterwards.
func importRecords(ctx context.Context, recs []models.ItemRecord, dbPath string) (int, error) {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	if err := store.ReplaceRecords(ctx, recs); err != nil {
		return 0, err
	}
	n, err := store.CountRecords(ctx)
	if err != nil {
		return 0, err
	}
	if int(n) != len(recs) {
		return 0, fmt.Errorf("database holds %d records after import, expected %d", n, len(recs))
	}
	return int(n), nil
}

// convertMatrix loads a matrix in any supported format and saves it in binary form.
// records is the number of rows just imported; a mismatch is rejected.
func convertMatrix(in, out string, records int) (int, error) {
	m, err := similarity.Load(in)
	if err != nil {
		return 0, err
	}
	if m.Size() != records {
		return 0, fmt.Errorf("%w: matrix is %d×%d, %d records", snapshot.ErrDimensionMismatch, m.Size(), m.Size(), records)
	}
	if err := similarity.Save(out, m); err != nil {
		return 0, err
	}
	return m.Size(), nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = inspect the dataset directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil || format == cli.OutputCompact {
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	var status *models.Status
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusDirect reports on the dataset named by the config without a running server.
// A dataset that fails to load is reported with no snapshot.
func statusDirect(configPath string) (*models.Status, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	components := initializeComponents(cfg, logger)
	if _, err := components.Holder.Reload(); err != nil {
		fmt.Fprintf(os.Stderr, "Dataset not loadable: %v\n", err)
	}
	st := server.NewServer(components.Engine, components.Holder, cfg, logger).Status()
	return &st, nil
}

func statusViaHTTP(serverURL string) (*models.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	var s models.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		fmt.Printf("Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

// writeDefaultConfig writes a starter config whose data paths are relative to the config file.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	cfg := config.Default()
	cfg.Data.RecordsPath = "./data/medicines_cleaned.csv"
	cfg.Data.SimilarityPath = "./model/cosine_sim.bin"
	cfg.Data.DatabasePath = "./data/kusuri.db"
	return config.Save(path, cfg)
}

func printUsage() {
	fmt.Println(`kusuri - Medicine recommendation service

Usage:
  kusuri server [flags]              Start the HTTP server
  kusuri recommend [flags] <name>    Recommend medicines similar to <name>
  kusuri import [flags] <file|->     Import a records file (.csv, .xlsx, or stdin) into SQLite
  kusuri status [flags]              Show dataset/snapshot status
  kusuri init [--force] [path]       Write a default config (default: ./config.yaml)
  kusuri version                     Show version
  kusuri help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kusuri/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string                Config file path (for direct mode)
  --server string                Server URL (default: http://localhost:8080). Use empty (--server "") to load the dataset directly.
  --top-n int                    Number of recommendations (default from server config, 5)
  --alpha float                  Similarity weight (default 0.8)
  --satisfaction-weight float    Satisfaction weight (default 0.3)
  --side-effect-weight float     Manufacturer weight penalty (default 0.2)
  --manufacturer-weight float    Accepted; not used in scoring
  --projection string            normalized or raw (default: normalized)
  --output string                text, compact or json (default: text)

Import Flags:
  --config string      Config file path
  --db string          Target database (default: data.database_path)
  --matrix string      Also convert this similarity matrix (.csv or binary)
  --matrix-out string  Binary matrix output (default: data.similarity_path)
  --format string      Format of records on stdin when <file> is "-": csv or xlsx (default: csv)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Examples:
  kusuri init
  kusuri import --matrix model/cosine_sim.csv data/medicines_cleaned.csv
  kusuri server
  kusuri recommend Augmentin 625 Duo Tablet
  kusuri recommend --output json --top-n 3 "Azithral 500 Tablet"
  kusuri status --output json`)
}
