package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/mlt2fcpx/internal/api"
	"github.com/heimdex/mlt2fcpx/internal/artifact"
	"github.com/heimdex/mlt2fcpx/internal/config"
	"github.com/heimdex/mlt2fcpx/internal/convert"
	"github.com/heimdex/mlt2fcpx/internal/db"
	"github.com/heimdex/mlt2fcpx/internal/export"
	"github.com/heimdex/mlt2fcpx/internal/history"
	"github.com/heimdex/mlt2fcpx/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `mlt2fcpx converts Kdenlive/MLT timelines to FCPXML.

Usage:
  mlt2fcpx convert [flags] <input> [output]   convert one timeline
  mlt2fcpx serve                              run the local HTTP API
  mlt2fcpx history [limit]                    list recent conversions
  mlt2fcpx version                            print version information
  mlt2fcpx help                               show this help

Run "mlt2fcpx convert -h" for conversion flags.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to load config: %v\n", err)
		return exitError
	}
	logger := logging.NewLogger(cfg.LogLevel(), stderr)

	switch args[0] {
	case "convert":
		return runConvert(cfg, logger, args[1:], stdout, stderr)
	case "serve":
		if err := runServe(cfg, logger, stdout); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitError
		}
		return exitOK
	case "history":
		return runHistory(cfg, logger, args[1:], stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "mlt2fcpx %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
		return exitOK
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

func runConvert(cfg config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", export.FormatFCPXML, "output format: fcpxml or edl")
	name := fs.String("name", "", "timeline name written into the output")
	embed := fs.Bool("embed", cfg.EmbedCompoundClips(), "inline referenced .kdenlive/.mlt timelines as compound clips")
	gaps := fs.Bool("gaps", cfg.GapNodes(), "write <gap> elements for blanks")
	depth := fs.Int("max-depth", cfg.MaxEmbedDepth(), "maximum nesting depth of embedded timelines")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: mlt2fcpx convert [flags] <input> [output]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return exitUsage
	}

	var recorder convert.Recorder
	if cfg.HistoryEnabled() {
		database, err := openDB(cfg, logger)
		if err != nil {
			logger.Warn("conversion history unavailable", "error", err)
		} else {
			defer database.Close()
			recorder = history.NewRepository(database.Conn())
		}
	}

	svc := convert.NewService(convert.Options{
		EmbedCompoundClips: *embed,
		MaxEmbedDepth:      *depth,
		GapNodes:           *gaps,
	}, recorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := svc.Convert(ctx, convert.Request{
		InputPath:  fs.Arg(0),
		OutputPath: fs.Arg(1),
		Format:     *format,
		Name:       *name,
	})
	if err != nil {
		fmt.Fprintf(stderr, "error: %s: %v\n", convert.ErrorCode(err), err)
		return exitError
	}

	fmt.Fprintln(stdout, res.OutputPath)
	return exitOK
}

func runServe(cfg config.Config, logger *slog.Logger, stdout io.Writer) error {
	startTime := time.Now()

	database, err := openDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if n, err := database.MarkInterruptedConversions(context.Background()); err != nil {
		logger.Warn("failed to mark interrupted conversions", "error", err)
	} else if n > 0 {
		logger.Info("marked interrupted conversions as failed", "count", n)
	}

	repo := history.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "mlt2fcpx %s\n", config.Version)
	fmt.Fprintf(stdout, "  API URL:    http://127.0.0.1:%d\n", cfg.Port())
	fmt.Fprintf(stdout, "  Auth Token: %s\n", authToken)
	fmt.Fprintln(stdout)

	var recorder convert.Recorder
	if cfg.HistoryEnabled() {
		recorder = repo
	}
	svc := convert.NewService(convert.Options{
		EmbedCompoundClips: cfg.EmbedCompoundClips(),
		MaxEmbedDepth:      cfg.MaxEmbedDepth(),
		GapNodes:           cfg.GapNodes(),
	}, recorder, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Converter:  svc,
		Repository: repo,
		Artifacts:  artifact.NewServer(logger),
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func runHistory(cfg config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintf(stderr, "error: limit must be a positive integer, got %q\n", args[0])
			return exitUsage
		}
		limit = n
	}

	database, err := openDB(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer database.Close()

	ctx := context.Background()
	repo := history.NewRepository(database.Conn())
	conversions, err := repo.ListConversions(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to list conversions: %v\n", err)
		return exitError
	}

	printHistory(stdout, conversions, time.Now())

	counts := make(map[string]int, 3)
	for _, status := range historyStatuses {
		n, err := repo.CountConversions(ctx, status)
		if err != nil {
			fmt.Fprintf(stderr, "error: failed to count conversions: %v\n", err)
			return exitError
		}
		counts[status] = n
	}
	printTotals(stdout, counts)
	return exitOK
}

var historyStatuses = []string{history.StatusCompleted, history.StatusFailed, history.StatusRunning}

func printTotals(w io.Writer, counts map[string]int) {
	parts := make([]string, 0, len(historyStatuses))
	for _, status := range historyStatuses {
		parts = append(parts, humanize.Comma(int64(counts[status]))+" "+status)
	}
	fmt.Fprintf(w, "totals: %s\n", strings.Join(parts, ", "))
}

func printHistory(w io.Writer, conversions []*history.Conversion, now time.Time) {
	if len(conversions) == 0 {
		fmt.Fprintln(w, "no conversions recorded")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFORMAT\tCLIPS\tSIZE\tWHEN\tINPUT")
	for _, c := range conversions {
		status := c.Status
		if c.ErrorCode != "" {
			status += " (" + c.ErrorCode + ")"
		}
		size := "-"
		if c.Status == history.StatusCompleted {
			size = humanize.Bytes(uint64(c.Bytes))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(c.ID),
			status,
			c.Format,
			humanize.Comma(int64(c.ClipCount)),
			size,
			humanize.RelTime(c.CreatedAt, now, "ago", "from now"),
			logging.SanitizePath(c.InputPath),
		)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(cfg config.Config, logger *slog.Logger) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return db.New(cfg.DBPath(), logger)
}

func ensureAuthToken(repo history.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
