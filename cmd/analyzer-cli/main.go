package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Gl0balRak/textanalyzer-gateway/analyzer"
	"github.com/Gl0balRak/textanalyzer-gateway/cache"
	"github.com/Gl0balRak/textanalyzer-gateway/config"
	"github.com/Gl0balRak/textanalyzer-gateway/models"
	"github.com/Gl0balRak/textanalyzer-gateway/pipeline"
	"github.com/Gl0balRak/textanalyzer-gateway/progress"
	"github.com/Gl0balRak/textanalyzer-gateway/stopwords"
)

func main() {
	app := &cli.App{
		Name:  "analyzer-cli",
		Usage: "run the text analysis pipeline from the command line",
		Commands: []*cli.Command{
			{
				Name:   "analyze",
				Usage:  "analyze a page against its top competitors, optionally running LSI and keyword stages",
				Action: analyzeAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "page URL to analyze", Required: true},
					&cli.StringFlag{Name: "query", Usage: "main search query", Required: true},
					&cli.StringSliceFlag{Name: "additional", Usage: "additional search queries"},
					&cli.StringFlag{Name: "stopwords-file", Usage: "file with words to exclude, separated by newlines, commas or semicolons"},
					&cli.StringFlag{Name: "engine", Value: "yandex", Usage: "search engine: yandex or google"},
					&cli.StringFlag{Name: "region", Value: "213", Usage: "search region code"},
					&cli.IntFlag{Name: "top", Value: 10, Usage: "how many top results to compare against"},
					&cli.BoolFlag{Name: "lsi", Usage: "run the LSI n-gram comparison after the primary analysis"},
					&cli.BoolFlag{Name: "keywords", Usage: "run the keyword-by-tag analysis after the primary analysis"},
					&cli.BoolFlag{Name: "quiet", Usage: "suppress progress logging"},
				},
			},
			{
				Name:   "single-page",
				Usage:  "analyze a single page without a competitor comparison",
				Action: singlePageAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "page URL to analyze", Required: true},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCoordinator(quiet bool) *pipeline.Coordinator {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if quiet {
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	client := analyzer.NewClient(cfg.Backend.AnalyzerURL, &http.Client{
		Timeout: cfg.Backend.RequestTimeout,
	})
	stageCfg := pipeline.Config{
		Progress: progress.Config{
			TickInterval:     cfg.Progress.TickInterval,
			MaxIncrement:     cfg.Progress.MaxIncrement,
			Hold:             cfg.Progress.Hold,
			CompleteStep:     cfg.Progress.CompleteStep,
			CompleteInterval: cfg.Progress.CompleteInterval,
		},
		StallTimeout: cfg.Pipeline.StallTimeout,
	}
	singleCache := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	return pipeline.NewCoordinator(pipeline.NewBackend(client), stageCfg, singleCache)
}

func analyzeAction(c *cli.Context) error {
	coord := newCoordinator(c.Bool("quiet"))

	req := &models.AnalysisRequest{
		PageURL:           c.String("url"),
		MainQuery:         c.String("query"),
		AdditionalQueries: c.StringSlice("additional"),
		SearchEngine:      c.String("engine"),
		Region:            c.String("region"),
		TopSize:           c.Int("top"),
	}
	if path := c.String("stopwords-file"); path != "" {
		words, err := stopwords.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load stop words: %w", err)
		}
		req.ExcludedWords = words
	}

	ctx := c.Context
	stop := watchProgress(coord, models.StagePrimary, c.Bool("quiet"))
	err := coord.RunPrimary(ctx, req)
	stop()
	if err != nil {
		return err
	}

	if c.Bool("lsi") || c.Bool("keywords") {
		coord.SelectAll()
	}
	if c.Bool("lsi") {
		stop = watchProgress(coord, models.StageLSI, c.Bool("quiet"))
		err = coord.RunLSI(ctx, &pipeline.LSIParams{})
		stop()
		if err != nil {
			return err
		}
	}
	if c.Bool("keywords") {
		stop = watchProgress(coord, models.StageKeywords, c.Bool("quiet"))
		err = coord.RunKeywords(ctx)
		stop()
		if err != nil {
			return err
		}
	}

	return printJSON(coord.Snapshot())
}

func singlePageAction(c *cli.Context) error {
	coord := newCoordinator(false)
	record, err := coord.AddSingleURL(context.Background(), c.String("url"))
	if err != nil {
		return err
	}
	return printJSON(record)
}

// watchProgress prints the stage's progress estimate once per second
// until the returned stop function is called.
func watchProgress(coord *pipeline.Coordinator, kind models.StageKind, quiet bool) func() {
	if quiet {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				view := coord.StageView(kind)
				fmt.Fprintf(os.Stderr, "%s: %s %.0f%%\n", view.Kind, view.Status, view.Progress)
			}
		}
	}()
	return func() { close(done) }
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
