package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/IliaW/granola-scraper-bot/config"
	"github.com/IliaW/granola-scraper-bot/internal/classifier"
	"github.com/IliaW/granola-scraper-bot/internal/pipeline"
	"github.com/IliaW/granola-scraper-bot/internal/scraper"
	"github.com/IliaW/granola-scraper-bot/internal/slackbot"
)

var (
	cfg *config.Config
	log *slog.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg = config.MustLoad()
	log = setupLogger()
	startTime := time.Now()
	log.Info("starting granola link scraper bot.", slog.String("env", cfg.Env),
		slog.String("version", cfg.Version), slog.Time("start_time", startTime))

	client, api := slackbot.NewClient(cfg.SlackSettings, log)
	p := &pipeline.Pipeline{
		Cfg:       cfg,
		Log:       log,
		Scraper:   scraper.NewBrowserScraper(cfg.ScraperSettings, log),
		Poster:    client,
		Directory: client,
		Classifier: classifier.New(classifier.Vocabulary{
			ExcludedTerms: cfg.Vocabulary.ExcludedTerms,
			MemberNames:   cfg.Vocabulary.MemberNames,
		}),
		BotID:     client.BotID(ctx),
		StartTime: startTime,
	}
	listener := slackbot.NewListener(api, p.Handle, log)

	// Graceful shutdown.
	// 1. Stop accepting events by system call. Close the socket mode connection
	// 2. Wait till in-flight scrapes post their results, bounded by shutdown_timeout
	if err := listener.Run(ctx); err != nil {
		log.Error("socket mode stopped.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("stopping bot...")
	if !listener.Wait(cfg.ShutdownTimeout) {
		log.Warn("in-flight scrapes did not finish before shutdown timeout.")
	}
	log.Info("bot stopped.")
}

func setupLogger() *slog.Logger {
	resolvedLogLevel := func() slog.Level {
		envLogLevel := strings.ToLower(cfg.LogLevel)
		switch envLogLevel {
		case "info":
			return slog.LevelInfo
		case "warn":
			return slog.LevelWarn
		case "error":
			return slog.LevelError
		default:
			return slog.LevelDebug
		}
	}

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       resolvedLogLevel(),
			ReplaceAttr: replaceAttrs,
			NoColor:     false}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}
