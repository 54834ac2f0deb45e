package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/stream-downloader/internal/config"
	"github.com/ytget/stream-downloader/internal/controller"
	"github.com/ytget/stream-downloader/internal/download"
	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/notify"
	"github.com/ytget/stream-downloader/internal/platform"
	"github.com/ytget/stream-downloader/internal/runner"
	"github.com/ytget/stream-downloader/internal/store"
	httptransport "github.com/ytget/stream-downloader/internal/transport/http"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppID   = "com.ytget.stream-downloader"
	AppName = "Stream Downloader"

	defaultConfigPath = "config.yml"
)

// recordStore is satisfied by both store backends
type recordStore interface {
	download.Store
	controller.ItemStore
}

func main() {
	cfgPath := flag.String("c", defaultConfigPath, "path to the config file")
	flag.Parse()

	cfg := config.MustLoad(*cfgPath)
	log := newLogger(cfg.LogLevel)
	log.Info("starting", slog.String("app", AppName), slog.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fyneApp := app.NewWithID(AppID)
	settings := config.NewSettings(fyneApp)
	fs := afero.NewOsFs()

	if err := platform.CreateDirectoryIfNotExists(fs, settings.GetDownloadDirectory()); err != nil {
		log.Warn("cannot create download directory", slog.Any("error", err))
	}

	var st recordStore = store.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Error("cannot open database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = pg.Close() }()
		st = pg
	} else {
		log.Warn("no database configured, items are kept in memory only")
	}

	g, gctx := errgroup.WithContext(ctx)

	hub := notify.NewHub(log, notify.DefaultSubscriberBuffer)
	sinks := notify.Multi{
		hub,
		notify.NewDesktop(fyneApp, settings.GetPromptTone),
	}
	if cfg.RedisURL != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("cannot connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()

		redisSink := notify.NewRedis(log, rdb, cfg.RedisChannel)
		sinks = append(sinks, redisSink)
		g.Go(func() error { return redisSink.Run(gctx) })
	}

	workers := runner.New(log, fs, map[model.VideoType]runner.Backend{
		model.VideoTypeM3U8:  runner.NewM3U8(cfg.Workers.M3U8Bin),
		model.VideoTypeYTDLP: runner.NewYTDLP(cfg.Workers.YTDLPBin),
	})

	dispatcher := download.NewDispatcher(log, st, workers, settings, sinks, settings.GetMaxParallelDownloads())
	dispatcher.SetStoreTimeout(cfg.StoreTimeout)

	ctrl := controller.New(log, st, dispatcher, settings, platform.NewPlaylistParser(), sinks, fs)
	server := httptransport.NewServer(log, ctrl.Handlers(), hub)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return server.Run(gctx, cfg.Listen) })

	// The fyne event loop owns the main goroutine until the engine stops
	go func() {
		<-gctx.Done()
		fyneApp.Quit()
	}()
	fyneApp.Run()
	stop()

	if err := g.Wait(); err != nil {
		log.Error("stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("stopped")
}

func newLogger(level string) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	default:
		panic(fmt.Sprintf("unknown log level %q", level))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, lo))
}
