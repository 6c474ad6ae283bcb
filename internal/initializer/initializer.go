package initializer

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/milkywaybrain/spotgalaxy/internal/api"
	"github.com/milkywaybrain/spotgalaxy/internal/collector"
	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/connector"
	"github.com/milkywaybrain/spotgalaxy/internal/exchange"
	"github.com/milkywaybrain/spotgalaxy/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Start will initialize various required systems and then execute the app.
// It returns when mainCtx is done or any of the app's routines fails.
func Start(mainCtx context.Context, cfg *config.Config) error {
	closeLog := setupLogger(&cfg.Log)
	defer closeLog()
	log.Info().Msg("logger setup is done")

	rest := connector.InitREST(&cfg.Connection.REST)

	store, err := openStore(&cfg.Connection)
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	defer store.Close()
	log.Info().Str("storage", cfg.Connection.Storage).Msg("storage connected")

	sinks, err := openSinks(cfg)
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}

	adapters, err := newAdapters(cfg, rest)
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}
	coll := collector.New(store, adapters, sinks, cfg.Fetch.Concurrency)

	// If the server or the scheduler fails, force the other to stop and exit the app.
	appErrGroup, appCtx := errgroup.WithContext(mainCtx)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewHandler(coll),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
	appErrGroup.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("query api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "query api server")
		}
		return nil
	})
	appErrGroup.Go(func() error {
		<-appCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	appErrGroup.Go(func() error {
		schedule(appCtx, coll, &cfg.Fetch)
		return nil
	})

	err = appErrGroup.Wait()
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("exiting the app")
		return err
	}
	log.Info().Msg("app stopped")
	return nil
}

// setupLogger points the global logger to a size rotated log file and, if set, the console.
// Without a file path logs go to stderr.
func setupLogger(cfg *config.Log) func() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var (
		writers []io.Writer
		closer  = func() {}
	)
	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, lj)
		closer = func() { _ = lj.Close() }
	}
	if cfg.Console || cfg.FilePath == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return closer
}

func openStore(cfg *config.Connection) (storage.Store, error) {
	switch cfg.Storage {
	case "postgres":
		s, err := storage.NewPostgres(&cfg.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "postgres connection")
		}
		return s, nil
	case "mysql":
		s, err := storage.NewMySQL(&cfg.MySQL)
		if err != nil {
			return nil, errors.Wrap(err, "mysql connection")
		}
		return s, nil
	default:
		s, err := storage.NewSQLite(&cfg.SQLite)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite connection")
		}
		return s, nil
	}
}

func openSinks(cfg *config.Config) ([]storage.LogSink, error) {
	sinks := make([]storage.LogSink, 0, len(cfg.LogSinks))
	for _, name := range cfg.LogSinks {
		switch name {
		case "terminal":
			sinks = append(sinks, storage.NewTerminal(os.Stdout))
			log.Info().Msg("terminal connected")
		case "elastic_search":
			es, err := storage.NewElasticSearch(&cfg.Connection.ES)
			if err != nil {
				return nil, errors.Wrap(err, "elastic search connection")
			}
			sinks = append(sinks, es)
			log.Info().Msg("elastic search connected")
		}
	}
	return sinks, nil
}

func newAdapters(cfg *config.Config, rest *connector.REST) ([]exchange.TickerFetcher, error) {
	opts := exchange.Options{
		FanOutWorkers: cfg.Fetch.FanOutWorkers,
		FanOutTimeout: time.Duration(cfg.Fetch.FanOutTimeoutSec) * time.Second,
	}
	enabled := cfg.EnabledExchanges()
	adapters := make([]exchange.TickerFetcher, 0, len(enabled))
	for _, exch := range enabled {
		a, err := exchange.New(exch.Name, rest, exch.BaseURL, opts)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// schedule fetches every exchange on start and every interval, as configured,
// until ctx is done.
func schedule(ctx context.Context, coll *collector.Collector, cfg *config.Fetch) {
	if cfg.OnStart {
		fetchAll(ctx, coll)
	}
	if cfg.IntervalSec <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(time.Duration(cfg.IntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fetchAll(ctx, coll)
		}
	}
}

func fetchAll(ctx context.Context, coll *collector.Collector) {
	var failed int
	for _, res := range coll.FetchAll(ctx) {
		if res.Status != storage.StatusSuccess {
			failed++
		}
	}
	log.Info().Int("failed", failed).Msg("scheduled fetch done")
}
