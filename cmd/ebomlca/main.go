package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	ebomlca "github.com/superdango/ebom-lca"
	"github.com/superdango/ebom-lca/internal/cache"
	"github.com/superdango/ebom-lca/internal/events"
	"github.com/superdango/ebom-lca/internal/store"
	"github.com/superdango/ebom-lca/internal/server"
	"github.com/superdango/ebom-lca/internal/workflow"
	"github.com/superdango/ebom-lca/model/materials"
	"gorm.io/gorm/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])

		flag.PrintDefaults()

		fmt.Fprint(os.Stderr, "\nScenarios:\n")
		for _, scenario := range ebomlca.Scenarios() {
			threshold, _ := scenario.Threshold()
			fmt.Fprintf(os.Stderr, "  %-18s %g kgCO2e\n", scenario, threshold)
		}
	}

	flagListen := ""
	flagDBDSN := ""
	flagEventsRedis := ""
	flagEventsStream := ""
	flagEventsMaxLen := int64(0)
	flagCatalogTTL := time.Duration(0)
	flagSeedMaterials := false
	flagLogLevel := ""
	flagLogFormat := ""

	flag.StringVar(&flagListen, "listen", "0.0.0.0:2923", "addr to listen to")
	flag.StringVar(&flagDBDSN, "db.dsn", "ebomlca.db", "sqlite file or postgres:// url")
	flag.StringVar(&flagEventsRedis, "events.redis", "", "redis url to also stream usage events to (disabled when empty)")
	flag.StringVar(&flagEventsStream, "events.stream", "ebomlca:events", "redis stream receiving usage events")
	flag.Int64Var(&flagEventsMaxLen, "events.maxlen", 100000, "approximate max length of the redis stream")
	flag.DurationVar(&flagCatalogTTL, "catalog.ttl", time.Minute, "how long the material catalog is kept in memory")
	flag.BoolVar(&flagSeedMaterials, "seed.materials", true, "load the reference materials when the catalog is empty")
	flag.StringVar(&flagLogLevel, "log.level", "info", "log severity (debug, info, warn, error)")
	flag.StringVar(&flagLogFormat, "log.format", "text", "log format (text, json)")

	flag.Parse()

	initLogging(flagLogLevel, flagLogFormat)

	storeOpts := []store.Options{}
	if slogLevel(flagLogLevel) == slog.LevelDebug {
		storeOpts = append(storeOpts, store.WithLogger(logger.Default.LogMode(logger.Info)))
	}

	st, err := store.Open(ctx, flagDBDSN, storeOpts...)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	if flagSeedMaterials {
		if err := seedMaterials(ctx, st); err != nil {
			slog.Error("failed to seed materials", "err", err)
			os.Exit(1)
		}
	}

	sinks := events.Multi{st, events.SlogSink{Logger: slog.Default()}}
	if flagEventsRedis != "" {
		opts, err := redis.ParseURL(flagEventsRedis)
		if err != nil {
			slog.Error("invalid redis url", "err", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		sinks = append(sinks, events.NewRedisSink(client, flagEventsStream, flagEventsMaxLen))
	}

	catalog := cache.NewCatalog(ctx, st, flagCatalogTTL)
	toolbar := workflow.NewToolbar(st, catalog, st, workflow.WithEvents(events.FireAndForget(sinks)))

	httpServer := &http.Server{
		Addr:              flagListen,
		Handler:           server.New(st, catalog, toolbar),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shutdown http server", "err", err)
		}
	}()

	slog.Info("starting ebom lca server", "listen", flagListen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to start ebom lca server", "err", err)
		os.Exit(1)
	}
}

func seedMaterials(ctx context.Context, st *store.Store) error {
	existing, err := st.Materials(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	slog.Info("seeding reference materials", "count", len(materials.Default()))
	return st.UpsertMaterials(ctx, materials.Default())
}

func initLogging(logLevel string, logFormat string) {
	switch logFormat {
	case "text":
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:   slogLevel(logLevel),
			NoColor: !isatty.IsTerminal(os.Stdout.Fd()),
		})))
	case "json":
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(logLevel),
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.LevelKey:
					a.Key = "severity"
				case slog.MessageKey:
					a.Key = "message"
				}
				return a
			},
		})))
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
