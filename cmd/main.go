package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"convosync/adapter"
	"convosync/auth"
	"convosync/internal"
	"convosync/notify"
	"convosync/observability"
	"convosync/projection"
	"convosync/realtime"
	"convosync/repositories"
	"convosync/rest"
	"convosync/runtime"
	"convosync/runtime/workers"
	"convosync/search"
	"convosync/sink"
	"convosync/upload"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the client lifecycle.
// Returning an error instead of exiting keeps the defers (database
// close, index close) running on every path.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Identity from the access token
	claims, err := auth.Identity(config.AccessToken)
	if err != nil {
		return fmt.Errorf("access token rejected: %w", err)
	}
	log.Info("Session identity resolved", "user", claims.UserID)

	// 3. Local storage (BadgerDB cache + Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("failed to open bluge writer: %w", err)
	}

	cache := repositories.NewMessageCache(db, log, config.LimitMessages)
	index := search.NewMessageIndex(blugeWriter, log)
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 4. Server clients (REST + websocket)
	api := rest.NewClient(log, config.APIBaseURL, config.AccessToken,
		rest.WithTimeout(config.RequestTimeout))

	transport := realtime.NewClient(log, &realtime.Config{
		URL:                  config.RealtimeURL,
		Token:                config.AccessToken,
		UserID:               claims.UserID,
		UserName:             claims.DisplayName,
		AutoReconnect:        true,
		MaxReconnectAttempts: config.MaxReconnectAttempts,
		ReconnectBaseDelay:   config.ReconnectBaseDelay,
		ReconnectMaxDelay:    config.ReconnectMaxDelay,
		BufferSize:           config.BufferSize,
	})

	// 5. Engine, directory, coordinator
	engine := runtime.NewEngine(log, claims.UserID, config.TypingTTL, config.BufferSize)
	router := runtime.NewRouter(log, engine, transport)
	directory := projection.NewDirectory(log, api, engine, router, cache)
	router.SetDirectory(directory)
	coordinator := runtime.NewCoordinator(log, engine, api)
	pipeline := upload.NewPipeline(log, api, config.UploadMaxFiles, config.UploadMaxBytes)
	sender := runtime.NewSender(log, engine, api, pipeline, claims.DisplayName)

	presenter := adapter.NewPresenter(engine, directory)
	renderer := adapter.NewTerminalRenderer(os.Stdout, presenter)

	// 6. Event fanout & sinks
	fanout := workers.NewEventFanout(log, engine.Events(), config.SinkTimeout).
		Add(sink.NewCacheSink(cache, log)).
		Add(sink.NewIndexSink(index, log)).
		Add(renderer)

	if terms := config.WatchTermList(); len(terms) > 0 {
		matcher, err := notify.NewMatcher(terms)
		if err != nil {
			return fmt.Errorf("keyword watch setup failed: %w", err)
		}
		fanout.Add(sink.NewKeywordSink(matcher, engine, log))
	}

	monitor := observability.NewMonitor(log, engine, config.MetricInterval)

	// 7. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Connect and load
	if err := transport.Connect(ctx); err != nil {
		log.Warn("Initial realtime connect failed, reconnect loop takes over", "error", err)
	}
	defer func() { _ = transport.Disconnect() }()

	directory.Load(ctx)

	// 9. Supervision
	repl := newRepl(log, os.Stdin, os.Stdout, replDeps{
		engine:      engine,
		directory:   directory,
		coordinator: coordinator,
		sender:      sender,
		transport:   transport,
		index:       index,
		monitor:     monitor,
		stop:        stop,
	})

	sup := workers.NewSupervisor(log)
	sup.Add(router, fanout, monitor, repl)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}
