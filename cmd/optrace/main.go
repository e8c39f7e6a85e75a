// Command optrace records a live browser session as an ordered trace of
// operations: every navigation and user gesture, enriched with the DOM
// mutations and network activity observed while it was in effect.
//
// Usage:
//
//	optrace -config optrace.yaml             # full configuration
//	optrace -url https://example.com         # quick mode, fs sink in ./trace
//	optrace -url https://example.com -out db.sqlite -sink sqlite
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/optrace/api"
	"github.com/hazyhaar/optrace/browser"
	"github.com/hazyhaar/optrace/config"
	"github.com/hazyhaar/optrace/session"
	"github.com/hazyhaar/optrace/sink"
)

func main() {
	configPath := flag.String("config", "", "path to optrace.yaml config file")
	startURL := flag.String("url", "", "record a session starting at this URL")
	out := flag.String("out", "trace", "output path (directory for fs, file for sqlite)")
	sinkType := flag.String("sink", "fs", "sink type: fs, sqlite, stdout")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *startURL, *out, *sinkType); err != nil {
		logger.Error("optrace: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, startURL, out, sinkType string) error {
	var cfg *config.Config
	switch {
	case configPath != "":
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	case startURL != "":
		cfg = &config.Config{Sinks: []config.SinkConfig{{Type: sinkType, Path: out}}}
		cfg.ApplyDefaults()
	default:
		fmt.Fprintln(os.Stderr, "usage: optrace -config <file> | -url <url> [-out <path>] [-sink fs|sqlite|stdout]")
		os.Exit(1)
	}

	snk, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}

	coord := session.NewCoordinator(session.CoordinatorConfig{
		Endpoint:        cfg.Browser.Remote,
		Sink:            snk,
		SettleWindow:    cfg.Session.SettleWindow,
		PendingCapacity: cfg.Session.PendingCapacity,
		Logger:          logger,
	})
	logger.Info("optrace: session started", "session", coord.Session().ID)

	if cfg.API.Listen != "" {
		go func() {
			srv := &http.Server{Addr: cfg.API.Listen, Handler: api.New(coord, logger)}
			logger.Info("optrace: status api listening", "addr", cfg.API.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("optrace: status api stopped", "error", err)
			}
		}()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headful:   cfg.Browser.Stealth == "headful",
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	tab, err := browser.Attach(ctx, mgr, coord, startURL, logger)
	if err != nil {
		return fmt.Errorf("attach tab: %w", err)
	}

	<-ctx.Done()

	tab.Close()
	coord.Stop()
	logger.Info("optrace: session stopped", "session", coord.Session().ID)
	return nil
}

func buildSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, error) {
	sinks := make([]sink.Sink, 0, len(cfg.Sinks))
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "fs":
			s, err := sink.NewFS(sc.Path)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, s)
		case "sqlite":
			s, err := sink.NewSQLite(sc.Path)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, s)
		case "stdout":
			sinks = append(sinks, sink.NewStdout(nil))
		default:
			logger.Warn("optrace: unknown sink type", "type", sc.Type)
		}
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("no usable sinks configured")
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewFanout(logger, sinks...), nil
}
