package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/knowledge-assistant/internal/adapters/cli"
	"github.com/kirillkom/knowledge-assistant/internal/bootstrap"
	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// command output goes to stdout, logs stay on stderr
	logger := logging.NewJSONLoggerTo(os.Stderr, "assistant", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	load := func(ctx context.Context) (*cli.Services, func(), error) {
		// the CLI always ingests inline
		cliCfg := cfg
		cliCfg.IngestMode = "inline"
		app, err := bootstrap.New(ctx, cliCfg, bootstrap.Options{Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return &cli.Services{
			Answers:      app.Answers,
			Chat:         app.Chat,
			Ingest:       app.Ingest,
			Evaluator:    app.Evaluator,
			Catalog:      app.Catalog,
			Cases:        app.Cases,
			WikiSpaceKey: cfg.WikiSpaceKey,
			BoardID:      cfg.BoardID,
		}, app.Close, nil
	}

	if err := cli.Execute(ctx, load, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
