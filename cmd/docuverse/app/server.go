// Package app provides the docuverse server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/docuverse/cmd/docuverse/app/options"
	"github.com/kart-io/docuverse/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "docuverse"

	// commandDesc is the description of the command.
	commandDesc = `DocuVerse document chat service

Upload documents into a conversation and ask questions about them.

This server provides:
  - Conversations with uploaded files, messages and notes
  - Per-conversation vector indexes rebuilt in the background
  - Retrieval-augmented answers from a rate-limited language model
  - A JSON HTTP API with health, version and Prometheus metrics endpoints`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
