package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/managebug/managebug/internal/api"
	"github.com/managebug/managebug/internal/describe"
	"github.com/managebug/managebug/internal/events"
	"github.com/managebug/managebug/internal/identity"
	"github.com/managebug/managebug/internal/storage/sqlite"
	"github.com/managebug/managebug/internal/upload"
	"github.com/managebug/managebug/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := sqlite.New(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() { _ = store.Close() }()

		uploads, err := upload.NewStore(cfg.UploadDir)
		if err != nil {
			return err
		}

		bus := events.New()
		bus.Register(events.NewNotifyHandler(store))
		bus.Register(events.NewMailHandler(events.SMTPConfig{
			Host: cfg.SMTP.Host,
			Port: cfg.SMTP.Port,
			User: cfg.SMTP.User,
			Pass: cfg.SMTP.Pass,
			From: cfg.SMTP.From,
		}, store))

		var descgen describe.Generator
		if client, err := describe.New(cfg.AI.APIKey, cfg.AI.Model); err == nil {
			descgen = client
		} else if !errors.Is(err, describe.ErrAPIKeyRequired) {
			return err
		}

		engine := workflow.New(store, bus)
		ident := identity.NewService(store, cfg.SessionTTL)
		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.NewServer(engine, ident, uploads, store, descgen).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		color.Green("managebug listening on %s (db: %s)", cfg.ListenAddr, cfg.DBPath)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Println("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}
