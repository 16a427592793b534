package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"google.golang.org/api/option"

	"relief-bot/api/internal/batch"
	"relief-bot/api/internal/commit"
	"relief-bot/api/internal/config"
	"relief-bot/api/internal/gdrive"
	"relief-bot/api/internal/httpserver"
	"relief-bot/api/internal/relief"
	"relief-bot/api/internal/session"
	"relief-bot/api/internal/sheets"
	"relief-bot/api/internal/store"
	"relief-bot/api/internal/telegram"
	"relief-bot/api/internal/util"
	"relief-bot/api/internal/wizard"
)

func serve(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	catalog := relief.DefaultCatalog()
	if cfg.CatalogFile != "" {
		c, err := relief.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return err
		}
		catalog = c
	}

	creds, err := cfg.CredentialsJSON()
	if err != nil {
		return err
	}
	gopts := []option.ClientOption{option.WithCredentialsJSON(creds)}

	blobs, err := gdrive.New(ctx, cfg.DriveFolderID, gopts...)
	if err != nil {
		return err
	}

	var (
		table  commit.TabularStore
		pinger httpserver.Pinger
	)
	switch cfg.RecordStore {
	case config.StoreSQL:
		db, d, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("db connected", "dsn", store.SafeDSNSummary(cfg.DatabaseURL))
		repo := store.NewRecordRepo(db, d)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		table, pinger = repo, repo
	default:
		sh, err := sheets.New(ctx, cfg.SheetID, gopts...)
		if err != nil {
			return err
		}
		table = sh
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	log.Info("telegram authorized", "bot", bot.Self.UserName)

	sessions := session.NewStore()
	pipeline := &commit.Pipeline{
		Sessions:    sessions,
		Media:       &telegram.FileFetcher{Bot: bot},
		Blobs:       blobs,
		Table:       table,
		Notify:      &telegram.Notifier{Bot: bot, Log: log},
		InsertAtTop: cfg.InsertAtTop,
		Location:    cfg.Location(),
		Timeout:     cfg.CommitLimit,
		Log:         log,
	}
	// commits outlive the shutdown signal and are awaited below
	photos := batch.New(sessions, cfg.Debounce, pipeline.Async(context.WithoutCancel(ctx)), log)
	router := &telegram.Router{
		Bot:         bot,
		Sessions:    sessions,
		Wizard:      wizard.New(sessions, catalog, cfg.Location(), log),
		Photos:      photos,
		HelpContact: cfg.HelpContact,
		Log:         log,
	}

	updates := make(chan tgbotapi.Update, 64)
	opts := httpserver.Options{Ping: pinger, Log: log}

	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		path := "/webhook/" + util.ShortHash(cfg.TelegramBotToken)
		if err := registerWebhook(bot, strings.TrimRight(webhookURL, "/")+path); err != nil {
			return err
		}
		opts.WebhookPath, opts.Updates = path, updates
		log.Info("webhook mode")
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn("delete webhook failed", "error", err)
		}
		go runPolling(ctx, bot, updates)
		log.Info("polling mode")
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           httpserver.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	err = consume(ctx, updates, srvErr, router.HandleUpdate)

	log.Info("shutting down", "sessions", sessions.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("http shutdown", "error", serr)
	}
	// no update reaches the router past this point; pending batches are
	// committed rather than dropped
	photos.Close()
	pipeline.Wait()
	return err
}

// consume hands updates to handle one at a time until ctx ends or the HTTP
// server fails.
func consume(ctx context.Context, updates <-chan tgbotapi.Update, srvErr <-chan error, handle func(tgbotapi.Update)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-srvErr:
			return fmt.Errorf("http server: %w", err)
		case upd := <-updates:
			handle(upd)
		}
	}
}

func registerWebhook(bot *tgbotapi.BotAPI, public string) error {
	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
