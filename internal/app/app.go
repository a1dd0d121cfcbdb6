package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"randomcoffee/internal/config"
	"randomcoffee/internal/handlers"
	"randomcoffee/internal/logging"
	"randomcoffee/internal/repositories"
	"randomcoffee/internal/repositories/memstore"
	"randomcoffee/internal/routes"
	"randomcoffee/internal/services"
	"randomcoffee/internal/utils"
)

const (
	pollTimeoutSeconds = 30
	shutdownTimeout    = 10 * time.Second
	queuePerWorker     = 32
)

// Core is the transport-independent part of the bot.
type Core struct {
	Machine    *services.StageMachine
	Dispatcher *services.Dispatcher
}

// NewCore wires the conversation services from the configuration.
func NewCore(cfg *config.Config, store repositories.Store, mailer services.Mailer, sender services.MessageSender, log logging.Logger) (*Core, error) {
	emails, err := utils.NewEmailValidator(cfg.Email.Regex, cfg.Email.AllowedDomains)
	if err != nil {
		return nil, err
	}
	otp := services.NewOTPService(services.OTPSettings{
		Length:    cfg.OTP.Length,
		TTL:       cfg.OTP.TTL(),
		Cooldown:  cfg.OTP.Cooldown(),
		MaxResend: cfg.OTP.MaxResend,
	})
	ledger := services.NewAttemptLedger(0)
	lockout := services.NewLockoutPolicy(cfg.Limits.MaxEmailAttempts, cfg.Limits.MaxOTPAttempts, ledger)
	admin := services.NewAdminService(cfg.Admin.IDs, cfg.Admin.ChatID, lockout, log)
	registration := services.NewRegistrationFlow(emails, otp, ledger, lockout, admin, log)
	profile := services.NewProfileWizard(utils.NewBannedWords(cfg.Profile.BannedWords))

	return &Core{
		Machine:    services.NewStageMachine(store, registration, profile, admin, cfg.Email.AllowedDomains, log),
		Dispatcher: services.NewDispatcher(mailer, sender),
	}, nil
}

// OpenStore returns the configured store and a close function. Postgres is migrated on open.
func OpenStore(ctx context.Context, dsn string, log logging.Logger) (repositories.Store, func(), error) {
	if dsn == "memory" {
		log.Warn(ctx, "using in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	db, err := repositories.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := repositories.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn(ctx, "db close failed", "err", err)
		}
	}
	return repositories.NewPostgresStore(db), closeDB, nil
}

// Run starts the bot in the configured mode and blocks until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.LogLevel)
	log.Info(ctx, "starting bot", "mode", cfg.Bot.Mode, "workers", cfg.Bot.Workers)

	store, closeStore, err := OpenStore(ctx, cfg.Database.DSN, log)
	if err != nil {
		return fmt.Errorf("store init: %w", err)
	}
	defer closeStore()

	mailer, err := services.NewMailer(cfg.Mail.Provider, cfg.Mail.SMTPHost, cfg.Mail.SMTPPort,
		cfg.Mail.SMTPUser, cfg.Mail.SMTPPassword, cfg.Mail.From, cfg.Mail.ResendAPIKey, log)
	if err != nil {
		return fmt.Errorf("mailer init: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("telegram init: %w", err)
	}
	log.Info(ctx, "authorized on telegram", "bot", bot.Self.UserName)

	core, err := NewCore(cfg, store, mailer, services.NewTelegramSender(bot, log), log)
	if err != nil {
		return err
	}
	handler := handlers.NewBotHandler(bot, core.Machine, core.Dispatcher, log)

	// Workers outlive ctx so queued updates finish after shutdown starts.
	pool := NewWorkerPool(cfg.Bot.Workers, queuePerWorker, handlers.SenderOf, handler.HandleUpdate, log)
	pool.Start(context.WithoutCancel(ctx))
	defer pool.Stop()

	if cfg.Bot.Mode == "webhook" {
		return serveWebhook(ctx, bot, cfg, pool, log)
	}
	return poll(ctx, bot, pool, log)
}

func poll(ctx context.Context, bot *tgbotapi.BotAPI, pool *WorkerPool, log logging.Logger) error {
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := bot.GetUpdatesChan(u)
	log.Info(ctx, "polling for updates")

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			log.Info(ctx, "polling stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if !pool.Submit(ctx, up) {
				log.Warn(ctx, "update dropped", "update_id", up.UpdateID)
			}
		}
	}
}

func serveWebhook(ctx context.Context, bot *tgbotapi.BotAPI, cfg *config.Config, pool *WorkerPool, log logging.Logger) error {
	params := tgbotapi.Params{"url": cfg.Bot.WebhookURL}
	params.AddNonEmpty("secret_token", cfg.Bot.WebhookSecret)
	if _, err := bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := routes.SetupRoutes(gin.New(), handlers.NewIntegrationsHandler(pool.TrySubmit, log), cfg.Bot.WebhookSecret, log)
	srv := &http.Server{Addr: cfg.Bot.ListenAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "webhook server listening", "addr", cfg.Bot.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook shutdown: %w", err)
	}
	log.Info(ctx, "webhook server stopped")
	return nil
}
