package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/premium-ai-tgbot-go/internal/config"
	"github.com/premium-ai-tgbot-go/internal/dispatch"
	"github.com/premium-ai-tgbot-go/internal/handlers"
	"github.com/premium-ai-tgbot-go/internal/i18n"
	"github.com/premium-ai-tgbot-go/internal/middleware"
	"github.com/premium-ai-tgbot-go/internal/services/access"
	"github.com/premium-ai-tgbot-go/internal/services/ai"
	"github.com/premium-ai-tgbot-go/internal/services/cache"
	"github.com/premium-ai-tgbot-go/internal/services/conversation"
	"github.com/premium-ai-tgbot-go/internal/services/feedback"
	"github.com/premium-ai-tgbot-go/internal/services/markets"
	"github.com/premium-ai-tgbot-go/internal/services/session"
	"github.com/premium-ai-tgbot-go/internal/services/storage"
	"github.com/premium-ai-tgbot-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting Telegram bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}
	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(cfg.Storage.DataDir, cfg.Storage.TrainingDir, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	cacheService, err := cache.NewService(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	metrics := middleware.NewMetrics()
	providers := ai.NewRegistry(&cfg.Providers, log)
	conversations := conversation.NewManager(cfg, store, log)
	accessReg := access.NewRegistry(cfg, store, log)
	ledger := feedback.NewLedger(store, log)
	marketsClient := markets.NewClient(&cfg.Markets, cacheService, metrics, log)
	rateLimiter := middleware.NewGlobalRateLimiter(cfg.Dispatch.RequestsPerMinute, log)

	notifier := handlers.NewTelegramNotifier(bot, localizer, log)
	dispatcher := dispatch.NewDispatcher(cfg, providers, conversations, accessReg, rateLimiter, notifier, metrics, log)
	tracker := session.NewTracker(cfg, conversations, accessReg, ledger, dispatcher, metrics, log)

	dispatcher.Start(ctx)
	tracker.Start(ctx)

	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	commandHandler := handlers.NewCommandHandler(
		cfg, bot, dispatcher, providers, conversations, accessReg, ledger, tracker, localizer, log,
	)
	messageHandler := handlers.NewMessageHandler(
		cfg, bot, dispatcher, providers, conversations, accessReg, tracker, marketsClient, localizer, log,
	)
	callbackHandler := handlers.NewCallbackHandler(
		cfg, bot, dispatcher, providers, conversations, accessReg, ledger, localizer, log,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.UpdateTimeout
	updates := bot.GetUpdatesChan(u)
	log.Info("Using long polling")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for update := range updates {
			update := update

			if update.CallbackQuery != nil {
				if err := callbackHandler.HandleCallback(ctx, &update); err != nil {
					log.WithError(err).Error("Failed to handle callback query")
				}
				continue
			}

			if update.Message == nil {
				continue
			}

			if update.Message.IsCommand() {
				if err := commandHandler.HandleCommand(ctx, &update); err != nil {
					log.WithError(err).Error("Failed to handle command")
				}
				continue
			}

			if err := messageHandler.HandleMessage(ctx, &update); err != nil {
				log.WithError(err).Error("Failed to handle message")
			}
		}
	}()

	<-sigChan
	log.Info("Shutdown signal received")

	cancel()

	// Flush state before exit.
	conversations.SaveAll()
	accessReg.SaveAll()
	ledger.SaveAll()

	time.Sleep(2 * time.Second)
	log.Info("Bot stopped")
}
