package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"CineIndexBot/internal/ai"
	"CineIndexBot/internal/bot"
	"CineIndexBot/internal/config"
	"CineIndexBot/internal/index"
	"CineIndexBot/internal/logging"
	"CineIndexBot/internal/providers/omdb"
	"CineIndexBot/internal/providers/tmdb"
	"CineIndexBot/internal/resolver"
	"CineIndexBot/internal/scheduler"
	"CineIndexBot/internal/search"
	"CineIndexBot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = cfg.BotDebug
	logger.Info("Authorized on account", zap.String("username", api.Self.UserName))

	var (
		entries     storage.EntryStore
		preferences storage.PreferenceStore
	)
	snapshotsDone := make(chan struct{})
	snapshotCtx, stopSnapshots := context.WithCancel(context.Background())
	defer stopSnapshots()

	if cfg.MongoURI != "" {
		mongoStore, err := storage.NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return err
		}
		defer mongoStore.Close()
		entries, preferences = mongoStore, mongoStore
		close(snapshotsDone)
		logger.Info("Using MongoDB storage", zap.String("database", cfg.MongoDatabase))
	} else {
		memStore := storage.NewMemoryStore(cfg.DataFile)
		if err := memStore.LoadFromDisk(); err != nil {
			return err
		}
		entries, preferences = memStore, memStore
		go func() {
			defer close(snapshotsDone)
			memStore.RunSnapshots(snapshotCtx, cfg.SnapshotInterval, logger)
		}()
		logger.Info("Using file storage", zap.String("path", cfg.DataFile))
	}

	var (
		mirror    index.Mirror
		suggester bot.Suggester
	)
	if cfg.MeiliHost != "" {
		meili := search.NewMeiliSearch(cfg.MeiliHost, cfg.MeiliAPIKey, cfg.MeiliIndex, logger)
		if !meili.Healthy() {
			logger.Warn("Meilisearch is not reachable, suggestions may fail", zap.String("host", cfg.MeiliHost))
		}
		mirror, suggester = meili, meili
	}

	var assistant bot.Assistant
	if cfg.GeminiAPIKey != "" {
		gemini, err := ai.NewGeminiAI(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Warn("Gemini disabled", zap.Error(err))
		} else {
			defer gemini.Close()
			assistant = gemini
		}
	}

	var strategies []resolver.Strategy
	if cfg.TMDBAPIKey != "" {
		strategies = append(strategies, &resolver.TMDBStrategy{
			Client: tmdb.NewClient("", cfg.TMDBAPIKey, cfg.HTTPTimeout, cfg.ProviderRPS),
		})
	}
	if cfg.OMDbAPIKey != "" {
		strategies = append(strategies, &resolver.OMDbStrategy{
			Client: omdb.NewClient("", cfg.OMDbAPIKey, cfg.HTTPTimeout, cfg.ProviderRPS),
		})
	}
	strategies = append(strategies, &resolver.IndexStrategy{Store: entries})
	logger.Info("Lookup chain ready", zap.Int("strategies", len(strategies)))

	actions := bot.NewActions(api)
	sched := scheduler.New(actions, logger)
	updater := index.NewUpdater(entries, cfg.SourceChannelID, actions, mirror, logger)

	b := bot.NewBot(api, bot.Options{
		Resolver:          resolver.NewChain(logger, strategies...),
		Indexer:           updater,
		Entries:           entries,
		Preferences:       preferences,
		Suggester:         suggester,
		Assistant:         assistant,
		Scheduler:         sched,
		AutoDeleteAfter:   cfg.AutoDeleteAfter,
		ForceSubChannelID: cfg.ForceSubChannelID,
		ForceSubInviteURL: cfg.ForceSubInviteURL,
		IsAdmin:           cfg.IsAdmin,
	}, logger)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.AllowedUpdates = []string{"message", "callback_query", "channel_post", "edited_channel_post"}
	updates := api.GetUpdatesChan(updateConfig)

	// Handlers outlive the signal so in-flight work can finish.
	handlerCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup

	logger.Info("Listening for updates", zap.Int64("source_channel", cfg.SourceChannelID))
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case update, ok := <-updates:
			if !ok {
				break loop
			}
			wg.Add(1)
			go func(update tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(handlerCtx, update)
			}(update)
		}
	}

	logger.Info("Shutting down")
	api.StopReceivingUpdates()
	wg.Wait()
	sched.Stop()
	stopSnapshots()
	<-snapshotsDone
	logger.Info("Stopped")
	return nil
}
