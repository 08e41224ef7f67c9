// Command check probes every backend the bot is configured to use.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"CineIndexBot/internal/providers/omdb"
	"CineIndexBot/internal/providers/tmdb"
	"CineIndexBot/internal/search"
	"CineIndexBot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const probeQuery = "The Matrix"

type probe struct {
	name string
	env  string
	run  func(ctx context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	probes := []probe{
		{name: "Telegram", env: "TELEGRAM_BOT_TOKEN", run: checkTelegram},
		{name: "MongoDB", env: "MONGODB_URI", run: checkMongo},
		{name: "Meilisearch", env: "MEILI_HOST", run: checkMeili},
		{name: "TMDB", env: "TMDB_API_KEY", run: checkTMDB},
		{name: "OMDb", env: "OMDB_API_KEY", run: checkOMDb},
	}

	failed := 0
	for _, p := range probes {
		if os.Getenv(p.env) == "" {
			fmt.Printf("%-12s skipped (%s not set)\n", p.name, p.env)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := p.run(ctx)
		cancel()
		if err != nil {
			failed++
			fmt.Printf("%-12s FAILED: %v\n", p.name, err)
			continue
		}
		fmt.Printf("%-12s ok\n", p.name)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func checkTelegram(ctx context.Context) error {
	api, err := tgbotapi.NewBotAPI(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if err != nil {
		return err
	}
	fmt.Printf("%-12s authorized as @%s\n", "", api.Self.UserName)
	return nil
}

func checkMongo(ctx context.Context) error {
	database := os.Getenv("MONGODB_DATABASE")
	if database == "" {
		database = "cineindex"
	}
	store, err := storage.NewMongoStorage(ctx, os.Getenv("MONGODB_URI"), database)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-12s %d indexed entries\n", "", n)
	return nil
}

func checkMeili(ctx context.Context) error {
	index := os.Getenv("MEILI_INDEX")
	if index == "" {
		index = "catalog"
	}
	meili := search.NewMeiliSearch(os.Getenv("MEILI_HOST"), os.Getenv("MEILI_API_KEY"), index, zap.NewNop())
	if !meili.Healthy() {
		return fmt.Errorf("server is not healthy")
	}
	_, err := meili.Suggest(ctx, probeQuery, "", 1)
	return err
}

func checkTMDB(ctx context.Context) error {
	client := tmdb.NewClient("", os.Getenv("TMDB_API_KEY"), 10*time.Second, 1)
	results, err := client.SearchMovies(ctx, probeQuery, "")
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no results for %q", probeQuery)
	}
	return nil
}

func checkOMDb(ctx context.Context) error {
	client := omdb.NewClient("", os.Getenv("OMDB_API_KEY"), 10*time.Second, 1)
	movie, err := client.SearchByTitle(ctx, probeQuery)
	if err != nil {
		return err
	}
	if movie == nil {
		return fmt.Errorf("no match for %q", probeQuery)
	}
	return nil
}
