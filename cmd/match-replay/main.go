// Command match-replay republishes the stored match history to Kafka so
// the PostgreSQL match archive can be rebuilt or backfilled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/kafka"
	"github.com/pokewar-server/internal/postgres"
	"github.com/pokewar-server/internal/redis"
	"github.com/pokewar-server/internal/service"
	"github.com/pokewar-server/internal/store"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	serverID := flag.String("server", "", "Only replay matches from this server")
	rate := flag.Int("rate", 100, "Matches published per second")
	dryRun := flag.Bool("dry-run", false, "List the matches without publishing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeBackend()

	kv := store.New(backend, cfg.Store.Retries(), logger)
	matches := store.Read(ctx, kv, service.MatchesKey, []domain.MatchRecord{})
	if *serverID != "" {
		filtered := matches[:0]
		for _, m := range matches {
			if m.ServerID == *serverID {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Match replay")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Store:     %s\n", cfg.Store.Backend)
	fmt.Printf("  Brokers:   %v\n", cfg.Kafka.Brokers)
	fmt.Printf("  Topic:     %s\n", cfg.Kafka.Topic)
	fmt.Printf("  Matches:   %d\n", len(matches))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if *dryRun {
		for _, m := range matches {
			fmt.Printf("  %s  server=%s  %s vs %s  winner=%s\n", m.ID, m.ServerID, m.Player1PokemonName, m.Player2PokemonName, m.WinnerID)
		}
		return
	}

	producer, err := kafka.NewProducer(&cfg.Kafka, logger)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	if *rate <= 0 {
		*rate = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	sent, failed := 0, 0
	for i, m := range matches {
		select {
		case <-ctx.Done():
			fmt.Printf("\nInterrupted. Sent: %d, Errors: %d\n", sent, failed)
			return
		case <-ticker.C:
		}

		if err := producer.PublishMatch(ctx, m); err != nil {
			failed++
			log.Printf("Failed to publish %s: %v", m.ID, err)
			continue
		}
		sent++
		fmt.Printf("\r  Progress: %d/%d", i+1, len(matches))
	}

	fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", sent, failed)
}

// openBackend connects to the persistent backend named in the config
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		s, err := redis.NewStore(&cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case config.BackendPostgres:
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Ping(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("store backend %q keeps no history to replay", cfg.Store.Backend)
	}
}
