package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"worklist-sentinel/common"
	"worklist-sentinel/internal/models"
	"worklist-sentinel/internal/worklist"
)

// Config holds the tokens to append to the worklist.
type Config struct {
	Tokens []string `json:"tokens"`
}

var errNoTokens = errors.New("config has no tokens")

func main() {
	configPath := flag.String("tokens", "tokens.json", "Path to JSON file with tokens to append")
	timeout := flag.Duration("timeout", 30*time.Second, "Deadline for the fetch and persist round trip")
	flag.Parse()

	store, closeStore, err := storeFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *configPath, store); err != nil {
		log.Fatal(err)
	}
}

// storeFromEnv builds the worklist store the monitor would use, from the same variables.
func storeFromEnv() (worklist.Store, func(), error) {
	id, err := common.RequireEnv("WORKLIST_ID")
	if err != nil {
		return nil, nil, err
	}

	switch backend := strings.ToLower(common.GetEnv("WORKLIST_BACKEND", "document")); backend {
	case "document":
		credential, err := common.RequireEnv("WORKLIST_TOKEN")
		if err != nil {
			return nil, nil, err
		}
		s := worklist.NewDocumentStore(nil,
			common.GetEnv("WORKLIST_API_BASE", worklist.DefaultDocumentAPIBase),
			id, credential, common.GetEnv("WORKLIST_FILE", ""))
		return s, func() {}, nil
	case "redis":
		addr, err := common.RequireEnv("REDIS_ADDR")
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(&redis.Options{Addr: addr})
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Printf("failed to close redis client: %v", err)
			}
		}
		return worklist.NewRedisStore(client, id), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown WORKLIST_BACKEND %q", backend)
	}
}

// run loads configPath, merges its tokens into the current worklist and persists the result.
// Nothing is written when every token is already present.
func run(ctx context.Context, configPath string, store worklist.Store) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	current, err := store.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch worklist: %w", err)
	}

	merged, added := merge(current, cfg.Tokens)
	if added == 0 {
		log.Printf("worklist %s already holds all %d tokens", current.ID, len(cfg.Tokens))
		return nil
	}
	if err := store.Persist(ctx, merged); err != nil {
		return fmt.Errorf("persist worklist: %w", err)
	}
	log.Printf("appended %d tokens to worklist %s (total=%d)", added, merged.ID, len(merged.Tokens))
	return nil
}

// loadConfig reads and parses the JSON config file.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if len(cfg.Tokens) == 0 {
		return cfg, errNoTokens
	}
	return cfg, nil
}

// merge appends tokens not already in list, in input order. Blank entries are skipped.
func merge(list models.Worklist, tokens []string) (models.Worklist, int) {
	seen := make(map[models.Token]struct{}, len(list.Tokens))
	merged := make([]models.Token, 0, len(list.Tokens)+len(tokens))
	for _, token := range list.Tokens {
		seen[token] = struct{}{}
		merged = append(merged, token)
	}

	added := 0
	for _, raw := range tokens {
		token := models.Token(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		merged = append(merged, token)
		added++
	}
	return models.Worklist{ID: list.ID, Tokens: merged}, added
}
