package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/caravelhq/caravel/internal/budget"
	"github.com/caravelhq/caravel/internal/common"
	"github.com/caravelhq/caravel/internal/config"
	"github.com/caravelhq/caravel/internal/engine"
	"github.com/caravelhq/caravel/internal/llm"
	"github.com/caravelhq/caravel/internal/pattern"
	"github.com/caravelhq/caravel/internal/redact"
	"github.com/caravelhq/caravel/internal/service"
	"github.com/caravelhq/caravel/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/caravel/caravel.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initGate builds the budget gate from configuration. An invalid limit is a
// fatal configuration error.
func initGate() (*budget.Gate, error) {
	limit := viper.GetInt64("budget.monthly_tokens")
	if limit == 0 {
		limit = 500000
	}

	gate, err := budget.New(limit)
	if err != nil {
		return nil, common.NewUserError("invalid budget configuration", err)
	}
	return gate, nil
}

// initEscalator builds the inference tier from configuration. Returns nil
// when no provider is configured, which runs the pipeline pattern-only.
func initEscalator() (*llm.Escalator, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" || provider == "off" {
		slog.Info("no inference provider configured, running pattern-only")
		return nil, nil
	}

	cfg := llm.Config{
		Provider:      provider,
		APIKey:        viper.GetString("llm.api_key"),
		Model:         viper.GetString("llm.model"),
		PromptVersion: viper.GetString("llm.prompt_version"),
		Temperature:   viper.GetFloat64("llm.temperature"),
		MaxTokens:     viper.GetInt("llm.max_tokens"),
		RateLimit:     viper.GetInt("llm.rate_limit"),
		Timeout:       viper.GetDuration("llm.timeout"),
	}

	escalator, err := llm.NewEscalator(cfg, slog.Default())
	if err != nil {
		return nil, common.NewUserError("invalid inference provider configuration", err)
	}
	return escalator, nil
}

// initDetector wires the full detection pipeline.
func initDetector(store service.Storage) (*engine.Detector, func(), error) {
	gate, err := initGate()
	if err != nil {
		return nil, nil, err
	}

	escalator, err := initEscalator()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var esc engine.Escalator
	if escalator != nil {
		esc = escalator
		cleanup = escalator.Close
	}

	detector := engine.NewDetector(
		store,
		pattern.NewExtractor(),
		redact.New(),
		esc,
		gate,
		slog.Default(),
	)
	return detector, cleanup, nil
}

// providerIdentity returns the provider and prompt identifiers feedback
// records should carry, from config.
func providerIdentity() (providerID, promptVersion string) {
	provider := viper.GetString("llm.provider")
	if provider == "" || provider == "off" {
		return "", ""
	}
	cfg := llm.Config{Provider: provider, Model: viper.GetString("llm.model")}
	promptVersion = viper.GetString("llm.prompt_version")
	if promptVersion == "" {
		promptVersion = llm.DefaultPromptVersion
	}
	return cfg.ProviderID(), promptVersion
}

// commandTimeout bounds one CLI invocation end to end.
const commandTimeout = 2 * time.Minute
