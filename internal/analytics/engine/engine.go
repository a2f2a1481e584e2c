// Package engine assembles the analytics core from its backends.
package engine

import (
	"database/sql"
	"errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	"fds-analytics/internal/analytics/category"
	"fds-analytics/internal/analytics/conversation"
	"fds-analytics/internal/analytics/coverage"
	"fds-analytics/internal/analytics/history"
	"fds-analytics/internal/analytics/intents"
	"fds-analytics/internal/analytics/items"
	"fds-analytics/internal/analytics/llm"
	"fds-analytics/internal/analytics/orchestrator"
	"fds-analytics/internal/analytics/procedures"
	"fds-analytics/internal/analytics/prompt"
	"fds-analytics/internal/common/cache"
	"fds-analytics/internal/common/config"
	"fds-analytics/internal/common/logger"
	"fds-analytics/internal/models"
)

// Backends are the external connections the core runs on. ES is optional;
// without it item suggestions are disabled.
type Backends struct {
	DB    *sql.DB
	Redis redis.Cmdable
	ES    *elasticsearch.Client
	Model llm.Model
}

// Engine holds the wired core. The two lazy caches live here for the process lifetime.
type Engine struct {
	Catalog      *intents.Catalog
	Dispatcher   *intents.Dispatcher
	Orchestrator *orchestrator.Orchestrator
	Store        *conversation.Store
	Assembler    *history.Assembler
	Instructions *prompt.Builder

	Categories *cache.Lazy[[]string]
	Bounds     *cache.Lazy[models.DateBounds]
}

func New(cfg *config.Config, b Backends, log logger.Logger) (*Engine, error) {
	if b.DB == nil || b.Redis == nil || b.Model == nil {
		return nil, errors.New("engine: database, redis and model backends are required")
	}

	catalog, err := intents.NewCatalog()
	if err != nil {
		return nil, err
	}

	a := cfg.Analytics
	invoker := procedures.NewPostgresInvoker(b.DB, config.GetDuration(a.ProcedureTimeout), log)

	categories := cache.NewLazy(category.PrimaryLoader(invoker, a.RawDataset))
	bounds := cache.NewLazy(prompt.BoundsLoader(invoker, a.RawDataset))

	var suggester intents.ItemSuggester
	if b.ES != nil {
		suggester = items.NewESCatalog(b.ES, a.ItemIndex)
	}

	dispatcher := intents.NewDispatcher(
		catalog,
		invoker,
		category.NewResolver(categories, log),
		coverage.NewChecker(invoker, a.InsightsDataset),
		suggester,
		intents.Options{
			Datasets:       intents.Datasets{Raw: a.RawDataset, Insights: a.InsightsDataset},
			MaxSuggestions: a.MaxSuggestions,
		},
		log,
	)

	return &Engine{
		Catalog:      catalog,
		Dispatcher:   dispatcher,
		Orchestrator: orchestrator.New(b.Model, config.GetDuration(cfg.Gemini.RateLimitBackoff), log),
		Store:        conversation.NewStore(b.Redis, cfg.Conversation, log),
		Assembler:    history.NewAssembler(a.HistoryTokenBudget),
		Instructions: prompt.NewBuilder(a.RestaurantName, bounds, log),
		Categories:   categories,
		Bounds:       bounds,
	}, nil
}
