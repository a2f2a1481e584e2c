package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fds-analytics/internal/analytics/engine"
	"fds-analytics/internal/analytics/llm"
	"fds-analytics/internal/common/config"
	"fds-analytics/internal/common/database"
	"fds-analytics/internal/common/logger"
	aaq "fds-analytics/internal/workers/ai-conversation/answer-analytics-question"
)

var askThread string

// answerer is satisfied by the answer-analytics-question handler.
type answerer interface {
	Execute(ctx context.Context, input *aaq.Input) (*aaq.Output, error)
}

// newAnswerer connects the backends; replaced in tests.
var newAnswerer = connectAnswerer

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question against the configured backends",
	Long: `Answer one question against the configured backends.

The turn is stored under --thread so follow-up questions keep their context.
A new thread id is generated and printed when none is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		thread := askThread
		if thread == "" {
			thread = uuid.NewString()
		}

		a, closeFn, err := newAnswerer(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := a.Execute(ctx, &aaq.Input{ThreadID: thread, Message: strings.Join(args, " ")})
		if err != nil {
			return fmt.Errorf("answering question: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, out.Answer)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "thread: %s\n", thread)
		if out.Intent != "" {
			fmt.Fprintf(w, "intent: %s\n", out.Intent)
		}
		if out.ErrorCode != "" {
			fmt.Fprintf(w, "error:  %s\n", out.ErrorCode)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askThread, "thread", "", "conversation thread id")
	rootCmd.AddCommand(askCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func connectAnswerer(ctx context.Context) (answerer, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		pg.Close()
		return nil, nil, err
	}
	closeFn := func() {
		rdb.Close()
		pg.Close()
	}

	backends := engine.Backends{DB: pg.DB, Redis: rdb.Client}
	if cfg.Database.Elasticsearch.GetURL() != "" {
		if es, err := database.NewElasticsearch(cfg.Database.Elasticsearch); err == nil && es.Ping(ctx) == nil {
			backends.ES = es.Client
		} else {
			log.Warn("elasticsearch unavailable, item suggestions disabled", nil)
		}
	}

	model, err := llm.NewGeminiModel(ctx, cfg.Gemini, log)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("gemini: %w", err)
	}
	backends.Model = model

	core, err := engine.New(cfg, backends, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	handler := aaq.NewHandler(aaq.LoadConfig(config.GetWorkerConfig(cfg, aaq.TaskType)), aaq.Dependencies{
		Store:        core.Store,
		Assembler:    core.Assembler,
		Instructions: core.Instructions,
		Orchestrator: core.Orchestrator,
		Catalog:      core.Catalog.Declarations(),
		Execute:      core.Dispatcher.Execute,
	}, log)
	return handler, closeFn, nil
}
