package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/actual"
	"github.com/dvloznov/budget-bot/internal/api"
	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/dispatch"
	"github.com/dvloznov/budget-bot/internal/llm"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/metrics"
	"github.com/dvloznov/budget-bot/internal/pipeline"
	"github.com/dvloznov/budget-bot/internal/rates"
	"github.com/dvloznov/budget-bot/internal/telegram"
)

func main() {
	log := logger.New()
	log.Info().Msg("Bot is starting up...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().
		Str("BOT_TOKEN", config.Obfuscate(cfg.BotToken)).
		Ints64("USER_IDS", cfg.UserIDs).
		Bool("USE_POLLING", cfg.UsePolling).
		Str("BASE_URL", cfg.BaseURL).
		Str("PORT", cfg.Port).
		Str("INPUT_API_KEY", config.Obfuscate(cfg.InputAPIKey)).
		Str("ACTUAL_API_ENDPOINT", cfg.ActualEndpoint).
		Str("ACTUAL_PASSWORD", config.Obfuscate(cfg.ActualPassword)).
		Str("ACTUAL_SYNC_ID", cfg.ActualSyncID).
		Str("ACTUAL_CURRENCY", cfg.Currency).
		Str("ACTUAL_DEFAULT_ACCOUNT", cfg.DefaultAccount).
		Str("ACTUAL_DEFAULT_CATEGORY", cfg.DefaultCategory).
		Str("LLM_MODEL", cfg.Model).
		Float64("LLM_TEMPERATURE", cfg.Temperature).
		Str("BOT_VERBOSITY", cfg.Verbosity.String()).
		Msg("Startup settings")

	if cfg.InputAPIKey != "" && !cfg.InputAPIEnabled() {
		log.Warn().Msgf("For security reasons INPUT_API_KEY must be at least %d characters long, /input endpoint will be disabled.", config.MinInputAPIKeyLen)
	}

	promptTemplate, err := loadPrompt(cfg.PromptPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load prompt template")
	}
	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load extra rules")
	}
	if len(rules) > 0 {
		log.Info().Int("count", len(rules)).Msg("Loaded extra prompt rules")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := actual.NewClient(cfg.ActualEndpoint, cfg.ActualPassword, cfg.ActualSyncID)
	checkBackend(ctx, backend, cfg, log)

	completer, err := llm.NewClient(ctx, cfg.Model, cfg.Temperature, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create LLM client")
	}

	converter, err := rates.NewConverter(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create currency converter")
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New("budget_bot")
	if err := collector.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}
	converter.InstrumentFetch(collector.RateFetchSeconds)

	proc := pipeline.New(backend, completer, converter, pipeline.Options{
		LedgerCurrency:  cfg.Currency,
		DefaultAccount:  cfg.DefaultAccount,
		DefaultCategory: cfg.DefaultCategory,
		NotePrefix:      cfg.NotePrefix,
		PromptTemplate:  promptTemplate,
		ExtraRules:      rules,
		Verbosity:       cfg.Verbosity,
	}, collector, log)

	tgClient := telegram.NewClient(cfg.BotToken)
	me, err := tgClient.GetMe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to reach the Telegram Bot API; check BOT_TOKEN")
	}
	log.Info().Str("username", me.Username).Int64("bot_id", me.ID).Msg("Connected to Telegram")

	bot := telegram.NewBot(tgClient, proc, cfg, log)

	// Webhook and /input deliveries go through a bounded queue so HTTP
	// handlers never wait on the pipeline. Polling handles updates
	// inline to keep replies in order.
	queue := dispatch.NewQueue(100, 5, log)
	// Workers get their own context so buffered updates still drain
	// during shutdown; Stop bounds the wait.
	if err := queue.Start(context.Background(), bot.HandleUpdate); err != nil {
		log.Fatal().Err(err).Msg("Failed to start update queue")
	}

	if cfg.UsePolling {
		go func() {
			log.Info().Msg("Starting long polling")
			if err := bot.Poll(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Polling stopped with error")
			}
		}()
	} else {
		webhookURL := cfg.BaseURL + "/webhook"
		if err := tgClient.SetWebhook(ctx, webhookURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to register webhook")
		}
		log.Info().Str("url", webhookURL).Msg("Webhook registered")
	}

	srv := api.NewServer(queue, cfg, registry, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error draining update queue")
	}

	log.Info().Msg("Bot exited")
}

// checkBackend verifies the budgeting backend is reachable and that the
// configured defaults exist. Missing defaults are a warning: the user
// may fix the budget without restarting the bot.
func checkBackend(ctx context.Context, backend *actual.Client, cfg *config.Config, log zerolog.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := backend.Sync(checkCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to reach the budgeting backend; check ACTUAL_* settings")
	}

	accounts, err := backend.Accounts(checkCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}
	if !containsName(accountNames(accounts), cfg.DefaultAccount) {
		log.Warn().Str("account", cfg.DefaultAccount).Msg("Default account not found in the budget")
	}

	categories, err := backend.Categories(checkCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}
	if !containsName(categoryNames(categories), cfg.DefaultCategory) {
		log.Warn().Str("category", cfg.DefaultCategory).Msg("Default category not found in the budget")
	}

	log.Info().
		Int("accounts", len(accounts)).
		Int("categories", len(categories)).
		Msg("Budgeting backend is reachable")
}

func accountNames(accounts []actual.Account) []string {
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Name
	}
	return names
}

func categoryNames(categories []actual.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// loadPrompt returns the prompt template from path, or the built-in
// template when no path is configured.
func loadPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// loadRules reads one rule per line, skipping blanks and # comments.
func loadRules(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules, nil
}
