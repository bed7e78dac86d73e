package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Verbosity controls how much detail goes into bot replies.
type Verbosity int

const (
	VerbositySilent Verbosity = iota
	VerbosityMinimal
	VerbosityNormal
	VerbosityVerbose
)

// ParseVerbosity maps a verbosity name to its level. Unknown or empty
// values fall back to VerbosityNormal.
func ParseVerbosity(s string) Verbosity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SILENT":
		return VerbositySilent
	case "MINIMAL":
		return VerbosityMinimal
	case "VERBOSE":
		return VerbosityVerbose
	default:
		return VerbosityNormal
	}
}

func (v Verbosity) String() string {
	switch v {
	case VerbositySilent:
		return "SILENT"
	case VerbosityMinimal:
		return "MINIMAL"
	case VerbosityVerbose:
		return "VERBOSE"
	default:
		return "NORMAL"
	}
}

// MinInputAPIKeyLen is the minimum pre-shared key length required to
// enable the /input endpoint.
const MinInputAPIKeyLen = 16

// Config holds all process configuration. It is built once in main and
// passed by reference; nothing mutates it afterwards.
type Config struct {
	// Telegram
	BotToken   string
	UserIDs    []int64
	UsePolling bool
	BaseURL    string

	// HTTP server
	Port        string
	InputAPIKey string

	// Actual budgeting backend
	ActualEndpoint  string
	ActualPassword  string
	ActualSyncID    string
	Currency        string
	DefaultAccount  string
	DefaultCategory string
	NotePrefix      string

	// LLM
	Model       string
	Temperature float64
	PromptPath  string
	RulesPath   string

	Verbosity Verbosity
}

// Load reads configuration from the environment (and a .env file when
// present) and validates required values. It is the only place allowed
// to fail the process over configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		UsePolling:      getEnv("USE_POLLING", "false") == "true",
		Port:            getEnv("PORT", "5007"),
		InputAPIKey:     os.Getenv("INPUT_API_KEY"),
		ActualEndpoint:  os.Getenv("ACTUAL_API_ENDPOINT"),
		ActualPassword:  os.Getenv("ACTUAL_PASSWORD"),
		ActualSyncID:    os.Getenv("ACTUAL_SYNC_ID"),
		Currency:        getEnv("ACTUAL_CURRENCY", "EUR"),
		DefaultAccount:  getEnv("ACTUAL_DEFAULT_ACCOUNT", "Cash"),
		DefaultCategory: getEnv("ACTUAL_DEFAULT_CATEGORY", "Food"),
		NotePrefix:      getEnv("ACTUAL_NOTE_PREFIX", "🤖"),
		Model:           getEnv("LLM_MODEL", "gemini-2.5-flash"),
		PromptPath:      os.Getenv("LLM_PROMPT_PATH"),
		RulesPath:       os.Getenv("LLM_RULES_PATH"),
		Verbosity:       ParseVerbosity(os.Getenv("BOT_VERBOSITY")),
	}

	temp, err := parseFloat(getEnv("LLM_TEMPERATURE", "0.2"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid LLM_TEMPERATURE: %w", err)
	}
	cfg.Temperature = temp

	ids, err := parseUserIDs(os.Getenv("USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("config: invalid USER_IDS: %w", err)
	}
	cfg.UserIDs = ids

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("config: BOT_TOKEN is required")
	}
	if len(cfg.UserIDs) == 0 {
		return nil, fmt.Errorf("config: USER_IDS must contain at least one user ID")
	}
	if cfg.ActualEndpoint == "" || cfg.ActualPassword == "" || cfg.ActualSyncID == "" {
		return nil, fmt.Errorf("config: ACTUAL_API_ENDPOINT, ACTUAL_PASSWORD and ACTUAL_SYNC_ID are required")
	}

	if !cfg.UsePolling {
		base, err := validateBaseURL(os.Getenv("BASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("config: invalid BASE_URL (set USE_POLLING=true to use long polling): %w", err)
		}
		cfg.BaseURL = base
	}

	return cfg, nil
}

// InputAPIEnabled reports whether the /input endpoint should accept
// requests. Short keys disable the endpoint entirely.
func (c *Config) InputAPIEnabled() bool {
	return len(c.InputAPIKey) >= MinInputAPIKeyLen
}

// Authorized reports whether the given Telegram user may use the bot.
func (c *Config) Authorized(userID int64) bool {
	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// validateBaseURL requires an https URL and strips trailing slashes.
func validateBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("no URL provided")
	}
	if !strings.HasPrefix(trimmed, "https://") {
		return "", fmt.Errorf("URL must start with https://")
	}
	return trimmed, nil
}

// Obfuscate masks a secret for logging, keeping just enough of the
// value to tell configurations apart.
func Obfuscate(value string) string {
	if value == "" {
		return ""
	}
	if len(value) < MinInputAPIKeyLen {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + "..." + value[len(value)-4:]
}
