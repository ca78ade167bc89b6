package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"epicscope/internal/jira"
	"epicscope/internal/llm"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
// It is built once at start-up and passed to every component.
type AppConfig struct {
	Jira jira.Config
	LLM  llm.Config

	DataPath    string
	LogDir      string
	CacheDir    string
	SnapshotDir string
	ReportDir   string

	StoreBackend    string
	FetchWorkers    int
	FetchTimeout    time.Duration
	AnalyzerTimeout time.Duration

	ProfilePath         string
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Binary directory first, so an installed tool finds its own .env
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{
		Jira: jira.Config{
			BaseURL:         getEnv("JIRA_URL", ""),
			Token:           getEnv("JIRA_TOKEN", ""),
			XsrfToken:       getEnv("JIRA_XSRF_TOKEN", ""),
			SessionID:       getEnv("JIRA_SESSION_ID", ""),
			RememberMe:      getEnv("JIRA_REMEMBERME_COOKIE", ""),
			GCILB:           getEnv("JIRA_GCILB", ""),
			GCLB:            getEnv("JIRA_GCLB", ""),
			RequestDelay:    time.Duration(getEnvInt("JIRA_REQUEST_DELAY_MS", 250)) * time.Millisecond,
			Timeout:         getEnvSeconds("JIRA_TIMEOUT_SECONDS", 90),
			MaxRetries:      getEnvInt("JIRA_MAX_RETRIES", 3),
			EpicTypes:       splitList(getEnv("JIRA_EPIC_TYPES", "Epic")),
			EpicChildrenJQL: getEnv("JIRA_EPIC_CHILDREN_JQL", ""),
			EpicLinkField:   getEnv("JIRA_CF_EPIC_LINK", ""),
			CustomFields:    customFields(),
		},
		LLM: llm.Config{
			APIKey:          getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Model:           getEnv("LLM_SUMMARY_MODEL", "o3-mini"),
			Timeout:         getEnvSeconds("LLM_TIMEOUT_SECONDS", 120),
			MaxContextNodes: getEnvInt("LLM_MAX_CONTEXT_NODES", 30),
		},
		DataPath:            dataPath,
		LogDir:              filepath.Join(dataPath, "logs"),
		CacheDir:            filepath.Join(dataPath, "cache"),
		SnapshotDir:         getEnv("SNAPSHOT_DIR", filepath.Join(dataPath, "cache", "issues")),
		ReportDir:           getEnv("REPORT_DIR", filepath.Join(dataPath, "reports")),
		StoreBackend:        getEnv("STORE_BACKEND", "file"),
		FetchWorkers:        getEnvInt("FETCH_WORKERS", 6),
		FetchTimeout:        getEnvSeconds("FETCH_TIMEOUT_SECONDS", 120),
		AnalyzerTimeout:     getEnvSeconds("ANALYZER_TIMEOUT_SECONDS", 60),
		ProfilePath:         getEnv("PROFILE_PATH", ""),
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", true),
	}
	cfg.LLM.CacheDir = filepath.Join(cfg.CacheDir, "qualitative")
	cfg.LLM.UsageLogPath = filepath.Join(cfg.LogDir, "token_usage.jsonl")

	// Ensure directories exist
	for _, dir := range []string{cfg.LogDir, cfg.CacheDir, cfg.SnapshotDir, cfg.ReportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create directory")
		}
	}

	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 1
	}

	return cfg, nil
}

// customFields merges the dedicated custom field variables with JIRA_CUSTOM_FIELDS
// ("customfield_1=team,customfield_2=storyPoints").
func customFields() map[string]string {
	fields := make(map[string]string)
	for _, pair := range splitList(getEnv("JIRA_CUSTOM_FIELDS", "")) {
		id, name, ok := strings.Cut(pair, "=")
		if ok && id != "" && name != "" {
			fields[strings.TrimSpace(id)] = strings.TrimSpace(name)
		}
	}
	if id := getEnv("JIRA_CF_TARGET_END", ""); id != "" {
		fields[id] = "targetEnd"
	}
	if id := getEnv("JIRA_CF_TARGET_START", ""); id != "" {
		fields[id] = "targetStart"
	}
	if id := getEnv("JIRA_CF_STORY_POINTS", ""); id != "" {
		fields[id] = "storyPoints"
	}
	return fields
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
