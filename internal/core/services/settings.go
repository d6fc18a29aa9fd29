package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMModel          = "llm.model"
	keyLLMFallbacks      = "llm.fallbacks"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedModel        = "embedding.model"
	keyEmbedDims         = "embedding.dimensions"
	keyEmbedConcurrency  = "embedding.concurrency"
	keyEmbedRateLimit    = "embedding.rate_limit"
	keyChunkSize         = "rag.chunk_size"
	keyChunkOverlap      = "rag.chunk_overlap"
	keyTopK              = "rag.top_k"
	keyHistoryLimit      = "rag.history_limit"
	keyCleanPolicy       = "clean.failure_policy"
	keyDatabasePath      = "database.path"
	keyLogLevel          = "log.level"
	fallbackKeyBaseURL   = "base_url"
	fallbackKeyAPIKey    = "api_key"
	fallbackKeyModel     = "model"
	envFallbackPrefix    = "LLM_FALLBACK_"
	envLLMPrefix         = "LLM_"
	envEmbeddingDimsName = "EMBEDDING_DIM"
)

// SettingsService resolves settings from defaults, the config file and
// the environment, highest last.
type SettingsService struct {
	configStore driven.ConfigStore
	appDir      string
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a settings service. Relative database paths
// resolve under appDir.
func NewSettingsService(configStore driven.ConfigStore, appDir string) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		appDir:      appDir,
		lookupEnv:   os.LookupEnv,
	}
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// set in the process environment win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		logger.Debug("loaded environment from %s", path)
	}
	return nil
}

// Get returns merged settings, validated.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	s.applyConfig(&settings)
	if err := s.applyEnv(&settings); err != nil {
		return nil, err
	}

	if !filepath.IsAbs(settings.DatabasePath) && s.appDir != "" {
		settings.DatabasePath = filepath.Join(s.appDir, settings.DatabasePath)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Save persists settings to the config file. Environment overrides are
// not written back.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMModel, settings.LLM.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedConcurrency, settings.Embedding.Concurrency},
		{keyEmbedRateLimit, settings.Embedding.RateLimit},
		{keyChunkSize, settings.RAG.ChunkSize},
		{keyChunkOverlap, settings.RAG.ChunkOverlap},
		{keyTopK, settings.RAG.TopK},
		{keyHistoryLimit, settings.RAG.HistoryLimit},
		{keyCleanPolicy, string(settings.CleanFailurePolicy)},
		{keyDatabasePath, settings.DatabasePath},
		{keyLogLevel, settings.LogLevel},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyLLMAPIKey, err)
		}
	}

	fallbacks := make([]map[string]any, 0, len(settings.Fallbacks))
	for _, fb := range settings.Fallbacks {
		table := map[string]any{
			fallbackKeyBaseURL: fb.BaseURL,
			fallbackKeyModel:   fb.Model,
		}
		if fb.APIKey != "" {
			table[fallbackKeyAPIKey] = fb.APIKey
		}
		fallbacks = append(fallbacks, table)
	}
	if err := s.configStore.Set(keyLLMFallbacks, fallbacks); err != nil {
		return fmt.Errorf("save %s: %w", keyLLMFallbacks, err)
	}

	return s.configStore.Save()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) applyConfig(settings *domain.AppSettings) {
	settings.LLM.BaseURL = s.getString(keyLLMBaseURL, settings.LLM.BaseURL)
	settings.LLM.APIKey = s.getString(keyLLMAPIKey, settings.LLM.APIKey)
	settings.LLM.Model = s.getString(keyLLMModel, settings.LLM.Model)

	for _, table := range s.configStore.GetTableSlice(keyLLMFallbacks) {
		settings.Fallbacks = append(settings.Fallbacks, domain.LLMSettings{
			BaseURL: tableString(table, fallbackKeyBaseURL),
			APIKey:  tableString(table, fallbackKeyAPIKey),
			Model:   tableString(table, fallbackKeyModel),
		})
	}

	settings.Embedding.BaseURL = s.getString(keyEmbedBaseURL, settings.Embedding.BaseURL)
	settings.Embedding.Model = s.getString(keyEmbedModel, settings.Embedding.Model)
	settings.Embedding.Dimensions = s.getInt(keyEmbedDims, settings.Embedding.Dimensions)
	settings.Embedding.Concurrency = s.getInt(keyEmbedConcurrency, settings.Embedding.Concurrency)
	settings.Embedding.RateLimit = s.getFloat(keyEmbedRateLimit, settings.Embedding.RateLimit)

	settings.RAG.ChunkSize = s.getInt(keyChunkSize, settings.RAG.ChunkSize)
	settings.RAG.TopK = s.getInt(keyTopK, settings.RAG.TopK)
	settings.RAG.HistoryLimit = s.getInt(keyHistoryLimit, settings.RAG.HistoryLimit)
	if _, ok := s.configStore.Get(keyChunkOverlap); ok {
		// Zero overlap is a valid setting.
		settings.RAG.ChunkOverlap = s.configStore.GetInt(keyChunkOverlap)
	}

	settings.CleanFailurePolicy = domain.CleanFailurePolicy(
		s.getString(keyCleanPolicy, string(settings.CleanFailurePolicy)))
	settings.DatabasePath = s.getString(keyDatabasePath, settings.DatabasePath)
	settings.LogLevel = s.getString(keyLogLevel, settings.LogLevel)
}

func (s *SettingsService) applyEnv(settings *domain.AppSettings) error {
	s.envString(envLLMPrefix+"BASE_URL", &settings.LLM.BaseURL)
	s.envString(envLLMPrefix+"API_KEY", &settings.LLM.APIKey)
	s.envString(envLLMPrefix+"MODEL", &settings.LLM.Model)

	// The environment configures the first fallback only.
	var fb domain.LLMSettings
	if len(settings.Fallbacks) > 0 {
		fb = settings.Fallbacks[0]
	}
	setURL := s.envString(envFallbackPrefix+"BASE_URL", &fb.BaseURL)
	setKey := s.envString(envFallbackPrefix+"API_KEY", &fb.APIKey)
	setModel := s.envString(envFallbackPrefix+"MODEL", &fb.Model)
	if setURL || setKey || setModel {
		if len(settings.Fallbacks) == 0 {
			settings.Fallbacks = append(settings.Fallbacks, fb)
		} else {
			settings.Fallbacks[0] = fb
		}
	}

	s.envString("EMBEDDING_BASE_URL", &settings.Embedding.BaseURL)
	s.envString("EMBEDDING_MODEL", &settings.Embedding.Model)
	s.envString("DATABASE_PATH", &settings.DatabasePath)
	s.envString("LOG_LEVEL", &settings.LogLevel)

	var policy string
	if s.envString("CLEAN_FAILURE_POLICY", &policy) {
		settings.CleanFailurePolicy = domain.CleanFailurePolicy(strings.ToLower(policy))
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{envEmbeddingDimsName, &settings.Embedding.Dimensions},
		{"EMBEDDING_CONCURRENCY", &settings.Embedding.Concurrency},
		{"CHUNK_SIZE", &settings.RAG.ChunkSize},
		{"CHUNK_OVERLAP", &settings.RAG.ChunkOverlap},
		{"TOP_K_CHUNKS", &settings.RAG.TopK},
		{"MAX_CHAT_HISTORY", &settings.RAG.HistoryLimit},
	}
	for _, v := range ints {
		if err := s.envInt(v.name, v.dst); err != nil {
			return err
		}
	}

	if raw, ok := s.env("EMBEDDING_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: EMBEDDING_RATE_LIMIT %q is not a number", domain.ErrInvalidConfig, raw)
		}
		settings.Embedding.RateLimit = f
	}
	return nil
}

// env returns a non-blank environment variable.
func (s *SettingsService) env(name string) (string, bool) {
	v, ok := s.lookupEnv(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *SettingsService) envString(name string, dst *string) bool {
	v, ok := s.env(name)
	if ok {
		*dst = v
	}
	return ok
}

func (s *SettingsService) envInt(name string, dst *int) error {
	raw, ok := s.env(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %s %q is not an integer", domain.ErrInvalidConfig, name, raw)
	}
	*dst = n
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func tableString(table map[string]any, key string) string {
	v, _ := table[key].(string)
	return v
}
