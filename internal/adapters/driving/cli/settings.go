package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure LLM providers, the embedding service and retrieval
options. Environment variables override the config file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the primary LLM provider",
	Long:  `Prompt for the OpenAI-compatible endpoint used for chat, cleaning and titles.`,
	RunE:  runSettingsLLM,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding service",
	Long: `Prompt for the Ollama endpoint and model used for semantic retrieval.
Changing the dimension requires re-indexing every transcript.`,
	RunE: runSettingsEmbedding,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'recall settings llm' to fix configuration issues.")
		return nil
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[LLM]")
	printLLM(cmd, settings.LLM)
	for i, fb := range settings.Fallbacks {
		cmd.Printf("[LLM fallback %d]\n", i+1)
		printLLM(cmd, fb)
	}

	cmd.Println("[Embedding]")
	cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	cmd.Printf("  Concurrency: %d\n", settings.Embedding.Concurrency)
	if settings.Embedding.RateLimit > 0 {
		cmd.Printf("  Rate limit: %.1f/s\n", settings.Embedding.RateLimit)
	}
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk size: %d\n", settings.RAG.ChunkSize)
	cmd.Printf("  Chunk overlap: %d\n", settings.RAG.ChunkOverlap)
	cmd.Printf("  Top K: %d\n", settings.RAG.TopK)
	cmd.Printf("  History limit: %d\n", settings.RAG.HistoryLimit)
	cmd.Println()

	cmd.Println("[General]")
	cmd.Printf("  Clean failure policy: %s\n", settings.CleanFailurePolicy)
	cmd.Printf("  Database: %s\n", settings.DatabasePath)
	cmd.Printf("  Log level: %s\n", settings.LogLevel)
	cmd.Println()

	cmd.Println("Configuration is valid.")
	return nil
}

func printLLM(cmd *cobra.Command, llm domain.LLMSettings) {
	cmd.Printf("  Base URL: %s\n", orNotSet(llm.BaseURL))
	cmd.Printf("  Model: %s\n", orNotSet(llm.Model))
	if llm.APIKey != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(llm.APIKey))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
	cmd.Println()
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := currentSettings()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	settings.LLM.BaseURL = prompt(cmd, reader, "Base URL", settings.LLM.BaseURL)
	settings.LLM.Model = prompt(cmd, reader, "Model", settings.LLM.Model)
	cmd.Print("API key (leave empty to keep): ")
	if key := readPassword(cmd.InOrStdin(), reader); key != "" {
		settings.LLM.APIKey = key
	}
	cmd.Println()

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("LLM provider configured: %s (%s)\n", settings.LLM.BaseURL, settings.LLM.Model)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := currentSettings()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	settings.Embedding.BaseURL = prompt(cmd, reader, "Base URL", settings.Embedding.BaseURL)
	settings.Embedding.Model = prompt(cmd, reader, "Model", settings.Embedding.Model)
	dims := prompt(cmd, reader, "Dimensions", strconv.Itoa(settings.Embedding.Dimensions))
	n, err := strconv.Atoi(dims)
	if err != nil {
		return fmt.Errorf("%w: dimensions must be a number", domain.ErrInvalidConfig)
	}
	previous := settings.Embedding.Dimensions
	settings.Embedding.Dimensions = n

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("Embedding configured: %s (%s, %d dimensions)\n",
		settings.Embedding.BaseURL, settings.Embedding.Model, n)
	if n != previous {
		cmd.Println("Dimensions changed: delete the database or re-index every transcript.")
	}
	return nil
}

// currentSettings loads settings for editing, starting from the defaults
// when the stored ones are invalid.
func currentSettings() (*domain.AppSettings, error) {
	settings, err := settingsService.Get()
	if errors.Is(err, domain.ErrInvalidConfig) {
		defaults := settingsService.GetDefaults()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// Helper functions.

func prompt(cmd *cobra.Command, reader *bufio.Reader, label, current string) string {
	cmd.Printf("%s [%s]: ", label, current)
	if v := readLine(reader); v != "" {
		return v
	}
	return current
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword reads without echo from a terminal, else one line from reader.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
