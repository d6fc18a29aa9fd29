// Package cli provides the recall command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Global flags.
var (
	verbose    bool
	jsonOutput bool
)

// Services wired by main.
var (
	transcriptService driving.TranscriptService
	chatService       driving.ChatService
	indexService      driving.IndexService
	settingsService   driving.SettingsService
	metricsHandler    http.Handler
)

// Services groups the driving ports the commands use.
type Services struct {
	Transcripts driving.TranscriptService
	Chat        driving.ChatService
	Index       driving.IndexService
	Settings    driving.SettingsService

	// Metrics is served at /metrics by "recall mcp --http". Optional.
	Metrics http.Handler
}

// SetServices injects the services used by commands.
func SetServices(s *Services) {
	transcriptService = s.Transcripts
	chatService = s.Chat
	indexService = s.Index
	settingsService = s.Settings
	metricsHandler = s.Metrics
}

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Chat with your meeting transcripts",
	Long: `Recall stores transcripts, indexes them for semantic retrieval and
answers questions grounded in their most relevant passages.

Chat falls back to the full transcript when the embedding service or
vector index is unavailable, and fails over across configured LLM
providers.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON where supported")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to commands.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// printJSON writes v as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// userError rewrites lookup failures into a message that names the ID.
func userError(action, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("transcript %s: %w", id, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
