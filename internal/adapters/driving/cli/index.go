package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [id]",
	Short: "Rebuild a transcript's chunks and embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runReindex,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks [id]",
	Short: "List a transcript's indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show retrieval readiness",
	Long: `Probes the embedding service and vector index. When either is down,
chat answers from the whole transcript instead of retrieved passages.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(statusCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	id := args[0]
	res, err := indexService.Reindex(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNoText) {
			return fmt.Errorf("transcript %s has no text to index", id)
		}
		return userError("reindex", id, err)
	}

	if jsonOutput {
		return printJSON(cmd, res)
	}
	cmd.Printf("Indexed %s: %d chunks\n", id, res.ChunksCreated)
	return nil
}

func runChunks(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	id := args[0]
	chunks, err := indexService.Chunks(cmd.Context(), id)
	if err != nil {
		return userError("list chunks", id, err)
	}

	if jsonOutput {
		return printJSON(cmd, chunks)
	}
	if len(chunks) == 0 {
		cmd.Printf("No chunks for %s. Run 'recall reindex %s'.\n", id, id)
		return nil
	}

	for i := range chunks {
		cmd.Printf("  #%d [%d:%d]\n", chunks[i].ChunkIndex, chunks[i].StartChar, chunks[i].EndChar)
		cmd.Printf("      %s\n", chunks[i].Preview)
	}
	cmd.Printf("\nTotal: %d chunks\n", len(chunks))
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	status := indexService.Status(cmd.Context())
	if jsonOutput {
		return printJSON(cmd, status)
	}

	cmd.Println("[Retrieval]")
	cmd.Printf("  Enabled:    %s\n", yesNo(status.Enabled))
	cmd.Printf("  Available:  %s\n", yesNo(status.Available))
	cmd.Println()
	cmd.Println("[Embedding]")
	cmd.Printf("  Model:      %s\n", orNotSet(status.EmbeddingModel))
	cmd.Printf("  Base URL:   %s\n", orNotSet(status.EmbeddingBaseURL))
	cmd.Printf("  Reachable:  %s\n", yesNo(status.EmbeddingAvailable))
	cmd.Println()
	cmd.Println("[Vector Index]")
	cmd.Printf("  Available:  %s\n", yesNo(status.VectorAvailable))
	cmd.Printf("  Dimensions: %d\n", status.Dimensions)

	if !status.Available {
		cmd.Println()
		cmd.Println("Chat will answer from whole transcripts until retrieval is available.")
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
