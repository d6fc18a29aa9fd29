package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/adapters/driving/watch"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/normalisers/markdown"
	"github.com/custodia-labs/recall/internal/normalisers/plaintext"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Import transcript files from a directory",
	Long: `Watches a directory and imports .txt and .md files as transcripts once
they stop changing. Later edits to a file update the same transcript.
Markdown files take their title from the first heading, other files from
the file name. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a file is imported")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	w, err := watch.New(args[0], transcriptService,
		watch.WithNormalisers(plaintext.New(), markdown.New()),
		watch.WithDebounce(watchDebounce),
		watch.WithImportHook(func(path string, t *domain.Transcript, created bool) {
			if created {
				cmd.Printf("Added %s from %s\n", t.ID, path)
				return
			}
			cmd.Printf("Updated %s from %s\n", t.ID, path)
		}),
	)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(cmd.Context())
}
