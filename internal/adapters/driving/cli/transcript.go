package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

const timeFormat = "2006-01-02 15:04:05"

var addCmd = &cobra.Command{
	Use:   "add [file|-]",
	Short: "Add a transcript",
	Long: `Stores a transcript read from a file or stdin and indexes it in the
background.

With --clean the text is first rewritten by the LLM and stored as the
cleaned version. With --auto-title a missing title is generated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List transcripts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a transcript",
	Long: `Changes the title or text of a transcript. Text changes re-index it.
Text flags take a file path, or "-" for stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a transcript",
	Long:  `Deletes a transcript with its conversation, chunks and embeddings.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search transcripts",
	Long:  `Performs a keyword search across transcript titles and text.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var messagesCmd = &cobra.Command{
	Use:   "messages [id]",
	Short: "Show a transcript's conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessages,
}

// Command flags.
var (
	addTitle     string
	addClean     bool
	addAutoTitle bool

	listLimit   int
	searchLimit int
	showRaw     bool

	updateTitle   string
	updateRaw     string
	updateCleaned string
)

func init() {
	addCmd.Flags().StringVarP(&addTitle, "title", "t", "", "transcript title")
	addCmd.Flags().BoolVar(&addClean, "clean", false, "store an LLM-cleaned version of the text")
	addCmd.Flags().BoolVar(&addAutoTitle, "auto-title", false, "generate a title when none is given")

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of transcripts")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print the raw text instead of the cleaned text")

	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "new title")
	updateCmd.Flags().StringVar(&updateRaw, "raw", "", "file with the new raw text")
	updateCmd.Flags().StringVar(&updateCleaned, "cleaned", "", "file with the new cleaned text")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(messagesCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}
	if (addClean || addAutoTitle) && chatService == nil {
		return errors.New("chat service not configured")
	}

	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: transcript text is empty", domain.ErrInvalidInput)
	}

	ctx := cmd.Context()

	var cleaned string
	if addClean {
		res, err := chatService.Clean(ctx, raw, "")
		if err != nil {
			return fmt.Errorf("failed to clean text: %w", err)
		}
		if res.Degraded {
			cmd.PrintErrln("Warning: no LLM provider answered; storing the raw text only.")
		} else {
			cleaned = res.Text
		}
	}

	title := addTitle
	if strings.TrimSpace(title) == "" && addAutoTitle {
		source := cleaned
		if source == "" {
			source = raw
		}
		title = chatService.GenerateTitle(ctx, source)
	}

	t, err := transcriptService.Create(ctx, title, raw, cleaned)
	if err != nil {
		return fmt.Errorf("failed to add transcript: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, t)
	}
	cmd.Printf("Added transcript %s (%s)\n", t.ID, t.Title)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	transcripts, err := transcriptService.List(cmd.Context(), listLimit)
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, transcripts)
	}
	if len(transcripts) == 0 {
		cmd.Println("No transcripts found.")
		return nil
	}

	for i := range transcripts {
		cmd.Printf("  %s  %s  %s\n",
			transcripts[i].ID,
			transcripts[i].CreatedAt.Local().Format(timeFormat),
			transcripts[i].Title)
	}
	cmd.Printf("\nTotal: %d transcripts\n", len(transcripts))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	id := args[0]
	t, err := transcriptService.Get(cmd.Context(), id)
	if err != nil {
		return userError("get transcript", id, err)
	}

	if jsonOutput {
		return printJSON(cmd, t)
	}

	cmd.Printf("Transcript: %s\n\n", t.ID)
	cmd.Printf("  Title:    %s\n", t.Title)
	cmd.Printf("  Created:  %s\n", t.CreatedAt.Local().Format(timeFormat))
	cmd.Printf("  Updated:  %s\n", t.UpdatedAt.Local().Format(timeFormat))
	cleaned := "no"
	if strings.TrimSpace(t.CleanedText) != "" {
		cleaned = "yes"
	}
	cmd.Printf("  Cleaned:  %s\n\n", cleaned)

	if showRaw {
		cmd.Println(t.RawText)
	} else {
		cmd.Println(t.IndexText())
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	var patch domain.TranscriptPatch
	flags := cmd.Flags()
	if flags.Changed("title") {
		title := updateTitle
		patch.Title = &title
	}
	if flags.Changed("raw") {
		text, err := readTextFlag(cmd, updateRaw)
		if err != nil {
			return err
		}
		patch.RawText = &text
	}
	if flags.Changed("cleaned") {
		text, err := readTextFlag(cmd, updateCleaned)
		if err != nil {
			return err
		}
		patch.CleanedText = &text
	}
	if patch.IsEmpty() {
		return errors.New("nothing to update: pass --title, --raw or --cleaned")
	}

	id := args[0]
	t, err := transcriptService.Update(cmd.Context(), id, patch)
	if err != nil {
		return userError("update transcript", id, err)
	}

	if jsonOutput {
		return printJSON(cmd, t)
	}
	cmd.Printf("Updated transcript %s (%s)\n", t.ID, t.Title)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	id := args[0]
	if err := transcriptService.Delete(cmd.Context(), id); err != nil {
		return userError("delete transcript", id, err)
	}

	cmd.Printf("Deleted transcript %s\n", id)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	results, err := transcriptService.Search(cmd.Context(), args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, results)
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s (%s)\n", i+1, results[i].Title, results[i].ID)
		cmd.Printf("      %s\n", preview(results[i].IndexText(), 120))
		cmd.Println()
	}
	return nil
}

func runMessages(cmd *cobra.Command, args []string) error {
	if transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	id := args[0]
	msgs, err := transcriptService.Messages(cmd.Context(), id)
	if err != nil {
		return userError("list messages", id, err)
	}

	if jsonOutput {
		return printJSON(cmd, msgs)
	}
	if len(msgs) == 0 {
		cmd.Println("No messages yet.")
		return nil
	}

	for i := range msgs {
		cmd.Printf("[%s] %s\n\n", msgs[i].Role, msgs[i].Content)
	}
	return nil
}
