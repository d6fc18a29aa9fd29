package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask a question about a transcript",
	Long: `Answers a question grounded in the most relevant passages of a
transcript. Without an index it uses the whole transcript, and without a
transcript it uses --context when given.

The answer streams as it is generated unless --no-stream is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

var cleanCmd = &cobra.Command{
	Use:   "clean [file|-]",
	Short: "Clean up speech-to-text output",
	Long: `Rewrites raw transcript text with the LLM, fixing punctuation and
removing filler words. With --id the transcript's raw text is cleaned and
stored as its cleaned version.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

var titleCmd = &cobra.Command{
	Use:   "title [file|-]",
	Short: "Suggest a title",
	Long:  `Generates a short title for text, or for a transcript with --id.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTitle,
}

// Command flags.
var (
	chatDocument string
	chatContext  string
	chatHistory  bool
	chatHistoryN int
	chatNoStream bool
	chatSave     bool

	cleanID     string
	cleanPrompt string

	titleID    string
	titleApply bool
)

func init() {
	chatCmd.Flags().StringVarP(&chatDocument, "doc", "d", "", "transcript to ground the answer in")
	chatCmd.Flags().StringVar(&chatContext, "context", "", "extra context used when nothing is retrieved")
	chatCmd.Flags().BoolVar(&chatHistory, "history", false, "include the transcript's earlier conversation")
	chatCmd.Flags().IntVar(&chatHistoryN, "history-limit", 0, "maximum earlier turns (0 = configured default)")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the whole answer")
	chatCmd.Flags().BoolVar(&chatSave, "save", false, "append the question and answer to the transcript")

	cleanCmd.Flags().StringVar(&cleanID, "id", "", "clean a stored transcript")
	cleanCmd.Flags().StringVar(&cleanPrompt, "prompt", "", "system prompt overriding the configured one")

	titleCmd.Flags().StringVar(&titleID, "id", "", "title a stored transcript")
	titleCmd.Flags().BoolVar(&titleApply, "apply", false, "store the title on the transcript (requires --id)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(titleCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}
	if chatSave && chatDocument == "" {
		return errors.New("--save requires --doc")
	}
	if chatSave && transcriptService == nil {
		return errors.New("transcript service not configured")
	}

	req := domain.ChatRequest{
		DocumentID:      chatDocument,
		Message:         args[0],
		IncludeHistory:  chatHistory,
		HistoryLimit:    chatHistoryN,
		ExplicitContext: chatContext,
	}

	var (
		answer string
		err    error
	)
	if chatNoStream || jsonOutput {
		answer, err = chatOnce(cmd, req)
	} else {
		answer, err = chatStream(cmd, req)
	}
	if err != nil {
		return err
	}

	if chatSave {
		ctx := cmd.Context()
		if _, err := transcriptService.AddMessage(ctx, chatDocument, domain.RoleUser, req.Message); err != nil {
			return userError("save question", chatDocument, err)
		}
		if _, err := transcriptService.AddMessage(ctx, chatDocument, domain.RoleAssistant, answer); err != nil {
			return userError("save answer", chatDocument, err)
		}
	}
	return nil
}

func chatOnce(cmd *cobra.Command, req domain.ChatRequest) (string, error) {
	reply, err := chatService.Chat(cmd.Context(), req)
	if err != nil {
		return "", chatError(req.DocumentID, err)
	}

	if jsonOutput {
		return reply.Content, printJSON(cmd, reply)
	}
	cmd.Println(reply.Content)
	printChatSource(cmd, reply.Provider, reply.Source)
	return reply.Content, nil
}

func chatStream(cmd *cobra.Command, req domain.ChatRequest) (string, error) {
	stream, err := chatService.Stream(cmd.Context(), req)
	if err != nil {
		return "", chatError(req.DocumentID, err)
	}

	var sb strings.Builder
	for ev := range stream.Events {
		switch ev.Kind {
		case domain.EventToken:
			sb.WriteString(ev.Token)
			cmd.Print(ev.Token)
		case domain.EventError:
			cmd.Println()
			return "", fmt.Errorf("answer interrupted: %w", ev.Err)
		case domain.EventDone:
			cmd.Println()
			printChatSource(cmd, stream.Provider, stream.Source)
			return sb.String(), nil
		}
	}

	// Closed without a terminal event: the command context was cancelled.
	cmd.Println()
	if err := cmd.Context().Err(); err != nil {
		return "", err
	}
	return "", errors.New("answer interrupted")
}

func printChatSource(cmd *cobra.Command, provider string, source domain.ContextSource) {
	if verbose {
		cmd.PrintErrf("(answered by %s, context: %s)\n", provider, source)
	}
}

func chatError(documentID string, err error) error {
	if errors.Is(err, domain.ErrNoProviderAvailable) {
		return fmt.Errorf("no LLM provider answered; check the llm settings: %w", err)
	}
	return userError("chat", documentID, err)
}

func runClean(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	ctx := cmd.Context()
	text, err := titleOrCleanInput(cmd, args, cleanID, true)
	if err != nil {
		return err
	}

	res, err := chatService.Clean(ctx, text, cleanPrompt)
	if err != nil {
		return fmt.Errorf("failed to clean text: %w", err)
	}
	if res.Degraded {
		cmd.PrintErrln("Warning: no LLM provider answered; showing the raw text.")
	}

	if cleanID != "" {
		if res.Degraded {
			return errors.New("transcript left unchanged")
		}
		cleaned := res.Text
		if _, err := transcriptService.Update(ctx, cleanID, domain.TranscriptPatch{CleanedText: &cleaned}); err != nil {
			return userError("store cleaned text", cleanID, err)
		}
		cmd.Printf("Stored cleaned text for %s\n", cleanID)
		return nil
	}

	cmd.Println(res.Text)
	return nil
}

func runTitle(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}
	if titleApply && titleID == "" {
		return errors.New("--apply requires --id")
	}

	ctx := cmd.Context()
	text, err := titleOrCleanInput(cmd, args, titleID, false)
	if err != nil {
		return err
	}

	title := chatService.GenerateTitle(ctx, text)
	if titleApply {
		if _, err := transcriptService.Update(ctx, titleID, domain.TranscriptPatch{Title: &title}); err != nil {
			return userError("store title", titleID, err)
		}
	}
	cmd.Println(title)
	return nil
}

// titleOrCleanInput loads the transcript named by id, or reads args.
// The raw text is used for cleaning, the index text for titles.
func titleOrCleanInput(cmd *cobra.Command, args []string, id string, raw bool) (string, error) {
	if id == "" {
		return readInput(cmd, args)
	}
	if transcriptService == nil {
		return "", errors.New("transcript service not configured")
	}
	t, err := transcriptService.Get(cmd.Context(), id)
	if err != nil {
		return "", userError("get transcript", id, err)
	}
	if raw {
		return t.RawText, nil
	}
	return t.IndexText(), nil
}
