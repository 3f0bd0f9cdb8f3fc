package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/pkg/rag"
)

var (
	searchTopK   int
	searchRank   bool
	listLimit    int
	clearYes     bool
	uploadConvID string
	chatConvID   string
	chatStream   bool
	chatRank     bool
	chatTopK     int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|folder>...",
	Short: "Extract, chunk, embed and index files",
	Long: `Ingests PDF, DOCX, DOC, XLSX and XLSM files. Folders are read one level
deep. A file that fails is reported and the rest are still indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve the chunks most relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed chunks in insertion order",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every chunk from the index",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Attach a file to a conversation without indexing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 5, "number of chunks to return")
	searchCmd.Flags().BoolVar(&searchRank, "rank", false, "re-rank candidates (defaults to ranker.enabled)")

	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of chunks, 0 for all")

	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deleting the whole index")

	uploadCmd.Flags().StringVarP(&uploadConvID, "conversation", "c", "", "conversation id")
	_ = uploadCmd.MarkFlagRequired("conversation")

	chatCmd.Flags().StringVarP(&chatConvID, "conversation", "c", "", "include files uploaded to this conversation")
	chatCmd.Flags().BoolVar(&chatStream, "stream", true, "stream responses")
	chatCmd.Flags().BoolVar(&chatRank, "rank", false, "re-rank candidates (defaults to ranker.enabled)")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 5, "number of chunks to ground each answer on")

	rootCmd.AddCommand(ingestCmd, searchCmd, listCmd, clearCmd, uploadCmd, chatCmd)
}

// rankFlag falls back to the configured default unless --rank was given.
func rankFlag(cmd *cobra.Command, value bool) bool {
	if cmd.Flags().Changed("rank") {
		return value
	}
	return cfg.Ranker.Enabled
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := rag.FolderFiles(arg)
		if err != nil {
			return err
		}
		paths = append(paths, files...)
	}

	bar := getProgressBar(len(paths), " Indexing documents")
	report, err := a.service.ProcessFiles(cmd.Context(), paths, func(models.FileOutcome) {
		bar.Add(1)
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	for _, o := range report.Outcomes {
		if o.OK() {
			color.Green("✓ %s (%d chunks)", o.File, o.Chunks)
		} else {
			color.Red("✗ %s: %v", o.File, o.Err)
		}
	}
	color.Cyan("Indexed %d chunks from %d of %d files",
		report.TotalChunks(), len(report.Succeeded()), len(report.Outcomes))

	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(report.Outcomes))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")
	spinner := getSpinner(" Searching documents...")
	result, err := a.service.Retrieve(cmd.Context(), query, searchTopK, rankFlag(cmd, searchRank))
	spinner.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	if result.Empty() {
		color.Yellow("No documents found for query")
		return nil
	}
	printResults(result)
	return nil
}

func printResults(result models.RetrievalResult) {
	for i, r := range result {
		where := r.FileName
		if r.Source == models.SourceUpload {
			where = "uploaded file"
		}
		if loc := r.Locator.String(); loc != "" {
			where += " @ " + loc
		}
		color.Cyan("[%d] %s (%.3f)", i+1, where, r.Score)
		fmt.Printf("    %s\n\n", snippet(r.Content, 300))
	}
}

func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.service.ListAll(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		color.Yellow("Index is empty")
		return nil
	}

	for _, c := range chunks {
		color.Cyan("%s #%d %s  %s", c.FileName, c.ChunkID, c.Locator.String(), c.Timestamp.Format("2006-01-02 15:04:05"))
		fmt.Printf("    %s\n\n", snippet(c.Text, 200))
	}
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if !clearYes {
		return errors.New("refusing to clear the index without --yes")
	}

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.DeleteAll(cmd.Context()); err != nil {
		return err
	}
	color.Green("✓ Index cleared")
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	chunks, err := a.service.UploadToConversation(cmd.Context(), uploadConvID, args[0])
	if err != nil {
		return err
	}
	color.Green("✓ Uploaded %s to conversation %s (%d chunks)", args[0], uploadConvID, len(chunks))
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	useRanking := rankFlag(cmd, chatRank)

	// Interactive chat loop with colored output
	color.Cyan("\nChat with your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var history string
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.ToLower(query) == "exit" {
			break
		}
		if query == "" {
			continue
		}

		querySpinner := getSpinner(" Searching documents...")
		prepared, err := a.service.Prepare(ctx, rag.AnswerRequest{
			Query:          query,
			History:        history,
			ConversationID: chatConvID,
			TopK:           chatTopK,
			UseRanking:     useRanking,
		})
		querySpinner.Finish()

		if errors.Is(err, models.ErrEmptyContext) {
			color.Yellow("\nNo documents found for query")
			continue
		}
		if err != nil {
			color.Red("\nError: %v", err)
			continue
		}
		history = prepared.History

		var response string
		if chatStream {
			response, err = streamAnswer(cmd, a, prepared, assistantPrompt)
		} else {
			responseSpinner := getSpinner(" Generating response...")
			response, err = a.chat.Generate(ctx, prepared.Messages)
			responseSpinner.Finish()
			if err == nil {
				assistantPrompt("\nAssistant: %s\n", response)
			}
		}
		if err != nil {
			color.Red("\nError: %v", err)
			continue
		}

		history += fmt.Sprintf("Human: %s\nAI: %s\n", query, response)
	}

	return scanner.Err()
}

func streamAnswer(cmd *cobra.Command, a *app, prepared *rag.Prepared, assistantPrompt func(string, ...interface{})) (string, error) {
	stream, err := a.chat.ChatStream(cmd.Context(), prepared.Messages)
	if err != nil {
		return "", err
	}

	fmt.Print("\n")
	assistantPrompt("Assistant: ")

	responseSpinner := getSpinner(" Thinking...")
	firstChunk := true
	var response strings.Builder

	for chunk := range stream {
		if strings.HasPrefix(chunk, "Error:") {
			responseSpinner.Finish()
			return "", errors.New(strings.TrimSpace(strings.TrimPrefix(chunk, "Error:")))
		}

		// Clear spinner on first chunk
		if firstChunk {
			responseSpinner.Finish()
			firstChunk = false
			fmt.Print("\n")
		}

		fmt.Print(chunk)
		response.WriteString(chunk)
	}

	if firstChunk {
		responseSpinner.Finish()
	}
	fmt.Print("\n")
	return response.String(), nil
}
