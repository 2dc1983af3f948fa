package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/kfget/kfget/internal/linkkf"
)

// collectURLs gathers player URLs from positional args, the --batch file and
// the clipboard, in that order. Duplicate sources are fine; the orchestrator
// settles duplicates itself.
func collectURLs(cmd *cobra.Command, args []string) ([]string, error) {
	urls := append([]string{}, args...)

	if batchFile, _ := cmd.Flags().GetString("batch"); batchFile != "" {
		fileURLs, err := readURLsFromFile(batchFile)
		if err != nil {
			return nil, fmt.Errorf("reading batch file: %w", err)
		}
		urls = append(urls, fileURLs...)
	}

	if fromClipboard, _ := cmd.Flags().GetBool("from-clipboard"); fromClipboard {
		clipURLs, err := readURLsFromClipboard()
		if err != nil {
			return nil, err
		}
		urls = append(urls, clipURLs...)
	}

	return urls, nil
}

// readURLsFromFile reads URLs from a file, one per line. Blank lines and
// #-comments are skipped.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return urls, nil
}

// readURLsFromClipboard pulls player URLs out of the clipboard text. Only
// lines that look like player URLs are kept, so a mixed clipboard does not
// poison the batch.
func readURLsFromClipboard() ([]string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading clipboard: %w", err)
	}

	var urls []string
	for _, line := range strings.Fields(text) {
		if linkkf.LooksLikePlayerURL(line) {
			urls = append(urls, line)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no player URLs found in clipboard")
	}
	return urls, nil
}
