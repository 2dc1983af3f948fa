package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
)

// getCmd runs the pipeline headless: no TUI, events printed as plain lines.
var getCmd = &cobra.Command{
	Use:   "get [url]...",
	Short: "get downloads episodes without the interactive interface",
	Long: `get runs the download pipeline headless and prints one line per
pipeline event. The exit code is non-zero when any URL fails.`,
	Args:          cobra.MinimumNArgs(0),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output")

		urls, err := collectURLs(cmd, args)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs given: pass them as arguments, --batch or --from-clipboard")
		}

		defer func() { _ = GlobalService.Shutdown() }()

		ch, release, err := GlobalService.StreamEvents(context.Background())
		if err != nil {
			return err
		}
		defer release()

		if err := GlobalService.Start(context.Background(), urls, outputDir); err != nil {
			return err
		}

		printEvents(ch)

		// Returning the error lets the deferred Shutdown and release run
		// before Execute sets the exit code.
		results := GlobalService.Results()
		if failed := countFailures(results); failed > 0 {
			return fmt.Errorf("%d of %d downloads failed", failed, len(results))
		}
		return nil
	},
}

// countFailures tallies results that ended in a real error. A duplicate is
// a skip, not a failure.
func countFailures(results []types.DownloadResult) int {
	failed := 0
	for _, r := range results {
		if r.Failed() && types.KindOf(r.Err) != types.KindDuplicate {
			failed++
		}
	}
	return failed
}

// printEvents consumes the event stream until the batch finishes.
func printEvents(ch <-chan any) {
	for msg := range ch {
		switch m := msg.(type) {
		case events.ItemQueuedMsg:
			fmt.Printf("Queued: %s [%s]\n", m.URL, shortID(m.RequestID))
		case events.ItemStartedMsg:
			fmt.Printf("Started: v%d-sub-%d [%s]\n", m.ContentID, m.SubIndex, shortID(m.RequestID))
		case events.ItemSkippedMsg:
			fmt.Printf("Skipped duplicate: %s [%s]\n", m.URL, shortID(m.RequestID))
		case events.ProgressMsg:
			if m.Total > 0 {
				fmt.Printf("%s: %d/%d [%s]\n", m.Phase, m.Completed, m.Total, shortID(m.RequestID))
			} else {
				fmt.Printf("%s [%s]\n", m.Phase, shortID(m.RequestID))
			}
		case events.ItemCompleteMsg:
			fmt.Printf("Completed: %s (in %s) [%s]\n", m.OutputPath, m.Elapsed, shortID(m.RequestID))
		case events.ItemErrorMsg:
			fmt.Printf("Error: %s: %v\n", m.URL, m.Err)
		case events.BatchDoneMsg:
			fmt.Printf("Batch finished in %s\n", m.Elapsed)
			return
		}
	}
}

// waitForBatch drains the stream until the terminal batch message.
func waitForBatch(ch <-chan any) {
	for msg := range ch {
		if _, ok := msg.(events.BatchDoneMsg); ok {
			return
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	getCmd.Flags().StringP("output", "o", ".", "destination directory for downloaded episodes")
	getCmd.Flags().StringP("batch", "b", "", "file with player URLs, one per line")
	getCmd.Flags().Bool("from-clipboard", false, "read player URLs from the clipboard")
}
