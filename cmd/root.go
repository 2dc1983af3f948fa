package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kfget/kfget/internal/config"
	"github.com/kfget/kfget/internal/core"
	"github.com/kfget/kfget/internal/tui"
	"github.com/kfget/kfget/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// GlobalService is the pipeline backend shared by the root and get commands.
var GlobalService core.PipelineService

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "kfget [url]...",
	Short:   "A terminal downloader for kr.linkkf.net episodes",
	Long: `kfget extracts the stream behind linkkf player pages, downloads the
media (direct files or frame sequences) and assembles frame sequences into
playable videos with ffmpeg.`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		settings, err := config.LoadSettings()
		if err != nil {
			utils.Debug("Falling back to default settings: %v", err)
			settings = config.DefaultSettings()
		}
		GlobalService = core.NewLocalPipelineService(settings.ToRuntimeConfig())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output")
		exitWhenDone, _ := cmd.Flags().GetBool("exit-when-done")

		urls, err := collectURLs(cmd, args)
		if err != nil {
			return err
		}

		defer func() { _ = GlobalService.Shutdown() }()
		return startTUI(urls, outputDir, exitWhenDone)
	},
}

// startTUI initializes and runs the TUI program.
func startTUI(urls []string, outputDir string, exitWhenDone bool) error {
	m, err := tui.NewRootModel(GlobalService, outputDir)
	if err != nil {
		return fmt.Errorf("initializing interface: %w", err)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	if len(urls) > 0 {
		if err := GlobalService.Start(context.Background(), urls, outputDir); err != nil {
			return err
		}
	}

	if exitWhenDone && len(urls) > 0 {
		go func() {
			ch, release, err := GlobalService.StreamEvents(context.Background())
			if err != nil {
				return
			}
			defer release()
			waitForBatch(ch)
			p.Send(tea.Quit())
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

func init() {
	rootCmd.Flags().StringP("output", "o", ".", "destination directory for downloaded episodes")
	rootCmd.Flags().StringP("batch", "b", "", "file with player URLs, one per line")
	rootCmd.Flags().Bool("from-clipboard", false, "read player URLs from the clipboard")
	rootCmd.Flags().Bool("exit-when-done", false, "quit automatically once the batch finishes")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
