package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kfget/kfget/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize kfget settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetSettingsPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with defaults if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}
		if err := config.SaveSettings(settings); err != nil {
			return err
		}
		fmt.Println("Wrote", config.GetSettingsPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}
