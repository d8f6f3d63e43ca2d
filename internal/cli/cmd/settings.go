package cmd

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change daemon settings",
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := Client.GetSettings()
		if err != nil {
			log.Fatalf("Error loading settings: %v", err)
		}

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			fmt.Printf("%s = %s\n", key, settings[key])
		}
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := Client.SetSettings(map[string]string{args[0]: args[1]}); err != nil {
			log.Fatalf("Error updating setting: %v", err)
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
	},
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd)
	RootCmd.AddCommand(settingsCmd)
}
