package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"procpilot/pkg/sdk"
)

var (
	Client  *sdk.Client
	BaseURL string
)

var RootCmd = &cobra.Command{
	Use:   "procpilot",
	Short: "CLI for the procpilot process supervisor",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		Client = sdk.NewClient(BaseURL)
	},
	Run: func(cmd *cobra.Command, args []string) {
		RunDashboard()
	},
}

func Execute(defaultPort int) {
	defaultURL := fmt.Sprintf("http://localhost:%d", defaultPort)
	RootCmd.PersistentFlags().StringVar(&BaseURL, "url", defaultURL, "URL of the procpilot daemon")

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
