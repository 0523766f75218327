package main

import (
	"github.com/spf13/cobra"

	"github.com/user/gridpulse/internal/client"
	"github.com/user/gridpulse/internal/tui"
)

var uiMasterURL string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the live terminal dashboard",
	Long:  "Open a terminal dashboard that refreshes from the master's query API.",
	RunE:  runUI,
}

func init() {
	uiCmd.Flags().StringVar(&uiMasterURL, "master-url", "",
		"master base URL (overrides config)")
}

func runUI(cmd *cobra.Command, args []string) error {
	url := cfg.MasterURL
	if uiMasterURL != "" {
		url = uiMasterURL
	}
	return tui.NewApp(client.New(url)).Run()
}
