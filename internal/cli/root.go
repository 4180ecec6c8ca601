package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "resonance",
	Short: "Per-user interest modeling and resonance color service",
	Long:  "Resonance tracks decaying per-user interest profiles, ranks content feeds with a curiosity quota, and maps engagement onto an animated display color. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(colorCmd)
	rootCmd.AddCommand(usersCmd)
}
