package cmd

import (
	"video-gate/config"

	"github.com/spf13/cobra"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "video-gate",
		Short: "video transcoding and entitlement-gated HLS delivery",
	}
	rootCmd.AddCommand(server(config), worker(config), migrate(config), authToken(config))
	return rootCmd
}
