package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var envFile string

	ctx := newCommandContext(&configFlag, &envFile)

	rootCmd := &cobra.Command{
		Use:           "submux",
		Short:         "Attach subtitles to videos with ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.loadEnv(); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file (default ./.env when present)")

	rootCmd.AddCommand(
		newServeCommand(ctx),
		newMuxCommand(ctx),
		newExtractCommand(ctx),
		newSubtitleCommand(ctx),
		newStatusCommand(ctx),
		newSessionCommand(ctx),
		newConfigCommand(ctx),
		newNotifyCommand(ctx),
	)
	return rootCmd
}
