package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"submux/internal/subtitles"
)

func newSubtitleCommand(ctx *commandContext) *cobra.Command {
	subtitleCmd := &cobra.Command{
		Use:   "subtitle",
		Short: "Subtitle file utilities",
	}
	subtitleCmd.AddCommand(newSubtitleConvertCommand(ctx))
	subtitleCmd.AddCommand(newSubtitleCheckCommand())
	return subtitleCmd
}

func newSubtitleConvertCommand(ctx *commandContext) *cobra.Command {
	var fontName string
	var fontSize int
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between SRT, ASS, VTT, and plain text by extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			style := subtitles.DefaultASSStyle
			if name := strings.TrimSpace(cfg.Encoder.FontName); name != "" {
				style.FontName = name
			}
			if cfg.Defaults.FontSize > 0 {
				style.FontSize = cfg.Defaults.FontSize
			}
			if name := strings.TrimSpace(fontName); name != "" {
				style.FontName = name
			}
			if fontSize > 0 {
				style.FontSize = fontSize
			}
			if err := subtitles.Convert(args[0], args[1], style); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&fontName, "font-name", "", "Font for the ASS Default style")
	cmd.Flags().IntVar(&fontSize, "font-size", 0, "Font size for the ASS Default style")
	return cmd
}

func newSubtitleCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "check <file>",
		Short:       "Parse a subtitle file and report problems",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			warnings, err := subtitles.ValidateFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, warning := range warnings {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			fmt.Fprintf(out, "%s: ok (%d warnings)\n", args[0], len(warnings))
			return nil
		},
	}
}
