package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Print the duration and resolution ffprobe reports for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			meta, err := ffprobe.Probe(cmd.Context(), cfg.Tools.FFprobeBinary, path)
			if err != nil {
				return describeProbeError(err)
			}
			summary := api.FromMetadata(meta)
			if asJSON {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			duration := summary.Duration
			fmt.Fprintf(out, "%-12s %s\n", "File:", path)
			fmt.Fprintf(out, "%-12s %s\n", "Duration:", formatSeconds(&duration))
			fmt.Fprintf(out, "%-12s %s\n", "Resolution:", summary.Resolution)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output metadata as JSON")
	return cmd
}

func describeProbeError(err error) error {
	var metaErr *ffprobe.MetadataError
	if errors.As(err, &metaErr) {
		return fmt.Errorf("invalid video: %s: %w", metaErr.Reason, err)
	}
	return err
}
