package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vr180/internal/api"
	"vr180/internal/ipc"
	"vr180/internal/logging"
	"vr180/internal/logs"
)

// followWait is how long each follow request waits for new lines.
const followWait = time.Second

type logPager func(ctx context.Context, offset int64, limit int, wait time.Duration) (*api.LogTail, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Long:  "Display daemon logs through the API, or from the log file when the daemon is not running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			local := func(c context.Context, offset int64, limit int, wait time.Duration) (*api.LogTail, error) {
				result, err := logs.Tail(c, logPath, logs.Request{Offset: offset, Limit: limit, Wait: wait})
				if err != nil {
					return nil, err
				}
				return &api.LogTail{Lines: result.Lines, Offset: result.Offset}, nil
			}

			var pager logPager = client.Logs
			offset, limit := int64(-1), max(lines, 0)
			if limit == 0 {
				offset = 0
			}
			page, err := pager(cmd.Context(), offset, limit, 0)
			if errors.Is(err, ipc.ErrDaemonUnavailable) {
				pager = local
				page, err = pager(cmd.Context(), offset, limit, 0)
			}
			if err != nil {
				return fmt.Errorf("tail logs: %w", err)
			}
			return printLogPages(cmd, pager, page, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

func printLogPages(cmd *cobra.Command, pager logPager, page *api.LogTail, follow bool) error {
	out := cmd.OutOrStdout()
	for _, line := range page.Lines {
		fmt.Fprintln(out, line)
	}
	if !follow {
		if len(page.Lines) == 0 {
			fmt.Fprintln(out, "No log entries available")
		}
		return nil
	}

	ctx := cmd.Context()
	offset := page.Offset
	for ctx.Err() == nil {
		next, err := pager(ctx, offset, 0, followWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tail logs: %w", wrapClientError(err))
		}
		for _, line := range next.Lines {
			fmt.Fprintln(out, line)
		}
		offset = next.Offset
	}
	return nil
}
