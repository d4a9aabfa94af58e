package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/fileutil"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/workflow"
)

// processLogFileName receives pipeline logs from `vr180 process`.
const processLogFileName = "vr180-process.log"

const processPollInterval = 100 * time.Millisecond

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Convert a local video without a daemon",
		Long: "Runs the full pipeline in this process against an in-memory job store.\n" +
			"Renders are written to paths.work_dir, or moved into --output when set.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(source)
			if err != nil {
				return fmt.Errorf("inspect %q: %w", source, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", source)
			}
			if err := api.ValidateUpload(cfg, filepath.Base(source), info.Size()); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      "json",
				OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, processLogFileName)},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store := jobs.NewMemoryStore()
			defer store.Close()
			manager := workflow.NewManager(cfg, store, logger)
			svc := api.NewService(cfg, store, manager, logger)

			job, err := svc.Submit(cmd.Context(), filepath.Base(source), source, info.Size())
			if err != nil {
				return describeProbeError(err)
			}

			final, err := followJob(cmd.Context(), cmd.ErrOrStderr(), svc, job.ID)
			if err != nil {
				return err
			}
			waitCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
			defer cancel()
			_ = manager.Wait(waitCtx)

			if final.Status != string(jobs.StatusCompleted) {
				return fmt.Errorf("processing failed: %s", valueOr(final.ErrorMessage, "unknown error"))
			}
			if strings.TrimSpace(outputDir) != "" {
				if err := collectRenders(final, outputDir); err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(cmd, final)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "VR180:        %s\n", valueOr(final.VRPath, "-"))
			fmt.Fprintf(out, "VR180 mobile: %s\n", valueOr(final.MobileVRPath, "-"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory that receives the finished renders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the finished job as JSON")
	return cmd
}

// followJob polls the job until it reaches a terminal status, drawing a
// progress bar on terminals and printing step transitions otherwise.
func followJob(ctx context.Context, out io.Writer, svc *api.Service, id string) (*api.Job, error) {
	var bar *progressbar.ProgressBar
	if isTerminal(out) {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Queued"),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
			progressbar.OptionEnableColorCodes(true),
		)
	}

	ticker := time.NewTicker(processPollInterval)
	defer ticker.Stop()
	lastLabel := ""
	for {
		job, err := svc.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job %s disappeared", id)
		}
		label := currentStepLabel(ctx, svc, id)
		if bar != nil {
			if label != "" {
				bar.Describe(label)
			}
			_ = bar.Set(job.Progress)
		} else if label != "" && label != lastLabel {
			fmt.Fprintf(out, "%s (%d%%)\n", label, job.Progress)
		}
		if label != "" {
			lastLabel = label
		}

		if job.Status == string(jobs.StatusCompleted) || job.Status == string(jobs.StatusFailed) {
			if bar != nil {
				if job.Status == string(jobs.StatusCompleted) {
					_ = bar.Finish()
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintf(out, "%s (%d%%)\n", strings.ToUpper(job.Status[:1])+job.Status[1:], job.Progress)
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func currentStepLabel(ctx context.Context, svc *api.Service, id string) string {
	steps, err := svc.ListStages(ctx, id)
	if err != nil {
		return ""
	}
	for _, step := range steps {
		if step.Status == string(jobs.StageProcessing) {
			return step.Label
		}
	}
	return ""
}

// collectRenders moves the finished renders into dir under their download names.
func collectRenders(job *api.Job, dir string) error {
	dir, err := config.ExpandPath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, kind := range []api.Download{api.DownloadVR, api.DownloadMobile} {
		path, name := api.DownloadTarget(job, kind)
		if path == "" {
			continue
		}
		target := filepath.Join(dir, name)
		if err := fileutil.Move(path, target); err != nil {
			return fmt.Errorf("move %s render: %w", kind, err)
		}
		switch kind {
		case api.DownloadVR:
			job.VRPath = &target
		case api.DownloadMobile:
			job.MobileVRPath = &target
		}
	}
	return nil
}
