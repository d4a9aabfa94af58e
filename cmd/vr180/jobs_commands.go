package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"videos"},
		Short:   "Inspect and manage conversion jobs on the daemon",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsUploadCommand(ctx))
	jobsCmd.AddCommand(newJobsDownloadCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				records, err := client.ListJobs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Status", "Progress", "Size", "Duration", "Resolution", "Created"},
					buildJobRows(records),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output jobs as JSON")
	return cmd
}

func buildJobRows(records []api.Job) [][]string {
	rows := make([][]string, 0, len(records))
	for _, job := range records {
		rows = append(rows, []string{
			job.ID,
			job.OriginalFilename,
			job.Status,
			formatProgress(job.Progress),
			formatSize(job.FileSize),
			formatSeconds(job.Duration),
			valueOr(job.Resolution, "-"),
			formatAge(job.CreatedAt),
		})
	}
	return rows
}

type jobDetail struct {
	Job   api.Job     `json:"job"`
	Steps []api.Stage `json:"steps"`
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its pipeline steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				job, err := client.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				steps, err := client.Steps(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobDetail{Job: *job, Steps: steps})
				}
				renderJobDetail(cmd.OutOrStdout(), job, steps)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the job as JSON")
	return cmd
}

func renderJobDetail(out io.Writer, job *api.Job, steps []api.Stage) {
	fields := [][2]string{
		{"ID", job.ID},
		{"File", job.OriginalFilename},
		{"Status", job.Status},
		{"Progress", formatProgress(job.Progress)},
		{"Size", formatSize(job.FileSize)},
		{"Duration", formatSeconds(job.Duration)},
		{"Resolution", valueOr(job.Resolution, "-")},
		{"VR output", valueOr(job.VRPath, "-")},
		{"Mobile output", valueOr(job.MobileVRPath, "-")},
		{"Created", formatAge(job.CreatedAt)},
		{"Updated", formatAge(job.UpdatedAt)},
	}
	if job.ErrorMessage != nil {
		fields = append(fields, [2]string{"Error", *job.ErrorMessage})
	}
	for _, field := range fields {
		fmt.Fprintf(out, "%-14s %s\n", field[0]+":", field[1])
	}
	if len(steps) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, []string{
			step.Label,
			step.Status,
			formatProgress(step.Progress),
			formatAge(valueOr(step.StartedAt, "")),
			formatAge(valueOr(step.CompletedAt, "")),
			valueOr(step.ErrorMessage, ""),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Step", "Status", "Progress", "Started", "Completed", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func newJobsUploadCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video to the daemon and start its conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				job, err := client.Upload(cmd.Context(), path)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as job %s (%s, %s)\n",
					job.OriginalFilename, job.ID, valueOr(job.Resolution, "unknown resolution"), formatSeconds(job.Duration))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the created job as JSON")
	return cmd
}

func newJobsDownloadCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var output string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a finished VR180 render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			download := api.Download(strings.ToLower(strings.TrimSpace(kind)))
			if download != api.DownloadVR && download != api.DownloadMobile {
				return fmt.Errorf("invalid --type %q (expected %s or %s)", kind, api.DownloadVR, api.DownloadMobile)
			}
			dir, name, err := resolveDownloadTarget(output)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				tmp, err := os.CreateTemp(dir, ".vr180-download-*")
				if err != nil {
					return fmt.Errorf("create download file: %w", err)
				}
				defer os.Remove(tmp.Name())

				filename, err := client.Download(cmd.Context(), args[0], download, tmp)
				if closeErr := tmp.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}
				if name == "" {
					name = filepath.Base(filename)
				}
				if name == "" || name == "." {
					name = args[0] + ".mp4"
				}
				target := filepath.Join(dir, name)
				if err := os.Rename(tmp.Name(), target); err != nil {
					return fmt.Errorf("save download: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "type", "t", string(api.DownloadVR), "Render to download (vr or mobile)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (defaults to the current directory)")
	return cmd
}

// resolveDownloadTarget splits output into a directory and an optional file
// name. An empty name means the server-provided attachment name is used.
func resolveDownloadTarget(output string) (string, string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		dir, err := os.Getwd()
		return dir, "", err
	}
	expanded, err := config.ExpandPath(output)
	if err != nil {
		return "", "", err
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return expanded, "", nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", "", fmt.Errorf("inspect output %q: %w", expanded, err)
	}
	return filepath.Dir(expanded), filepath.Base(expanded), nil
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a job and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				removed, err := client.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("job %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
				return nil
			})
		},
	}
}
