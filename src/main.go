package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"artifact-fetch/src/actions"
	"artifact-fetch/src/downloader"
	"artifact-fetch/src/locator"
	"artifact-fetch/src/notify"
	"artifact-fetch/src/token"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		tokenFlag    string
		noFlatten    bool
		noWait       bool
		pollInterval int
		timeout      int
	)

	cmd := &cobra.Command{
		Use:   "artifact-fetch <input> [run_id_or_output] [output_dir]",
		Short: "Download artifacts from a GitHub Actions workflow run",
		Long: `Download artifacts from a GitHub Actions workflow run.

By default, all artifact files are flattened into a single output directory
and the tool waits for the run to complete before downloading.

The input is either 'owner/repo' followed by a run id, or a full run URL:

  artifact-fetch wisdom-valley/knowlify-ai 19810307537 ./artifacts
  artifact-fetch https://github.com/wisdom-valley/knowlify-ai/actions/runs/19810307537`,
		Args:         cobra.RangeArgs(1, 3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, outputDir, err := resolveArgs(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			t, err := token.Resolve(tokenFlag)
			if err != nil {
				return err
			}

			return fetchArtifacts(ctx, actions.NewClient(ctx, t), ref, downloader.Layout{
				Flatten:   !noFlatten,
				OutputDir: outputDir,
			}, !noWait, time.Duration(pollInterval)*time.Second, time.Duration(timeout)*time.Second)
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "GitHub API token (default: GITHUB_TOKEN or the gh CLI login)")
	cmd.Flags().BoolVar(&noFlatten, "no-flatten", false, "Keep artifacts in separate subdirectories instead of flattening to one directory")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for the workflow to complete")
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 60, "Polling interval in seconds while waiting for the workflow")
	cmd.Flags().IntVar(&timeout, "timeout", 1800, "Maximum wait time in seconds")

	return cmd
}

// resolveArgs maps the positional arguments onto a run reference and output
// directory. With a run URL the second positional is the output directory;
// with owner/repo the second is the required run id and the third the
// output directory.
func resolveArgs(args []string) (locator.RunReference, string, error) {
	var (
		ref       locator.RunReference
		outputDir string
		err       error
	)

	if strings.HasPrefix(args[0], "http://") || strings.HasPrefix(args[0], "https://") {
		if len(args) > 2 {
			return ref, "", fmt.Errorf("%w: unexpected argument %q after output directory", locator.ErrInvalidInput, args[2])
		}
		ref, err = locator.ParseURL(args[0])
		if err != nil {
			return ref, "", err
		}
		if len(args) > 1 {
			outputDir = args[1]
		}
	} else {
		if len(args) < 2 {
			return ref, "", fmt.Errorf("%w: run_id is required with the owner/repo form", locator.ErrInvalidInput)
		}
		ref, err = locator.Parse(args[0], args[1])
		if err != nil {
			return ref, "", err
		}
		if len(args) > 2 {
			outputDir = args[2]
		}
	}

	if outputDir == "" {
		outputDir = fmt.Sprintf("artifacts-%d", ref.RunID)
	}

	return ref, outputDir, nil
}

func fetchArtifacts(ctx context.Context, client *actions.Client, ref locator.RunReference, layout downloader.Layout, wait bool, interval, timeout time.Duration) error {
	run, err := client.GetRun(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Printf("Workflow run #%d (%s) - status: %s, conclusion: %s\n",
		run.GetRunNumber(), run.GetName(), run.GetStatus(), run.GetConclusion())

	if wait {
		run, err = client.WaitForRun(ctx, ref, interval, timeout)
		switch {
		case errors.Is(err, actions.ErrWorkflowFailed):
			notify.Send("❌ Workflow Failed",
				fmt.Sprintf("Run #%d: %s\nConclusion: %s", run.GetRunNumber(), run.GetName(), run.GetConclusion()))
			return err
		case errors.Is(err, actions.ErrWorkflowTimedOut):
			notify.Send("⏱️ Workflow Timeout",
				fmt.Sprintf("Run %d did not complete within %d minutes", ref.RunID, int(timeout.Minutes())))
			return err
		case err != nil:
			return err
		}

		notify.Send("✅ Workflow Succeeded",
			fmt.Sprintf("Run #%d: %s\nReady to download artifacts", run.GetRunNumber(), run.GetName()))
	}

	artifacts, err := client.ListArtifacts(ctx, ref)
	if err != nil {
		return err
	}

	totalFiles := 0
	for _, artifact := range artifacts {
		fmt.Printf("Downloading artifact '%s'...\n", artifact.GetName())

		url, err := client.ArtifactURL(ctx, ref, artifact.GetID())
		if err != nil {
			return err
		}

		n, err := downloader.DownloadAndExtract(ctx, url, artifact.GetName(), layout)
		if err != nil {
			return fmt.Errorf("error downloading artifact '%s': %w", artifact.GetName(), err)
		}
		totalFiles += n
	}

	fmt.Printf("All artifacts downloaded to %s (%d files total)\n", layout.OutputDir, totalFiles)

	return nil
}
