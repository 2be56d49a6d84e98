package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/codescan/internal/app"
	"github.com/tphakala/codescan/internal/buildinfo"
	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
)

// Command feeds decoder output through the scan pipeline.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Process detections from stdin or a file",
		Long: `Read one detection per line and print one JSON result per line.

Lines are either "symbology,value" or a JSON object:
  ean13,4006381333931
  {"value":"https://example.com","symbology":"qr","observed_at":"2026-03-01T10:00:00Z"}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var in io.Reader = cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath) //nolint:gosec // G304: path comes from the command line
				if err != nil {
					return fmt.Errorf("error opening input: %w", err)
				}
				defer f.Close()
				in = f
			}
			return run(ctx, cmd, settings, info, in)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "file", "f", "-", "Input file, - for stdin")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, settings *conf.Settings, info *buildinfo.Context, in io.Reader) error {
	// ingest is a batch job; the REST API stays off
	settings.WebServer.Enabled = false

	a, err := app.New(settings, info)
	if err != nil {
		return err
	}

	stats, ingestErr := a.Ingest(ctx, in, cmd.OutOrStdout())

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.DefaultShutdownTimeout)
	defer cancel()
	closeErr := a.Close(closeCtx)

	fmt.Fprintf(cmd.ErrOrStderr(), "%d lines: %d emitted, %d suppressed, %d invalid, %d failed\n",
		stats.Lines, stats.Emitted, stats.Suppressed, stats.Invalid+stats.Rejected, stats.Failed)

	if err := errors.Join(ingestErr, closeErr); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d scans could not be stored", stats.Failed)
	}
	return nil
}
