package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/codescan/internal/app"
	"github.com/tphakala/codescan/internal/buildinfo"
	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/errors"
)

// Command runs codescan as a service: MQTT ingest, REST API and metrics.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan service",
		Long: `Run codescan as a long-lived service. Detections arrive over MQTT and the
REST API; emitted scans are stored, published and served back over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, settings, info)
		},
	}

	cmd.Flags().String("listen", "", "REST API listen address, overrides webserver.listen")
	cmd.Flags().Bool("telemetry", false, "Enable the Prometheus metrics endpoint")
	cmd.Flags().String("broker", "", "MQTT broker URL, overrides mqtt.broker")
	for key, flag := range map[string]string{
		"webserver.listen":  "listen",
		"telemetry.enabled": "telemetry",
		"mqtt.broker":       "broker",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	a, err := app.New(settings, info)
	if err != nil {
		return err
	}

	runErr := a.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.DefaultShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Close(closeCtx))
}
