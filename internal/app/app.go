// Package app assembles codescan's components from settings and runs them.
package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/codescan/internal/api"
	"github.com/tphakala/codescan/internal/buildinfo"
	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/enrichment"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/mqtt"
	"github.com/tphakala/codescan/internal/notification"
	"github.com/tphakala/codescan/internal/observability"
	"github.com/tphakala/codescan/internal/pipeline"
	"github.com/tphakala/codescan/internal/telemetry"
)

// DefaultShutdownTimeout bounds how long Close waits for in-flight detections.
const DefaultShutdownTimeout = 15 * time.Second

// App holds the wired components. Optional components are nil when disabled.
type App struct {
	settings *conf.Settings
	info     *buildinfo.Context
	logger   logger.Logger

	Metrics    *observability.Metrics
	Store      datastore.Interface
	Enrichment *enrichment.Client
	Pipeline   *pipeline.Pipeline
	MQTT       mqtt.Client
	Notifier   *notification.Notifier
	API        *api.Server

	closeTelemetry func()
	closeOnce      sync.Once
	closeErr       error
}

// New builds every enabled component and opens the scan store. Call Close
// when done, also after Run returns.
func New(settings *conf.Settings, info *buildinfo.Context) (*App, error) {
	a := &App{
		settings:       settings,
		info:           info,
		logger:         logger.Global().Module("app"),
		closeTelemetry: func() {},
	}

	closeTelemetry, err := telemetry.Init(telemetry.ConfigFromSettings(settings, info.GetVersion()))
	if err != nil {
		return nil, err
	}
	a.closeTelemetry = closeTelemetry

	if err := a.init(); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	a.logger.Info("codescan initialized",
		logger.String("version", info.GetVersion()),
		logger.Bool("enrichment", a.Enrichment != nil),
		logger.Bool("mqtt", a.MQTT != nil),
		logger.Bool("notifications", a.Notifier != nil),
		logger.Bool("webserver", a.API != nil))
	return a, nil
}

func (a *App) init() error {
	settings := a.settings
	var err error

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_metrics").
			Build()
	}

	if err := a.initStore(); err != nil {
		return err
	}
	if err := a.initEnrichment(); err != nil {
		return err
	}

	actions, err := a.initActions()
	if err != nil {
		return err
	}

	opts := []pipeline.Option{
		pipeline.WithCooldown(settings.Scanner.Cooldown),
		pipeline.WithActions(actions...),
		pipeline.WithMetrics(a.Metrics.Pipeline),
	}
	if a.Enrichment != nil {
		opts = append(opts, pipeline.WithLookuper(a.Enrichment))
	}
	a.Pipeline = pipeline.New(a.Store, opts...)

	if settings.WebServer.Enabled {
		a.API, err = api.New(api.ConfigFromSettings(settings), a.Store,
			api.WithMetrics(a.Metrics.HTTP),
			api.WithDetectionProcessor(a.Pipeline),
			api.WithVersion(a.info.GetVersion()))
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *App) initStore() error {
	store, err := datastore.New(a.settings, datastore.WithMetrics(a.Metrics.Datastore))
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	a.Store = store
	return nil
}

func (a *App) initEnrichment() error {
	if !a.settings.Enrichment.Enabled {
		return nil
	}
	client, err := enrichment.NewClient(enrichment.ConfigFromSettings(&a.settings.Enrichment),
		enrichment.WithMetrics(a.Metrics.Enrichment))
	if err != nil {
		return err
	}
	a.Enrichment = client
	return nil
}

func (a *App) initActions() ([]pipeline.Action, error) {
	actions := []pipeline.Action{pipeline.NewLogAction()}

	if a.settings.MQTT.Enabled {
		client, err := mqtt.NewClient(mqtt.ConfigFromSettings(a.settings), mqtt.WithMetrics(a.Metrics.MQTT))
		if err != nil {
			return nil, err
		}
		a.MQTT = client
		if a.settings.MQTT.ScanTopic != "" {
			actions = append(actions, &pipeline.MQTTPublishAction{Client: client, Topic: a.settings.MQTT.ScanTopic})
		}
	}

	if a.settings.Notification.Enabled {
		notifier, err := notification.NewNotifier(notification.ConfigFromSettings(a.settings),
			notification.WithMetrics(a.Metrics.Notification))
		if err != nil {
			return nil, err
		}
		a.Notifier = notifier
		actions = append(actions, &pipeline.NotifyFaultAction{Notifier: notifier})
	}

	return actions, nil
}

// Run starts the enabled services and blocks until ctx is done or one of
// them fails. It does not close the App.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.MQTT != nil {
		if err := a.MQTT.Connect(gctx); err != nil {
			return err
		}
		if topic := a.settings.MQTT.DetectionTopic; topic != "" {
			detections, err := mqtt.NewDetectionSource(a.MQTT, topic).Start(gctx)
			if err != nil {
				return err
			}
			results := a.Pipeline.Run(gctx, detections)
			g.Go(func() error {
				for res := range results {
					a.logResult(res)
				}
				return nil
			})
		}
	}

	if a.API != nil {
		g.Go(func() error { return a.API.Run(gctx) })
	}

	if a.settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(a.settings, a.Metrics)
		if err != nil {
			return err
		}
		var wg sync.WaitGroup
		quit := make(chan struct{})
		endpoint.Start(&wg, quit)
		g.Go(func() error {
			<-gctx.Done()
			close(quit)
			wg.Wait()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown requested")
		return nil
	})

	return g.Wait()
}

// logResult reports detections the actions do not cover.
func (a *App) logResult(res pipeline.Result) {
	switch res.Status {
	case pipeline.StatusRejected:
		a.logger.Warn("detection rejected",
			logger.String("symbology", string(res.Detection.Symbology)),
			logger.Error(res.Err))
	case pipeline.StatusSuppressed:
		a.logger.Debug("duplicate detection suppressed",
			logger.String("code_type", string(res.CodeType)))
	}
}

// Close drains the pipeline and releases every component. It is safe to call
// more than once; later calls return the first result.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.Pipeline != nil {
			if err := a.Pipeline.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if a.MQTT != nil {
			a.MQTT.Disconnect()
		}
		if a.Enrichment != nil {
			a.Enrichment.ClearCache()
		}
		if a.Store != nil {
			if err := a.Store.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeTelemetry()
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
