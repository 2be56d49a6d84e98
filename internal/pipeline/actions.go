package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
)

// Action runs after a detection was emitted or failed to store.
type Action interface {
	Execute(ctx context.Context, res Result) error
	GetDescription() string
}

// LogAction logs every emitted record and storage fault.
type LogAction struct {
	Logger logger.Logger
}

// NewLogAction creates a LogAction writing to the "pipeline.scans" module.
func NewLogAction() *LogAction {
	return &LogAction{Logger: logger.Global().Module("pipeline").Module("scans")}
}

func (a *LogAction) GetDescription() string { return "log" }

func (a *LogAction) Execute(_ context.Context, res Result) error {
	if res.Err != nil {
		a.Logger.Error("scan not stored",
			logger.String("code_type", string(res.CodeType)),
			logger.Error(res.Err))
		return nil
	}
	if res.Status != StatusEmitted || res.Record == nil {
		return nil
	}

	a.Logger.Info("scan emitted",
		logger.String("id", res.Record.ID),
		logger.String("display_name", datastore.DisplayName(res.Record)),
		logger.String("code_type", string(res.CodeType)),
		logger.Bool("created", res.Created),
		logger.String("enrichment", string(res.Enrichment)))
	return nil
}

// Publisher is the MQTT client surface MQTTPublishAction needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
}

// MQTTPublishAction publishes emitted records as JSON.
type MQTTPublishAction struct {
	Client Publisher
	Topic  string
}

func (a *MQTTPublishAction) GetDescription() string { return "mqtt_publish" }

func (a *MQTTPublishAction) Execute(ctx context.Context, res Result) error {
	if res.Status != StatusEmitted || res.Record == nil {
		return nil
	}

	if a.Topic == "" {
		return errors.Newf("MQTT scan topic is not specified").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Context("operation", "mqtt_publish").
			Context("config_section", "mqtt.scan_topic").
			Build()
	}

	// Rely on the client's background reconnect rather than blocking the scan.
	if !a.Client.IsConnected() {
		return errors.Newf("MQTT client not connected").
			Component("pipeline").
			Category(errors.CategoryMQTTConnection).
			Context("operation", "mqtt_publish").
			Context("retryable", true).
			Build()
	}

	payload, err := json.Marshal(NewResultMessage(&res))
	if err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryProcessing).
			Context("operation", "marshal_scan").
			Build()
	}

	if err := a.Client.Publish(ctx, a.Topic, payload); err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "mqtt_publish").
			Context("topic", a.Topic).
			Build()
	}
	return nil
}

// Notifier sends operator alerts.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// NotifyFaultAction alerts operators when a scan could not be stored.
// Cancelled writes are not faults and send nothing.
type NotifyFaultAction struct {
	Notifier Notifier
}

func (a *NotifyFaultAction) GetDescription() string { return "notify_fault" }

func (a *NotifyFaultAction) Execute(ctx context.Context, res Result) error {
	if res.Status != StatusFailed || res.Err == nil {
		return nil
	}
	if errors.IsCategory(res.Err, errors.CategoryCancellation) {
		return nil
	}

	title := "codescan: scan not stored"
	message := fmt.Sprintf("A %s scan could not be saved: %v", res.CodeType.Label(), res.Err)
	return a.Notifier.Send(ctx, title, message)
}
