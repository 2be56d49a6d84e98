package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/scanner"
)

// detectionBuffer is the capacity of the detection channel.
const detectionBuffer = 64

// DetectionSource turns messages on the detection topic into detections.
type DetectionSource struct {
	client Client
	topic  string
	now    func() time.Time
	logger logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewDetectionSource creates a source reading topic through client.
func NewDetectionSource(client Client, topic string) *DetectionSource {
	return &DetectionSource{
		client: client,
		topic:  topic,
		now:    time.Now,
		logger: logger.Global().Module("mqtt").Module("detections"),
	}
}

// Start subscribes to the detection topic and returns the detection stream.
// The channel is closed and the subscription removed when ctx is done.
// Payloads use the same formats as stdin ingest; invalid ones are logged and dropped.
func (s *DetectionSource) Start(ctx context.Context) (<-chan scanner.Detection, error) {
	out := make(chan scanner.Detection, detectionBuffer)

	handler := func(topic string, payload []byte) {
		det, err := scanner.ParseDetectionLine(string(payload), s.now())
		if err != nil {
			s.logger.Warn("dropping invalid detection message",
				logger.String("topic", topic),
				logger.Int("bytes", len(payload)),
				logger.Error(err))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		select {
		case out <- det:
		case <-ctx.Done():
		}
	}

	if err := s.client.Subscribe(ctx, s.topic, handler); err != nil {
		close(out)
		return nil, err
	}

	go func() {
		<-ctx.Done()

		s.mu.Lock()
		s.closed = true
		close(out)
		s.mu.Unlock()

		unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.Unsubscribe(unsubCtx, s.topic); err != nil {
			s.logger.Warn("failed to unsubscribe from detection topic", logger.Error(err))
		}
	}()

	return out, nil
}
