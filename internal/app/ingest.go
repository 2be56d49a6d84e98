package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/tphakala/codescan/internal/errors"
	"github.com/tphakala/codescan/internal/logger"
	"github.com/tphakala/codescan/internal/pipeline"
	"github.com/tphakala/codescan/internal/scanner"
)

// maxLineBytes bounds one decoder line; longer lines are reported as invalid.
const maxLineBytes = 64 * 1024

// IngestResult is one JSON line written by Ingest.
type IngestResult struct {
	Line   int                   `json:"line,omitempty"`
	Status pipeline.Status       `json:"status"`
	Scan   *pipeline.ScanMessage `json:"scan,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// IngestStats summarizes an Ingest run.
type IngestStats struct {
	Lines      int
	Invalid    int
	Emitted    int
	Suppressed int
	Rejected   int
	Failed     int
}

// Ingest reads decoder lines from r, runs them through the pipeline and
// writes one IngestResult per line to w. Blank lines are skipped; unparsable
// lines are reported as rejected. A storage fault does not stop the run.
func (a *App) Ingest(ctx context.Context, r io.Reader, w io.Writer) (IngestStats, error) {
	if a.MQTT != nil {
		if err := a.MQTT.Connect(ctx); err != nil {
			a.logger.Warn("MQTT unavailable, scans will not be published", logger.Error(err))
		}
	}

	var stats IngestStats
	enc := json.NewEncoder(w)
	write := func(res IngestResult) error {
		if err := enc.Encode(res); err != nil {
			return errors.New(err).
				Component("app").
				Category(errors.CategoryFileIO).
				Context("operation", "write_ingest_result").
				Build()
		}
		return nil
	}

	detections := make(chan scanner.Detection)
	readErr := make(chan error, 1)
	lineErrs := make(chan IngestResult, 1)

	go func() {
		defer close(detections)
		readErr <- a.readLines(ctx, r, detections, lineErrs, &stats)
	}()

	results := a.Pipeline.Run(ctx, detections)
	var writeErr error
	for results != nil || lineErrs != nil {
		select {
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			stats.count(res.Status)
			if writeErr == nil {
				writeErr = write(resultLine(res))
			}
		case bad, ok := <-lineErrs:
			if !ok {
				lineErrs = nil
				continue
			}
			if writeErr == nil {
				writeErr = write(bad)
			}
		}
	}

	if err := <-readErr; err != nil {
		return stats, err
	}
	return stats, writeErr
}

// readLines parses r into detections. Invalid lines go to bad, which is
// closed on return.
func (a *App) readLines(ctx context.Context, r io.Reader, out chan<- scanner.Detection, bad chan<- IngestResult, stats *IngestStats) error {
	defer close(bad)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		det, err := scanner.ParseDetectionLine(line, time.Now())
		if err != nil {
			stats.Invalid++
			select {
			case bad <- IngestResult{Line: lineNo, Status: pipeline.StatusRejected, Error: err.Error()}:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		select {
		case out <- det:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := sc.Err(); err != nil {
		return errors.New(err).
			Component("app").
			Category(errors.CategoryFileIO).
			Context("operation", "read_detections").
			Context("line", lineNo+1).
			Build()
	}
	return nil
}

func resultLine(res pipeline.Result) IngestResult {
	out := IngestResult{Status: res.Status}
	if res.Status == pipeline.StatusEmitted && res.Record != nil {
		msg := pipeline.NewResultMessage(&res)
		out.Scan = &msg
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func (s *IngestStats) count(status pipeline.Status) {
	switch status {
	case pipeline.StatusEmitted:
		s.Emitted++
	case pipeline.StatusSuppressed:
		s.Suppressed++
	case pipeline.StatusRejected:
		s.Rejected++
	case pipeline.StatusFailed:
		s.Failed++
	}
}
