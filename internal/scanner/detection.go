package scanner

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tphakala/codescan/internal/errors"
)

// Detection is one decoded code as reported by the decoder boundary.
type Detection struct {
	Value      string    `json:"value"`
	Symbology  Symbology `json:"symbology"`
	ObservedAt time.Time `json:"observed_at"`
}

// Validate rejects detections that carry no value.
func (d Detection) Validate() error {
	if d.Value == "" {
		return errors.Newf("detection has an empty value").
			Component("scanner").
			Category(errors.CategoryValidation).
			Context("symbology", string(d.Symbology)).
			Build()
	}
	return nil
}

// Normalize trims surrounding whitespace from the value and maps the symbology
// onto its canonical tag. Every transport applies it, so the same code read
// over CSV, JSON or HTTP yields the same natural key.
func (d Detection) Normalize() Detection {
	d.Value = strings.TrimSpace(d.Value)
	d.Symbology = ParseSymbology(string(d.Symbology))
	return d
}

// ParseDetectionLine parses one line of decoder output. Two forms are accepted:
// a JSON object {"value","symbology","observed_at"} or "symbology,value" where
// the value may itself contain commas. A missing timestamp is set to now.
func ParseDetectionLine(line string, now time.Time) (Detection, error) {
	line = strings.TrimSpace(line)

	var det Detection
	if strings.HasPrefix(line, "{") {
		if err := json.Unmarshal([]byte(line), &det); err != nil {
			return Detection{}, errors.New(err).
				Component("scanner").
				Category(errors.CategoryFileParsing).
				Context("operation", "parse_detection_json").
				Build()
		}
	} else {
		tag, value, ok := strings.Cut(line, ",")
		if !ok {
			return Detection{}, errors.Newf("detection line must be \"symbology,value\" or JSON").
				Component("scanner").
				Category(errors.CategoryValidation).
				Context("operation", "parse_detection_line").
				Build()
		}
		det = Detection{Symbology: Symbology(tag), Value: value}
	}
	det = det.Normalize()

	if det.ObservedAt.IsZero() {
		det.ObservedAt = now
	}

	if err := det.Validate(); err != nil {
		return Detection{}, err
	}
	return det, nil
}
