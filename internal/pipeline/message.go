package pipeline

import (
	"time"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/enrichment"
	"github.com/tphakala/codescan/internal/scanner"
)

// ScanMessage is the JSON form of a scan record used on MQTT and the REST API.
type ScanMessage struct {
	ID          string           `json:"id"`
	CodeValue   string           `json:"code_value"`
	CodeType    scanner.CodeType `json:"code_type"`
	ScanDate    time.Time        `json:"scan_date"`
	RawContent  string           `json:"raw_content"`
	CustomName  *string          `json:"custom_name"`
	DisplayName string           `json:"display_name"`
	IsLink      bool             `json:"is_link"`
	Product     *ProductMessage  `json:"product,omitempty"`

	// Set only for freshly emitted results.
	Created    *bool                  `json:"created,omitempty"`
	Enrichment enrichment.OutcomeKind `json:"enrichment,omitempty"`
}

// ProductMessage is the product part of a ScanMessage.
type ProductMessage struct {
	Name                  string `json:"name"`
	Brand                 string `json:"brand"`
	Ingredients           string `json:"ingredients"`
	NutriScore            string `json:"nutri_score"`
	NutriScoreGrade       string `json:"nutri_score_grade"`
	NutriScoreDescription string `json:"nutri_score_description"`
	NutriScoreColor       string `json:"nutri_score_color"`
}

// NewScanMessage renders rec for external consumers.
func NewScanMessage(rec *datastore.ScanRecord) ScanMessage {
	msg := ScanMessage{
		ID:          rec.ID,
		CodeValue:   rec.CodeValue,
		CodeType:    rec.CodeType,
		ScanDate:    rec.ScanDate,
		RawContent:  rec.RawContent,
		CustomName:  rec.CustomName,
		DisplayName: datastore.DisplayName(rec),
		IsLink:      rec.CodeType == scanner.CodeTypeQRCode && scanner.IsLink(rec.RawContent),
	}
	if p := rec.ProductInfo; p != nil {
		score := enrichment.ParseNutriScore(p.NutriScore)
		msg.Product = &ProductMessage{
			Name:                  p.ProductName,
			Brand:                 p.Brand,
			Ingredients:           p.Ingredients,
			NutriScore:            string(score),
			NutriScoreGrade:       score.Grade(),
			NutriScoreDescription: score.Description(),
			NutriScoreColor:       score.Color(),
		}
	}
	return msg
}

// NewResultMessage renders an emitted result, including whether it created the record.
func NewResultMessage(res *Result) ScanMessage {
	msg := NewScanMessage(res.Record)
	created := res.Created
	msg.Created = &created
	msg.Enrichment = res.Enrichment
	return msg
}
