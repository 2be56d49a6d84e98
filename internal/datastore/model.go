package datastore

import (
	"time"

	"github.com/tphakala/codescan/internal/scanner"
)

// MaxCodeValueLength is the longest code value that fits the unique index on
// both backends (MySQL utf8mb4 index keys are limited to 3072 bytes).
const MaxCodeValueLength = 768

// ScanRecord is one stored code. CodeValue is unique; ID, CodeType, ScanDate
// and ProductInfo never change after creation.
type ScanRecord struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	CodeValue   string           `gorm:"size:768;not null;uniqueIndex:idx_scan_records_code_value" json:"code_value"`
	CodeType    scanner.CodeType `gorm:"size:16;not null" json:"code_type"`
	ScanDate    time.Time        `gorm:"not null;index:idx_scan_records_scan_date" json:"scan_date"`
	RawContent  string           `gorm:"type:text" json:"raw_content"`
	CustomName  *string          `gorm:"size:255" json:"custom_name,omitempty"`
	ProductInfo *ProductInfo     `gorm:"serializer:json;type:text" json:"product_info,omitempty"`
}

// TableName pins the table name so it does not follow struct renames.
func (ScanRecord) TableName() string {
	return "scan_records"
}

// ProductInfo is the product data captured when the record was created.
type ProductInfo struct {
	ProductName string `json:"product_name"`
	Brand       string `json:"brand"`
	Ingredients string `json:"ingredients"`
	NutriScore  string `json:"nutri_score"`
}

// UpsertRequest describes a detection to store. ProductInfo is only used when
// the record is created.
type UpsertRequest struct {
	CodeValue   string
	CodeType    scanner.CodeType
	RawContent  string
	ProductInfo *ProductInfo
}
