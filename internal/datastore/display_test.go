package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/codescan/internal/scanner"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()

	name := func(s string) *string { return &s }

	tests := []struct {
		name   string
		record *ScanRecord
		want   string
	}{
		{"nil record", nil, ""},
		{"custom name wins", &ScanRecord{CustomName: name("Pantry"), ProductInfo: &ProductInfo{ProductName: "Nutella"}, CodeType: scanner.CodeTypeBarcode}, "Pantry"},
		{"product name", &ScanRecord{ProductInfo: &ProductInfo{ProductName: "Nutella"}, CodeType: scanner.CodeTypeBarcode}, "Nutella"},
		{"blank custom name falls through", &ScanRecord{CustomName: name("  "), ProductInfo: &ProductInfo{ProductName: "Nutella"}}, "Nutella"},
		{"empty product name falls through", &ScanRecord{ProductInfo: &ProductInfo{}, CodeType: scanner.CodeTypeBarcode}, "Barcode code"},
		{"barcode", &ScanRecord{CodeType: scanner.CodeTypeBarcode}, "Barcode code"},
		{"qr", &ScanRecord{CodeType: scanner.CodeTypeQRCode}, "QR code"},
		{"unknown", &ScanRecord{CodeType: scanner.CodeTypeUnknown}, "Unknown code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DisplayName(tt.record))
		})
	}
}
