// Package scanner classifies decoded optical codes and gates repeated detections.
package scanner

import (
	"strings"

	"golang.org/x/text/cases"
)

// Symbology is a canonical decoder symbology tag such as "ean13" or "qr".
type Symbology string

// Canonical symbology tags.
const (
	SymbologyEAN8            Symbology = "ean8"
	SymbologyEAN13           Symbology = "ean13"
	SymbologyCode128         Symbology = "code128"
	SymbologyCode39          Symbology = "code39"
	SymbologyCode93          Symbology = "code93"
	SymbologyInterleaved2of5 Symbology = "interleaved2of5"
	SymbologyITF14           Symbology = "itf14"
	SymbologyPDF417          Symbology = "pdf417"
	SymbologyQR              Symbology = "qr"
	SymbologyAztec           Symbology = "aztec"
	SymbologyDataMatrix      Symbology = "datamatrix"
)

// CodeType is the coarse family a symbology belongs to.
type CodeType string

const (
	CodeTypeBarcode CodeType = "barcode"
	CodeTypeQRCode  CodeType = "qrcode"
	CodeTypeUnknown CodeType = "unknown"
)

var codeTypeLabels = map[CodeType]string{
	CodeTypeBarcode: "Barcode",
	CodeTypeQRCode:  "QR",
	CodeTypeUnknown: "Unknown",
}

// Label returns the human readable family name.
func (c CodeType) Label() string {
	if label, ok := codeTypeLabels[c]; ok {
		return label
	}
	return codeTypeLabels[CodeTypeUnknown]
}

// Valid reports whether c is one of the known code types.
func (c CodeType) Valid() bool {
	_, ok := codeTypeLabels[c]
	return ok
}

var families = map[Symbology]CodeType{
	SymbologyEAN8:            CodeTypeBarcode,
	SymbologyEAN13:           CodeTypeBarcode,
	SymbologyCode128:         CodeTypeBarcode,
	SymbologyCode39:          CodeTypeBarcode,
	SymbologyCode93:          CodeTypeBarcode,
	SymbologyInterleaved2of5: CodeTypeBarcode,
	SymbologyITF14:           CodeTypeBarcode,
	SymbologyPDF417:          CodeTypeBarcode,
	SymbologyQR:              CodeTypeQRCode,
	SymbologyAztec:           CodeTypeQRCode,
	SymbologyDataMatrix:      CodeTypeQRCode,
}

// Classify maps a symbology to its code type. Raw decoder tags such as
// "EAN-13" are normalized first; unrecognized tags are CodeTypeUnknown.
func Classify(s Symbology) CodeType {
	if t, ok := families[s]; ok {
		return t
	}
	if t, ok := families[ParseSymbology(string(s))]; ok {
		return t
	}
	return CodeTypeUnknown
}

// vendor namespaces used by platform decoders, matched after case folding
var vendorPrefixes = []string{"org.iso.", "org.gs1.", "org.ansi.", "com.intermec."}

// aliases maps compacted folded tags onto canonical symbologies
var aliases = map[string]Symbology{
	"ean8":            SymbologyEAN8,
	"ean13":           SymbologyEAN13,
	"code128":         SymbologyCode128,
	"code39":          SymbologyCode39,
	"code39mod43":     SymbologyCode39,
	"code93":          SymbologyCode93,
	"interleaved2of5": SymbologyInterleaved2of5,
	"i2of5":           SymbologyInterleaved2of5,
	"itf":             SymbologyInterleaved2of5,
	"itf14":           SymbologyITF14,
	"pdf417":          SymbologyPDF417,
	"qr":              SymbologyQR,
	"qrcode":          SymbologyQR,
	"aztec":           SymbologyAztec,
	"datamatrix":      SymbologyDataMatrix,
}

// ParseSymbology normalizes a decoder tag. "EAN-13", "org.iso.QRCode" and
// "DATA_MATRIX" all resolve to canonical tags; anything else is returned folded
// and compacted, which Classify treats as unknown.
func ParseSymbology(tag string) Symbology {
	// a Caser keeps state, so each call gets its own
	folded := cases.Fold().String(strings.TrimSpace(tag))
	for _, prefix := range vendorPrefixes {
		folded = strings.TrimPrefix(folded, prefix)
	}

	compact := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '.', ' ', '/':
			return -1
		}
		return r
	}, folded)

	if s, ok := aliases[compact]; ok {
		return s
	}
	return Symbology(compact)
}

// UnmarshalText lets decoder tags in JSON payloads normalize on decode.
func (s *Symbology) UnmarshalText(text []byte) error {
	*s = ParseSymbology(string(text))
	return nil
}
