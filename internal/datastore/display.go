package datastore

import "strings"

// DisplayName returns the name shown for a record: the custom name, then the
// product name, then a label derived from the code type.
func DisplayName(r *ScanRecord) string {
	if r == nil {
		return ""
	}
	if r.CustomName != nil && strings.TrimSpace(*r.CustomName) != "" {
		return *r.CustomName
	}
	if r.ProductInfo != nil && r.ProductInfo.ProductName != "" {
		return r.ProductInfo.ProductName
	}
	return r.CodeType.Label() + " code"
}
