package main

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"

	"github.com/tphakala/codescan/internal/datastore"
	"github.com/tphakala/codescan/internal/errors"
)

// sampleSize is how many of the newest source records are compared field by field.
const sampleSize = 100

// Verifier checks a completed copy.
type Verifier struct {
	Source *gorm.DB
	Target *gorm.DB
}

// Verify checks that the target holds at least as many records as the source
// and that the newest source records exist in the target unchanged.
func (v *Verifier) Verify(ctx context.Context) error {
	var sourceCount, targetCount int64
	if err := v.Source.WithContext(ctx).Model(&datastore.ScanRecord{}).Count(&sourceCount).Error; err != nil {
		return migrationError(err, "verify_count_source")
	}
	if err := v.Target.WithContext(ctx).Model(&datastore.ScanRecord{}).Count(&targetCount).Error; err != nil {
		return migrationError(err, "verify_count_target")
	}
	if targetCount < sourceCount {
		return verifyError(fmt.Sprintf("target has %d records, source has %d", targetCount, sourceCount))
	}

	var sample []datastore.ScanRecord
	if err := v.Source.WithContext(ctx).
		Order("scan_date DESC, id DESC").
		Limit(sampleSize).
		Find(&sample).Error; err != nil {
		return migrationError(err, "verify_sample")
	}

	var problems []string
	for i := range sample {
		want := &sample[i]
		var got datastore.ScanRecord
		err := v.Target.WithContext(ctx).Where("id = ?", want.ID).Take(&got).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			problems = append(problems, want.ID+": missing")
		case err != nil:
			return migrationError(err, "verify_lookup")
		default:
			if diff := diffRecords(want, &got); diff != "" {
				problems = append(problems, want.ID+": "+diff)
			}
		}
	}

	if len(problems) > 0 {
		return verifyError(strings.Join(problems, "; "))
	}
	return nil
}

// diffRecords names the fields that differ. Scan dates compare as instants.
func diffRecords(want, got *datastore.ScanRecord) string {
	var fields []string
	if want.CodeValue != got.CodeValue {
		fields = append(fields, "code_value")
	}
	if want.CodeType != got.CodeType {
		fields = append(fields, "code_type")
	}
	if !want.ScanDate.Equal(got.ScanDate) {
		fields = append(fields, "scan_date")
	}
	if want.RawContent != got.RawContent {
		fields = append(fields, "raw_content")
	}
	if !reflect.DeepEqual(want.CustomName, got.CustomName) {
		fields = append(fields, "custom_name")
	}
	if !reflect.DeepEqual(want.ProductInfo, got.ProductInfo) {
		fields = append(fields, "product_info")
	}
	if len(fields) == 0 {
		return ""
	}
	return "differs in " + strings.Join(fields, ", ")
}

func verifyError(msg string) error {
	return errors.Newf("verification failed: %s", msg).
		Component("dbexport").
		Category(errors.CategoryValidation).
		Build()
}
