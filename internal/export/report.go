// Package export writes batch error reports and table exports.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/leaddesk/internal/dispatch"
)

// ReportFilename is the download name of an error report.
const ReportFilename = "errors.json"

// ErrEmptyReport is returned when encoding a report with no errors. A clean
// batch produces no file.
var ErrEmptyReport = errors.New("no errors to report")

// EncodeReport renders the error list as pretty-printed JSON with two-space
// indentation, in list order. The same list always encodes to the same bytes.
func EncodeReport(errs []dispatch.ItemError) ([]byte, error) {
	if len(errs) == 0 {
		return nil, ErrEmptyReport
	}
	b, err := json.MarshalIndent(errs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode error report: %w", err)
	}
	return b, nil
}

// ObjectKey is where a batch's report is archived.
func ObjectKey(jobID string) string {
	return "batches/" + jobID + "/" + ReportFilename
}

// Archive stores finished reports outside the process.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Reporter encodes a batch's errors and, when an archive is configured,
// stores a copy under ObjectKey.
type Reporter struct {
	archive Archive
}

// NewReporter creates a reporter. archive may be nil.
func NewReporter(archive Archive) *Reporter {
	return &Reporter{archive: archive}
}

// Report encodes errs and archives them. The encoded bytes are returned
// even when archiving fails.
func (r *Reporter) Report(ctx context.Context, jobID string, errs []dispatch.ItemError) ([]byte, error) {
	b, err := EncodeReport(errs)
	if err != nil {
		return nil, err
	}
	if r.archive == nil {
		return b, nil
	}
	if err := r.archive.Put(ctx, ObjectKey(jobID), b, "application/json"); err != nil {
		return b, fmt.Errorf("archive error report: %w", err)
	}
	return b, nil
}
