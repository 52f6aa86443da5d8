package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tealeg/xlsx"

	"github.com/JonMunkholm/leaddesk/internal/dispatch"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

func TestEncodeReport(t *testing.T) {
	errs := []dispatch.ItemError{
		{ID: "9000000002", Error: "send failed with status 400: bad"},
		{ID: "9000000005", Error: "recipient number is empty"},
	}

	b, err := EncodeReport(errs)
	if err != nil {
		t.Fatalf("EncodeReport() error = %v", err)
	}
	want := `[
  {
    "id": "9000000002",
    "error": "send failed with status 400: bad"
  },
  {
    "id": "9000000005",
    "error": "recipient number is empty"
  }
]`
	if string(b) != want {
		t.Errorf("EncodeReport() =\n%s\nwant\n%s", b, want)
	}
}

func TestEncodeReport_Idempotent(t *testing.T) {
	run := func() []dispatch.ItemError {
		return []dispatch.ItemError{
			{ID: "B", Error: "boom", Status: 400, Detail: []byte(`{"error":{"code":100}}`)},
		}
	}
	a, err := EncodeReport(run())
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeReport(run())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("reports differ:\n%s\n%s", a, b)
	}
}

func TestEncodeReport_Empty(t *testing.T) {
	if _, err := EncodeReport(nil); !errors.Is(err, ErrEmptyReport) {
		t.Errorf("EncodeReport(nil) error = %v, want ErrEmptyReport", err)
	}
}

type memArchive struct {
	objects map[string][]byte
	err     error
}

func (m *memArchive) Put(_ context.Context, key string, data []byte, _ string) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func TestReporter_Archives(t *testing.T) {
	arc := &memArchive{}
	r := NewReporter(arc)
	errs := []dispatch.ItemError{{ID: "A", Error: "x"}}

	b, err := r.Report(context.Background(), "job-1", errs)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	stored, ok := arc.objects["batches/job-1/errors.json"]
	if !ok {
		t.Fatalf("archive keys = %v, want batches/job-1/errors.json", arc.objects)
	}
	if !bytes.Equal(stored, b) {
		t.Error("archived bytes differ from returned report")
	}
}

func TestReporter_ArchiveFailureStillReturnsReport(t *testing.T) {
	r := NewReporter(&memArchive{err: errors.New("unreachable")})
	b, err := r.Report(context.Background(), "job-2", []dispatch.ItemError{{ID: "A", Error: "x"}})
	if err == nil {
		t.Error("Report() error = nil, want archive error")
	}
	if len(b) == 0 {
		t.Error("Report() returned no bytes")
	}
}

func TestReporter_NoArchive(t *testing.T) {
	r := NewReporter(nil)
	if _, err := r.Report(context.Background(), "job-3", []dispatch.ItemError{{ID: "A", Error: "x"}}); err != nil {
		t.Errorf("Report() error = %v", err)
	}
}

func TestNewObjectStore_RequiresEndpoint(t *testing.T) {
	_, err := NewObjectStore(context.Background(), ObjectStoreConfig{})
	if err == nil || !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("NewObjectStore() error = %v, want endpoint error", err)
	}
}

func TestWriteXLSX(t *testing.T) {
	cols := []table.Column{
		{Key: "name", Label: "Name", Kind: table.KindText},
		{Key: "seats", Label: "Seats", Kind: table.KindNumber},
	}
	rows := []table.Record{
		table.NewRecord("4", map[string]string{"name": "Asha", "seats": "1,200"}),
		table.NewRecord("6", map[string]string{"name": "Ravi", "seats": "tbd"}),
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, "Leads", cols, rows); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := xlsx.OpenBinary(buf.Bytes())
	if err != nil {
		t.Fatalf("OpenBinary() error = %v", err)
	}
	if len(f.Sheets) != 1 || f.Sheets[0].Name != "Leads" {
		t.Fatalf("sheets = %d", len(f.Sheets))
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(sheet.Rows))
	}
	if got := sheet.Rows[0].Cells[1].Value; got != "Seats" {
		t.Errorf("header = %q, want Seats", got)
	}
	if got, err := sheet.Rows[1].Cells[1].Float(); err != nil || got != 1200 {
		t.Errorf("numeric cell = %v, %v, want 1200", got, err)
	}
	if got := sheet.Rows[2].Cells[1].Value; got != "tbd" {
		t.Errorf("text cell = %q, want tbd", got)
	}
}
