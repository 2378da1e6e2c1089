package services

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(b)))
	return r.ReadAll()
}

func exportFixture() []*StoredRecord {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []*StoredRecord{
		{Signature: "zzzz-1111-2222-yyyy", Fields: map[string]string{"nucleation_01": `{"q1":"ice","n":2}`}, UpdatedAt: at},
		{Signature: "abc1-7f3e-44d0-z9kk", Fields: map[string]string{"nucleation_01": `{"q1":"snow","tags":["a"]}`}, UpdatedAt: at},
		{Signature: "other-field-only-x", Fields: map[string]string{"remote_05": `{"q":"x"}`}},
		{Signature: "corrupt-0000-0000-c", Fields: map[string]string{"nucleation_01": `not json`}},
	}
}

func TestExportRowsMasksAndSkips(t *testing.T) {
	rows := ExportRows(exportFixture(), "nucleation_01", false)
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	if rows[0].Signature != "abc1***z9kk" {
		t.Fatalf("expected masked signature first, got %q", rows[0].Signature)
	}
	raw := ExportRows(exportFixture(), "nucleation_01", true)
	if raw[0].Signature != "abc1-7f3e-44d0-z9kk" {
		t.Fatalf("expected raw signature, got %q", raw[0].Signature)
	}
}

func TestExportLongCSV(t *testing.T) {
	rows := ExportRows(exportFixture(), "nucleation_01", true)
	b, err := ExportLongCSV(rows)
	if err != nil {
		t.Fatalf("export long: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if got := strings.Join(recs[0], ","); got != "signature,key,value_json,updated_at" {
		t.Fatalf("bad header: %s", got)
	}
	// abc1: q1, tags; zzzz: n, q1; corrupt contributes nothing
	if len(recs) != 5 {
		t.Fatalf("want 5 lines, got %d: %v", len(recs), recs)
	}
	if recs[1][1] != "q1" || recs[1][2] != `"snow"` || recs[1][3] != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected first row: %v", recs[1])
	}
}

func TestExportWideCSV(t *testing.T) {
	rows := ExportRows(exportFixture(), "nucleation_01", true)
	b, err := ExportWideCSV(rows)
	if err != nil {
		t.Fatalf("export wide: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if strings.Join(recs[0], ",") != "signature,updated_at,n,q1,tags" {
		t.Fatalf("header mismatch: %v", recs[0])
	}
	if len(recs) != 4 {
		t.Fatalf("rows mismatch: %d", len(recs))
	}
	want := []string{"abc1-7f3e-44d0-z9kk", "2024-01-02T03:04:05Z", "", "snow", `["a"]`}
	if strings.Join(recs[1], "|") != strings.Join(want, "|") {
		t.Fatalf("got %v want %v", recs[1], want)
	}
}
