package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"sort"
	"time"

	"github.com/soaringjerry/cracks/internal/models"
	"github.com/soaringjerry/cracks/internal/utils"
)

// ExportRow is the decoded payload of one stored record.
type ExportRow struct {
	Signature string
	Payload   models.Payload
	UpdatedAt time.Time
}

// ExportRows decodes field of each record. Records without the field are
// skipped; a corrupt payload is exported as empty. Signatures are masked
// unless raw is set.
func ExportRows(records []*StoredRecord, field string, raw bool) []ExportRow {
	out := make([]ExportRow, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		blob, ok := rec.Fields[field]
		if !ok {
			continue
		}
		p, _ := DecodePriorPayload(blob)
		sig := rec.Signature
		if !raw {
			sig = utils.MaskSignature(sig)
		}
		out = append(out, ExportRow{Signature: sig, Payload: p, UpdatedAt: rec.UpdatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Signature < out[j].Signature })
	return out
}

// ExportLongCSV renders one line per answered key.
func ExportLongCSV(rows []ExportRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"signature", "key", "value_json", "updated_at"})
	for _, r := range rows {
		for _, k := range r.Payload.Keys() {
			b, err := json.Marshal(r.Payload[k])
			if err != nil {
				return nil, err
			}
			if err := w.Write([]string{r.Signature, k, string(b), formatTime(r.UpdatedAt)}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders one line per signature and one column per key seen
// in any payload. Strings are written as-is, other values as JSON.
func ExportWideCSV(rows []ExportRow) ([]byte, error) {
	keySet := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Payload {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"signature", "updated_at"}, keys...)
	_ = w.Write(header)
	for _, r := range rows {
		line := make([]string, 0, len(header))
		line = append(line, r.Signature, formatTime(r.UpdatedAt))
		for _, k := range keys {
			cell, err := cellText(r.Payload, k)
			if err != nil {
				return nil, err
			}
			line = append(line, cell)
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cellText(p models.Payload, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", nil
	}
	if s, ok := v.AsString(); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
