package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// LegacySnapshot is a dump of the hosted response tables: collection name to
// rows, each row holding "signature" plus one column per response field.
type LegacySnapshot struct {
	Collections map[string][]*Record
}

// Count returns the number of records across all collections.
func (s *LegacySnapshot) Count() int {
	n := 0
	for _, recs := range s.Collections {
		n += len(recs)
	}
	return n
}

var legacyMetaColumns = map[string]bool{"id": true, "created_at": true, "updated_at": true, "signature": true}

// LoadLegacySnapshot reads a dump written as
// {"collection": [{"signature": "...", "<field>": "<json>"}]}.
// A missing file returns an error wrapping os.ErrNotExist.
func LoadLegacySnapshot(path string) (*LegacySnapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLegacySnapshot(b)
}

func ParseLegacySnapshot(b []byte) (*LegacySnapshot, error) {
	var raw map[string][]map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	snap := &LegacySnapshot{Collections: map[string][]*Record{}}
	for collection, rows := range raw {
		for i, row := range rows {
			var sig string
			if err := json.Unmarshal(row["signature"], &sig); err != nil || sig == "" {
				return nil, fmt.Errorf("%s[%d]: signature required", collection, i)
			}
			rec := &Record{Collection: collection, Signature: sig, Fields: map[string]string{}}
			if v, ok := row["updated_at"]; ok {
				var ts string
				if json.Unmarshal(v, &ts) == nil {
					rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
				}
			}
			for col, v := range row {
				if legacyMetaColumns[col] {
					continue
				}
				v = bytes.TrimSpace(v)
				if len(v) == 0 || bytes.Equal(v, []byte("null")) {
					continue
				}
				// columns hold serialized JSON text; raw objects are kept as-is
				var text string
				if json.Unmarshal(v, &text) == nil {
					rec.Fields[col] = text
				} else {
					rec.Fields[col] = string(v)
				}
			}
			if len(rec.Fields) == 0 {
				continue // a signature with no answers has nothing to import
			}
			snap.Collections[collection] = append(snap.Collections[collection], rec)
		}
	}
	return snap, nil
}

// ImportSnapshot upserts every record of snap into dst and returns how many
// were written.
func ImportSnapshot(ctx context.Context, snap *LegacySnapshot, dst Store) (int, error) {
	names := make([]string, 0, len(snap.Collections))
	for name := range snap.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	n := 0
	for _, name := range names {
		for _, rec := range snap.Collections[name] {
			if err := dst.Upsert(ctx, rec); err != nil {
				return n, fmt.Errorf("import %s/%s: %w", name, rec.Signature, err)
			}
			n++
		}
	}
	return n, nil
}
