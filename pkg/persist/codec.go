package persist

import (
	"encoding/json"
	"fmt"
)

// EncodeRecord serializes a snapshot with its meta for byte oriented
// backends.
func EncodeRecord(snapshot Snapshot, meta Meta) ([]byte, error) {
	raw, err := json.Marshal(record{Snapshot: snapshot, Meta: meta})
	if err != nil {
		return nil, fmt.Errorf("persist: encode record: %w", err)
	}
	return raw, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(raw []byte) (Snapshot, Meta, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, Meta{}, fmt.Errorf("persist: decode record: %w", err)
	}
	return rec.Snapshot, rec.Meta, nil
}
