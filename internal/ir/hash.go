package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainBatch is the domain prefix for batch fingerprints.
const DomainBatch = "tablegate/batch/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BatchHash computes a stable fingerprint of a submitted batch.
// Two batches with the same items, tables and values hash identically.
func BatchHash(items []TransactionItem) (string, error) {
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = map[string]any{
			"id":    item.ID,
			"seq":   item.Seq,
			"table": tableTree(item.Table),
		}
	}

	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("BatchHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}

// tableTree converts a Table into the generic tree MarshalCanonical accepts.
// Value content is rendered as text so decimals never become floats.
func tableTree(t Table) map[string]any {
	columns := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = map[string]any{
			"name":   c.Name,
			"type":   string(c.Type),
			"output": string(c.Output),
		}
	}

	rows := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		values := make([]any, len(r.Values))
		for j, v := range r.Values {
			if v == nil {
				values[j] = nil
				continue
			}
			var content any
			if !v.IsNull() {
				content = v.Text()
			}
			values[j] = map[string]any{
				"type":  string(v.Type()),
				"value": content,
				"rule":  v.Rule(),
			}
		}
		rows[i] = values
	}

	return map[string]any{
		"name":    t.Name,
		"columns": columns,
		"rows":    rows,
	}
}
