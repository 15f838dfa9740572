package ingest

import (
	"fmt"
	"sort"
	"strings"
)

// Accepted upstream field names, in priority order. Upstream systems disagree
// on naming; this is the single canonical mapping onto the fixed point shape.
var (
	labelFields  = []string{"name", "label", "title", "designation"}
	amountFields = []string{"total_ttc", "amount_ttc", "total", "amount", "montant"}
	dateFields   = []string{"date", "invoice_date", "created_at", "updated_at"}
)

// RecordUnit is one loosely-typed upstream record (accounting entry, form
// section, CRM row). Normalization happens once, here, at the pipeline
// boundary.
type RecordUnit struct {
	Record map[string]any
	Path   string
	Pos    int
}

func (u RecordUnit) Ref() string    { return fmt.Sprintf("%s#%d", u.Path, u.Pos) }
func (u RecordUnit) Source() string { return "records" }
func (u RecordUnit) Kind() string   { return "record" }

// Extract renders the record as a single retrievable passage. A record with
// no recognizable label, amount, date or other scalar content is an explicit
// extraction failure, never a silent empty passage.
func (u RecordUnit) Extract() (string, error) {
	var parts []string
	used := map[string]bool{}
	for _, group := range [][]string{labelFields, amountFields, dateFields} {
		for _, field := range group {
			used[field] = true
		}
	}

	if label, ok := firstScalar(u.Record, labelFields); ok {
		parts = append(parts, label)
	}
	if amount, ok := firstScalar(u.Record, amountFields); ok {
		parts = append(parts, fmt.Sprintf("amount: %s", amount))
	}
	if date, ok := firstScalar(u.Record, dateFields); ok {
		parts = append(parts, fmt.Sprintf("date: %s", date))
	}

	// Remaining scalar fields, sorted for deterministic output.
	rest := make([]string, 0, len(u.Record))
	for k := range u.Record {
		if used[k] {
			continue
		}
		if v, ok := scalarString(u.Record[k]); ok && v != "" {
			rest = append(rest, fmt.Sprintf("%s: %s", k, v))
		}
	}
	sort.Strings(rest)
	parts = append(parts, rest...)

	if len(parts) == 0 {
		return "", fmt.Errorf("record %s: no extractable value in any accepted field", u.Ref())
	}
	return strings.Join(parts, ". "), nil
}

// firstScalar returns the value of the first candidate field present with a
// non-empty scalar value.
func firstScalar(record map[string]any, candidates []string) (string, bool) {
	for _, field := range candidates {
		if raw, ok := record[field]; ok {
			if v, ok := scalarString(raw); ok && v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		// JSON numbers; keep integers clean.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprintf("%.2f", t), true
	case bool:
		return fmt.Sprintf("%t", t), true
	default:
		return "", false
	}
}
