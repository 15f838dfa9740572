package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExtractUsesFieldPriorityOrder(t *testing.T) {
	unit := RecordUnit{
		Record: map[string]any{
			"label":     "fallback label",
			"name":      "Excel training",
			"amount":    100.0,
			"total_ttc": 35815.85,
			"date":      "2024-03-01",
		},
		Path: "invoices.json",
	}

	text, err := unit.Extract()
	require.NoError(t, err)
	assert.Contains(t, text, "Excel training")
	assert.Contains(t, text, "amount: 35815.85", "total_ttc outranks amount")
	assert.NotContains(t, text, "amount: 100")
	assert.Contains(t, text, "date: 2024-03-01")
}

func TestRecordExtractFlattensRemainingScalars(t *testing.T) {
	unit := RecordUnit{
		Record: map[string]any{
			"name":     "Client record",
			"city":     "Haguenau",
			"active":   true,
			"contacts": []any{"ignored", "nested"},
		},
	}

	text, err := unit.Extract()
	require.NoError(t, err)
	assert.Contains(t, text, "city: Haguenau")
	assert.Contains(t, text, "active: true")
	assert.NotContains(t, text, "nested")
}

func TestRecordExtractNoValueFound(t *testing.T) {
	unit := RecordUnit{
		Record: map[string]any{"payload": map[string]any{"deep": "value"}},
		Path:   "weird.json",
	}

	_, err := unit.Extract()
	require.Error(t, err, "a record with no accepted field is an explicit failure")
}

func TestRecordExtractIntegerAmountsStayClean(t *testing.T) {
	unit := RecordUnit{Record: map[string]any{"name": "Python training", "total": 19000.0}}

	text, err := unit.Extract()
	require.NoError(t, err)
	assert.Contains(t, text, "amount: 19000")
	assert.NotContains(t, text, "19000.00")
}
