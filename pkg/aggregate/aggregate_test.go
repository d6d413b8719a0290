package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hdsoft/unisearch/pkg/payload"
)

func records(values ...any) []payload.Record {
	out := make([]payload.Record, len(values))
	for i, v := range values {
		out[i] = payload.NewRecord("v", v)
	}
	return out
}

func TestEmptySetIsZeroForEveryKind(t *testing.T) {
	for _, k := range append(Kinds, Kind("bogus")) {
		assert.Equal(t, 0.0, Aggregate(nil, "v", k), "kind %s", k)
	}
}

func TestCountIgnoresValues(t *testing.T) {
	recs := records(1, "x", nil, []any{}, map[string]any{})
	recs = append(recs, payload.NewRecord("other", 1))
	assert.Equal(t, 6.0, Aggregate(recs, "v", Count))
}

func TestUnknownKindFallsBackToCount(t *testing.T) {
	assert.Equal(t, 3.0, Aggregate(records(10, 20, 30), "v", Kind("median")))
}

func TestNumericKinds(t *testing.T) {
	recs := records(4.0, "6", "n/a", []any{2.0, "ignored"}, nil, "12.5kg")

	assert.Equal(t, 24.5, Aggregate(recs, "v", Sum))
	assert.Equal(t, 24.5/4, Aggregate(recs, "v", Average))
	assert.Equal(t, 2.0, Aggregate(recs, "v", Min))
	assert.Equal(t, 12.5, Aggregate(recs, "v", Max))
}

func TestAverageWithNothingParseable(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate(records("a", nil, "b"), "v", Average))
	assert.Equal(t, 0.0, Aggregate(records("a"), "v", Max))
}

func TestNoneUsesFirstRecord(t *testing.T) {
	assert.Equal(t, 7.0, Aggregate(records([]any{7.0, "Seven"}, 1), "v", None))
	assert.Equal(t, 0.0, Aggregate(records("text", 1), "v", None))
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{3.5, 3.5, true},
		{int64(4), 4, true},
		{json.Number("12"), 12, true},
		{"  -1.5e2 units", -150, true},
		{"12.5kg", 12.5, true},
		{".5", 0.5, true},
		{"kg12", 0, false},
		{"", 0, false},
		{[]any{"8", 1.0}, 8, true},
		{[]any{}, 0, false},
		{true, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToNumber(tt.in)
		assert.Equal(t, tt.ok, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("avg")
	assert.True(t, ok)
	assert.Equal(t, Average, k)

	k, ok = ParseKind("SUM")
	assert.True(t, ok)
	assert.Equal(t, Sum, k)

	k, ok = ParseKind("median")
	assert.False(t, ok)
	assert.Equal(t, Count, k)
}
