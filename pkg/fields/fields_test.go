package fields

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/payload"
)

type fiscalYear struct{}

func (fiscalYear) Year() int { return 2024 }

func TestClassify(t *testing.T) {
	tests := []struct {
		in   any
		want payload.FieldType
	}{
		{12.0, payload.TypeNumber},
		{int64(3), payload.TypeNumber},
		{"2024-03-01 10:00:00", payload.TypeDate},
		{"2024-3-1", payload.TypeString},
		{time.Now(), payload.TypeDate},
		{fiscalYear{}, payload.TypeDate},
		{"Acme", payload.TypeString},
		{"12", payload.TypeString},
		{[]any{1.0, "Acme"}, payload.TypeString},
		{nil, payload.TypeString},
		{false, payload.TypeString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.in), "%#v", tt.in)
	}
}

func TestIsTechnical(t *testing.T) {
	assert.True(t, IsTechnical("id"))
	assert.True(t, IsTechnical("has_linked_data"))
	assert.True(t, IsTechnical("partner_info"))
	assert.False(t, IsTechnical("partner_id"))
	assert.False(t, IsTechnical("info_text"))
}

func TestInspectSkipsTechnicalAndKeepsOrder(t *testing.T) {
	p := payload.MustParse(`{"records":[
		{"id":1,"name":"Acme","amount":5,"create_date":"2024-01-01 08:00:00","partner_info":{},"has_linked_data":true}
	]}`)

	got := Inspect(p)
	want := []payload.FieldDescriptor{
		{Name: "name", Type: payload.TypeString, Label: "Name"},
		{Name: "amount", Type: payload.TypeNumber, Label: "Amount"},
		{Name: "create_date", Type: payload.TypeDate, Label: "Create Date"},
	}
	assert.Equal(t, want, got)
	assert.Equal(t, got, Inspect(p), "inspection must be idempotent")
}

func TestInspectMultiModelUsesFirstModelWithRecords(t *testing.T) {
	p := payload.MustParse(`{"multi_model":true,"results":[
		{"model":"res.users","records":[]},
		{"model":"sale.order","records":[{"state":"draft","amount_total":10}]}
	]}`)

	got := Inspect(p)
	require.Len(t, got, 2)
	assert.Equal(t, "state", got[0].Name)
	assert.Equal(t, "Amount Total", got[1].Label)
}

func TestInspectEmpty(t *testing.T) {
	assert.Nil(t, Inspect(payload.MustParse(`{"records":[]}`)))
}

func desc(pairs ...string) []payload.FieldDescriptor {
	var out []payload.FieldDescriptor
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, payload.FieldDescriptor{Name: pairs[i], Type: payload.FieldType(pairs[i+1])})
	}
	return out
}

func TestDefaults(t *testing.T) {
	tests := []struct {
		name   string
		fields []payload.FieldDescriptor
		want   Defaults
	}{
		{
			name:   "date dimension numeric measure two strings",
			fields: desc("region", "string", "date", "date", "qty", "number", "product", "string"),
			want:   Defaults{Dimension: "date", Measure: "qty", Series: "region"},
		},
		{
			name:   "string dimension skips itself for series",
			fields: desc("region", "string", "product", "string", "qty", "number"),
			want:   Defaults{Dimension: "region", Measure: "qty", Series: "product"},
		},
		{
			name:   "single string equal to dimension",
			fields: desc("region", "string", "qty", "number", "price", "number"),
			want:   Defaults{Dimension: "region", Measure: "qty", Series: "price"},
		},
		{
			name:   "no numeric measure",
			fields: desc("when", "date", "who", "string"),
			want:   Defaults{Dimension: "when", Measure: "who", Series: "who"},
		},
		{
			name:   "numbers only",
			fields: desc("a", "number", "b", "number"),
			want:   Defaults{Dimension: "a", Measure: "a", Series: "b"},
		},
		{
			name: "empty",
			want: Defaults{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultsFor(tt.fields))
		})
	}
}

func TestAggregationsFor(t *testing.T) {
	fields := desc("name", "string", "qty", "number")

	assert.Equal(t, aggregate.Kinds, AggregationsFor(fields, "qty"))
	assert.Equal(t, []aggregate.Kind{aggregate.None, aggregate.Count}, AggregationsFor(fields, "name"))
}

func TestResolveAggregationForcesCount(t *testing.T) {
	fields := desc("name", "string", "qty", "number")

	for _, k := range []aggregate.Kind{aggregate.Sum, aggregate.Average, aggregate.Min, aggregate.Max} {
		assert.Equal(t, aggregate.Count, ResolveAggregation(fields, "name", k))
		assert.Equal(t, k, ResolveAggregation(fields, "qty", k))
	}
	assert.Equal(t, aggregate.None, ResolveAggregation(fields, "name", aggregate.None))
}
