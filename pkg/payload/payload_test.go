package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsKeyOrder(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":1,"alpha":"a","mid":[3,"Acme"]}`), &r))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Keys())
	assert.Equal(t, 1.0, r.Value("zeta"))
	assert.Equal(t, []any{3.0, "Acme"}, r.Value("mid"))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"a","mid":[3,"Acme"]}`, string(out))
}

func TestParseRejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestPayloadRoundTripKeepsUnknownKeys(t *testing.T) {
	in := `{"records":[{"a":1}],"custom":{"nested":true},"count":1}`
	p := MustParse(in)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, []string{"records", "custom", "count"}, p.Keys())
}

func TestLenientMembers(t *testing.T) {
	p := MustParse(`{"records":"oops","multi_model":"yes","results":[1,{"model":"res.partner","records":[{"name":"x"}, 5]}]}`)

	assert.Empty(t, p.Records())
	assert.False(t, p.IsMultiModel())
	require.Len(t, p.Results(), 1)
	assert.Equal(t, "res.partner", p.Results()[0].Model)
	assert.Len(t, p.Results()[0].Records, 1)
}

func TestActiveRecordsMultiModel(t *testing.T) {
	p := MustParse(`{"multi_model":true,"results":[
		{"model":"a","records":[]},
		{"model":"b","records":[{"x":1},{"x":2}]}
	]}`)
	assert.Len(t, p.ActiveRecords(), 2)
}

func TestWithChartDefinitionDoesNotMutate(t *testing.T) {
	p := MustParse(`{"records":[{"a":1}]}`)
	def := ChartDefinition{
		DimensionField:  "a",
		MeasureField:    "a",
		AggregationType: "sum",
		FieldTypes:      map[string]FieldType{"a": TypeNumber},
	}

	withDef, err := p.WithChartDefinition(def)
	require.NoError(t, err)

	_, ok := p.ChartDefinition()
	assert.False(t, ok)
	got, ok := withDef.ChartDefinition()
	require.True(t, ok)
	assert.Equal(t, def.DimensionField, got.DimensionField)
	assert.Equal(t, NullString(""), got.SeriesField)

	raw, _ := withDef.Raw(KeyChartDefinition)
	assert.Contains(t, string(raw), `"seriesField":null`)
}

func TestGraph(t *testing.T) {
	p := MustParse(`{"labels":["a","b"],"datasets":[{"label":"n","data":[1,null],"backgroundColor":["red","blue"]}]}`)
	g, ok := p.Graph()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, g.Labels)
	assert.Equal(t, []float64{1, 0}, g.Datasets[0].Data)
	assert.Equal(t, "red", g.Datasets[0].BackgroundColor)
	assert.Equal(t, []string{"red", "blue"}, g.Datasets[0].BackgroundColors)
	assert.Equal(t, "blue", g.Datasets[0].PointColor(1))
	assert.Equal(t, "red", g.Datasets[0].PointColor(5))
}

func TestGraphStringifiesLabels(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`{"labels":[2023,2024],"datasets":[{"data":[3,4]}]}`, []string{"2023", "2024"}},
		{`{"labels":["a",false],"datasets":[{"data":[3,4]}]}`, []string{"a", "None"}},
		{`{"labels":[[7,"Acme"],null],"datasets":[{"data":[3,4]}]}`, []string{"Acme", "None"}},
	}
	for _, tt := range tests {
		g, ok := MustParse(tt.in).Graph()
		require.True(t, ok, tt.in)
		assert.Equal(t, tt.want, g.Labels, tt.in)
		assert.Equal(t, []float64{3, 4}, g.Datasets[0].Data, tt.in)
	}
}

func TestDatasetKeepsPointColors(t *testing.T) {
	var ds Dataset
	require.NoError(t, json.Unmarshal([]byte(`{"label":"n","data":[1,2],"backgroundColor":["red","blue"],"borderColor":"black","borderWidth":1}`), &ds))
	assert.Equal(t, "red", ds.BackgroundColor)

	out, err := json.Marshal(ds)
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"n","data":[1,2],"backgroundColor":["red","blue"],"borderColor":"black","borderWidth":1}`, string(out))

	single, err := json.Marshal(Dataset{Label: "s", Data: []float64{1}, BackgroundColor: "red"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"s","data":[1],"backgroundColor":"red","borderColor":"","borderWidth":0}`, string(single))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Partner Id", Label("partner_id"))
	assert.Equal(t, "Amount Total", Label("amount_total"))
}

func TestClassifyOrder(t *testing.T) {
	tests := []struct {
		name string
		in   string
		sel  Selection
		want []Shape
	}{
		{
			name: "unrecognized",
			in:   `{"foo":"bar"}`,
			want: nil,
		},
		{
			name: "pre-processed before multi-model",
			in:   `{"labels":["a"],"datasets":[],"multi_model":true,"results":[{"model":"m","records":[{"a":1}]}]}`,
			want: []Shape{PreProcessed, MultiModel},
		},
		{
			name: "embedded definition",
			in:   `{"records":[{"a":1}],"chartDefinition":{"dimensionField":"a","measureField":"a"}}`,
			want: []Shape{ChartDefinitionDriven, PlainRecords},
		},
		{
			name: "legacy config from selection",
			in:   `{"records":[{"a":1}]}`,
			sel:  Selection{Config: &ReportConfig{DimensionField: "a"}},
			want: []Shape{LegacySelection, PlainRecords},
		},
		{
			name: "aggregation",
			in:   `{"aggregation":true,"dimension":"d","measure":"m","records":[{"d":"x","m":1}]}`,
			want: []Shape{AggregationResult, PlainRecords},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(MustParse(tt.in), tt.sel))
		})
	}
}

func TestFavoriteTitle(t *testing.T) {
	assert.Equal(t, "q", Favorite{QueryText: "q"}.Title())
	assert.Equal(t, "named", Favorite{Name: "named", QueryText: "q"}.Title())
}

func TestSavedReportEffectiveConfig(t *testing.T) {
	stacked := SavedReport{
		VisualizationType: "bar",
		Data:              MustParse(`{"records":[],"chartDefinition":{"dimensionField":"region","measureField":"qty","aggregationType":"sum","seriesField":"product"}}`),
	}
	cfg := stacked.EffectiveConfig()
	assert.True(t, cfg.Stacked)
	assert.Equal(t, "product", cfg.SeriesField)
	assert.Equal(t, "region", cfg.DimensionField)
	assert.Equal(t, "qty", cfg.MeasureField)

	plain := SavedReport{Data: MustParse(`{"records":[],"chartDefinition":{"dimensionField":"region","measureField":"qty","aggregationType":"sum","seriesField":null}}`)}
	assert.False(t, plain.EffectiveConfig().Stacked)

	legacy := SavedReport{Data: MustParse(`{"records":[],"config":{"cumulated":true,"dimensionField":"day"}}`)}
	assert.Equal(t, ReportConfig{Cumulated: true, DimensionField: "day"}, legacy.EffectiveConfig())

	stored := SavedReport{Config: ReportConfig{Cumulated: true}, Data: MustParse(`{"records":[]}`)}
	assert.Equal(t, ReportConfig{Cumulated: true}, stored.EffectiveConfig())
}
