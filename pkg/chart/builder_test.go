package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdsoft/unisearch/pkg/payload"
)

type recorder struct {
	events []Event
}

func (r *recorder) observe(e Event) { r.events = append(r.events, e) }

func TestScenarioDefinitionSum(t *testing.T) {
	p := payload.MustParse(`{"records":[
		{"date":"2024-01-01","amount":5},
		{"date":"2024-01-01","amount":3},
		{"date":"2024-01-02","amount":2}
	]}`)

	got := Build(p, WithDefinition(payload.ChartDefinition{
		DimensionField:  "date",
		MeasureField:    "amount",
		AggregationType: "sum",
	}))

	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, got.Labels)
	require.Len(t, got.Datasets, 1)
	assert.Equal(t, []float64{8, 2}, got.Datasets[0].Data)
	assert.Equal(t, "Sum of Amount", got.Datasets[0].Label)
	assert.Equal(t, "rgba(54, 162, 235, 0.6)", got.Datasets[0].BackgroundColor)
	assert.Equal(t, "rgba(54, 162, 235, 1)", got.Datasets[0].BorderColor)
	assert.Equal(t, 1, got.Datasets[0].BorderWidth)
}

func TestScenarioStackedCrossProduct(t *testing.T) {
	p := payload.MustParse(`{"records":[
		{"region":"A","product":"X","qty":1},
		{"region":"A","product":"X","qty":1},
		{"region":"A","product":"Y","qty":1},
		{"region":"B","product":"X","qty":1}
	]}`)

	got := Build(p,
		WithVisualization(Bar),
		WithConfig(payload.ReportConfig{Stacked: true}),
		WithDefinition(payload.ChartDefinition{
			DimensionField:  "region",
			MeasureField:    "qty",
			SeriesField:     "product",
			AggregationType: "count",
		}),
	)

	assert.Equal(t, []string{"A", "B"}, got.Labels)
	require.Len(t, got.Datasets, 2)
	assert.Equal(t, "X", got.Datasets[0].Label)
	assert.Equal(t, []float64{2, 1}, got.Datasets[0].Data)
	assert.Equal(t, "Y", got.Datasets[1].Label)
	assert.Equal(t, []float64{1, 0}, got.Datasets[1].Data)
	assert.NotEqual(t, got.Datasets[0].BackgroundColor, got.Datasets[1].BackgroundColor)
}

func TestStackedOnlyForBar(t *testing.T) {
	p := payload.MustParse(`{"records":[{"region":"A","product":"X","qty":1},{"region":"A","product":"Y","qty":2}]}`)
	def := payload.ChartDefinition{DimensionField: "region", MeasureField: "qty", SeriesField: "product", AggregationType: "sum"}

	got := Build(p, WithVisualization(Line), WithConfig(payload.ReportConfig{Stacked: true}), WithDefinition(def))
	require.Len(t, got.Datasets, 1)
	assert.Equal(t, []float64{3}, got.Datasets[0].Data)
}

func TestScenarioMultiModelDateBuckets(t *testing.T) {
	p := payload.MustParse(`{"multi_model":true,"total_count":4,"results":[
		{"model":"res.partner","records":[{"name":"a"}]},
		{"model":"res.users.log","records":[
			{"id":1,"create_date":"2024-01-03 09:00:00"},
			{"id":2,"create_date":"2024-01-01 10:00:00"},
			{"id":3,"create_date":"2024-01-03 23:59:59"},
			{"id":4,"create_date":"2024-01-01T08:00:00"}
		]}
	]}`)

	got := Build(p)
	assert.Equal(t, []string{"2024-01-01", "2024-01-03"}, got.Labels)
	require.Len(t, got.Datasets, 1)
	assert.Equal(t, []float64{2, 2}, got.Datasets[0].Data)
	assert.Equal(t, "User Login Count", got.Datasets[0].Label)
}

func TestMultiModelPrefersDateAggregation(t *testing.T) {
	p := payload.MustParse(`{"multi_model":true,"results":[
		{"model":"sale.order","records":[{"date_order":"2024-02-01"},{"date_order":"2024-02-02"}]},
		{"model":"crm.lead","records":[],"_dateAggregation":{"dates":["2024-01-01","2024-01-02"],"counts":[4,7]}}
	]}`)

	got := Build(p)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, got.Labels)
	assert.Equal(t, []float64{4, 7}, got.Datasets[0].Data)
	assert.Equal(t, "crm.lead Count", got.Datasets[0].Label)
}

func TestMultiModelTieFirstListedWins(t *testing.T) {
	p := payload.MustParse(`{"multi_model":true,"results":[
		{"model":"first","records":[{"state":"draft"},{"state":"done"}]},
		{"model":"second","records":[{"state":"x"},{"state":"y"}]}
	]}`)

	got := Build(p)
	assert.Equal(t, []string{"draft", "done"}, got.Labels)
	assert.Equal(t, "first Count", got.Datasets[0].Label)
}

func TestScenarioUnrecognizedFallsBackToSample(t *testing.T) {
	rec := &recorder{}
	got := Build(payload.MustParse(`{"foo":"bar"}`), WithObserver(rec.observe))

	assert.Equal(t, SampleData(), got)
	assert.Equal(t, []string{"Sample A", "Sample B", "Sample C", "Sample D", "Sample E"}, got.Labels)
	assert.Equal(t, []float64{30, 20, 25, 15, 10}, got.Datasets[0].Data)
	require.Len(t, rec.events, 1)
	assert.Equal(t, EventSampleFallback, rec.events[0].Kind)
	assert.Equal(t, "unrecognized payload shape", rec.events[0].Reason)
}

func TestScenarioAggregationLabelFromDescriptions(t *testing.T) {
	p := payload.MustParse(`{"aggregation":true,"dimension":"month","measure":"total",
		"field_descriptions":{"month":"Month Label"},
		"records":[{"month":"January","total":10},{"month":"February","total":"12.5"}]}`)

	got := Build(p)
	assert.Equal(t, []string{"January", "February"}, got.Labels)
	assert.Equal(t, "Month Label", got.Datasets[0].Label)
	assert.Equal(t, []float64{10, 12.5}, got.Datasets[0].Data)
}

func TestPassThroughBeatsMultiModel(t *testing.T) {
	p := payload.MustParse(`{
		"labels":["x","y"],
		"datasets":[{"label":"given","data":[1,2],"backgroundColor":"red","borderColor":"red","borderWidth":2}],
		"multi_model":true,
		"results":[{"model":"m","records":[{"name":"a"}]}]
	}`)

	got := Build(p)
	assert.Equal(t, []string{"x", "y"}, got.Labels)
	assert.Equal(t, "given", got.Datasets[0].Label)
	assert.Equal(t, "red", got.Datasets[0].BackgroundColor)
	assert.Equal(t, 2, got.Datasets[0].BorderWidth)
}

func TestPassThroughWithNonStringLabels(t *testing.T) {
	var events []Event
	observe := WithObserver(func(e Event) { events = append(events, e) })

	got := Build(payload.MustParse(`{"labels":["Acme",false],"datasets":[{"data":[3,4]}]}`), observe)
	assert.Equal(t, []string{"Acme", "None"}, got.Labels)
	assert.Equal(t, []float64{3, 4}, got.Datasets[0].Data)

	got = Build(payload.MustParse(`{"labels":[2023,2024],"datasets":[{"label":"Orders","data":[5,6],"backgroundColor":["#ff0000","#00ff00"]}]}`), observe)
	assert.Equal(t, []string{"2023", "2024"}, got.Labels)
	assert.Equal(t, []string{"#ff0000", "#00ff00"}, got.Datasets[0].BackgroundColors)
	assert.Empty(t, events, "pass-through data must not fall back to samples")
}

func TestEmbeddedDefinitionIsUsed(t *testing.T) {
	p := payload.MustParse(`{"records":[{"stage":"new","revenue":3},{"stage":"won","revenue":4},{"stage":"new","revenue":1}],
		"chartDefinition":{"dimensionField":"stage","measureField":"revenue","aggregationType":"max","seriesField":null}}`)

	got := Build(p)
	assert.Equal(t, []string{"new", "won"}, got.Labels)
	assert.Equal(t, []float64{3, 4}, got.Datasets[0].Data)
}

func TestLegacyConfigAlwaysSums(t *testing.T) {
	p := payload.MustParse(`{"records":[
		{"partner_id":[7,"Acme"],"amount":[10,"EUR"]},
		{"partner_id":[7,"Acme"],"amount":"5"},
		{"partner_id":[9,"Globex"],"amount":2}
	],"config":{"dimensionField":"partner_id","measureField":"amount"}}`)

	got := Build(p)
	assert.Equal(t, []string{"Acme", "Globex"}, got.Labels)
	assert.Equal(t, []float64{15, 2}, got.Datasets[0].Data)
}

func TestEmptyDefinitionResultFallsThrough(t *testing.T) {
	p := payload.MustParse(`{"multi_model":true,"results":[{"model":"m","records":[]}],
		"chartDefinition":{"dimensionField":"x","measureField":"y"}}`)
	rec := &recorder{}

	got := Build(p, WithObserver(rec.observe))
	assert.Equal(t, SampleData(), got)
	require.Len(t, rec.events, 1)
	assert.Contains(t, rec.events[0].Reason, "chart-definition")
}

func TestPlainRecordsLabelAndValue(t *testing.T) {
	p := payload.MustParse(`{"records":[
		{"id":1,"name":"Acme","score":[3,"x"]},
		{"id":2,"name":"Globex","score":"4"}
	]}`)

	got := Build(p)
	assert.Equal(t, []string{"Acme", "Globex"}, got.Labels)
	assert.Equal(t, []float64{3, 4}, got.Datasets[0].Data)
	assert.Equal(t, "Score", got.Datasets[0].Label)
}

func TestPlainRecordsDegradeToCountByDate(t *testing.T) {
	p := payload.MustParse(`{"records":[
		{"login":"2024-05-02 10:00:00","user":"a"},
		{"login":"2024-05-01 11:00:00","user":"b"},
		{"login":"2024-05-02 12:00:00","user":"c"}
	]}`)

	got := Build(p)
	assert.Equal(t, []string{"2024-05-01", "2024-05-02"}, got.Labels)
	assert.Equal(t, []float64{1, 2}, got.Datasets[0].Data)
}

func TestRecordLimitTruncatesAndReports(t *testing.T) {
	p := payload.MustParse(`{"records":[{"k":"a","v":1},{"k":"b","v":2},{"k":"c","v":3}]}`)
	rec := &recorder{}

	got := Build(p,
		WithRecordLimit(2),
		WithObserver(rec.observe),
		WithDefinition(payload.ChartDefinition{DimensionField: "k", MeasureField: "v", AggregationType: "sum"}),
	)
	assert.Equal(t, []string{"a", "b"}, got.Labels)
	require.Len(t, rec.events, 1)
	assert.Equal(t, EventTruncated, rec.events[0].Kind)
	assert.Equal(t, 3, rec.events[0].Total)
	assert.Equal(t, 2, rec.events[0].Limit)
}

func TestValueLabel(t *testing.T) {
	assert.Equal(t, "None", ValueLabel(nil))
	assert.Equal(t, "None", ValueLabel(false))
	assert.Equal(t, "Acme", ValueLabel([]any{1.0, "Acme"}))
	assert.Equal(t, "12", ValueLabel(12.0))
	assert.Equal(t, "1.5", ValueLabel(1.5))
}

func TestColorWraps(t *testing.T) {
	assert.Equal(t, Color(0), Color(PaletteSize))
	assert.Equal(t, Color(3), Color(PaletteSize+3))
	assert.Equal(t, 1.0, Color(4).Opaque().A)
}

func TestParseVisualization(t *testing.T) {
	v, err := ParseVisualization(" Pie ")
	require.NoError(t, err)
	assert.Equal(t, Pie, v)

	_, err = ParseVisualization("radar")
	assert.Error(t, err)
}
