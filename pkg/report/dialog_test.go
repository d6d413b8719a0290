package report

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/payload"
)

const ordersJSON = `{"records":[
	{"id":1,"region":"North","product":"Chair","qty":2,"date_order":"2024-01-01 10:00:00"},
	{"id":2,"region":"South","product":"Desk","qty":1,"date_order":"2024-01-02 11:00:00"},
	{"id":3,"region":"North","product":"Desk","qty":4,"date_order":"2024-01-02 12:00:00"}
],"model":"sale.order","count":3}`

func openOrders(t *testing.T) Dialog {
	t.Helper()
	return Open("orders by day", payload.MustParse(ordersJSON))
}

func TestOpenPreselectsDefaults(t *testing.T) {
	d := openOrders(t)

	assert.Equal(t, chart.Bar, d.Visualization())
	assert.Equal(t, "date_order", d.Dimension())
	assert.Equal(t, "qty", d.Measure())
	assert.Equal(t, "region", d.Series())
	assert.Equal(t, aggregate.Sum, d.Aggregation())
	assert.Len(t, d.Fields(), 4)
}

func TestActionsDoNotMutate(t *testing.T) {
	d := openOrders(t)
	named := d.WithName("Orders")

	assert.Equal(t, "", d.Name())
	assert.Equal(t, "Orders", named.Name())
}

func TestTypeChangePreservesSelections(t *testing.T) {
	d := openOrders(t).
		WithDimension("region").
		WithMeasure("qty").
		WithSeries("product").
		WithStacked(true)
	require.True(t, d.Stacked())

	for _, v := range []chart.Visualization{chart.Line, chart.Pie, chart.Bar} {
		d = d.WithVisualization(v)
		assert.Equal(t, "region", d.Dimension(), v)
		assert.Equal(t, "qty", d.Measure(), v)
		assert.Equal(t, "product", d.Series(), v)
		assert.False(t, d.Stacked(), v)
		assert.False(t, d.Cumulated(), v)
	}
}

func TestFlagsOnlyForTheirType(t *testing.T) {
	d := openOrders(t).WithVisualization(chart.Line)
	assert.False(t, d.WithStacked(true).Stacked())
	assert.True(t, d.WithCumulated(true).Cumulated())

	d = d.WithCumulated(true).WithVisualization(chart.Bar)
	assert.False(t, d.Cumulated())
}

func TestNonNumericMeasureForcesCount(t *testing.T) {
	d := openOrders(t).WithAggregation(aggregate.Average)
	require.Equal(t, aggregate.Average, d.Aggregation())

	d = d.WithMeasure("product")
	assert.Equal(t, aggregate.Count, d.Aggregation())
	assert.Equal(t, []aggregate.Kind{aggregate.None, aggregate.Count}, d.Aggregations())

	assert.Equal(t, aggregate.Count, d.WithAggregation(aggregate.Max).Aggregation())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	d := Open("", payload.MustParse(`{"records":[]}`)).WithStacked(true)

	err := d.Validate()
	require.Error(t, err)
	for _, want := range []error{ErrNameRequired, ErrQueryRequired, ErrDimensionRequired, ErrMeasureRequired, ErrSeriesRequired} {
		assert.True(t, errors.Is(err, want), "missing %v", want)
	}
}

func TestSeriesOnlyRequiredForStackedBar(t *testing.T) {
	d := openOrders(t).WithName("r").WithSeries("")
	assert.NoError(t, d.Validate())
	assert.ErrorIs(t, d.WithStacked(true).Validate(), ErrSeriesRequired)
}

func TestConfirmBuildsDetachedBundle(t *testing.T) {
	d := openOrders(t).
		WithName("  Qty per region  ").
		WithDimension("region").
		WithSeries("product").
		WithStacked(true)

	var got Bundle
	closed, err := d.Confirm(func(b Bundle) error {
		got = b
		return nil
	})
	require.NoError(t, err)
	assert.True(t, closed.Closed())
	assert.False(t, d.Closed())

	assert.Equal(t, "Qty per region", got.Name)
	assert.Equal(t, "region", got.Definition.DimensionField)
	assert.Equal(t, payload.NullString("product"), got.Definition.SeriesField)
	assert.Equal(t, payload.TypeNumber, got.Definition.FieldTypes["qty"])
	assert.True(t, got.Config.Stacked)

	embedded, ok := got.Data.ChartDefinition()
	require.True(t, ok)
	assert.Equal(t, "sum", embedded.AggregationType)

	got.Definition.FieldTypes["qty"] = payload.TypeString
	assert.Equal(t, payload.TypeNumber, d.Definition().FieldTypes["qty"])

	data := chart.Build(got.Data, chart.WithConfig(got.Config))
	assert.Equal(t, []string{"North", "South"}, data.Labels)
	require.Len(t, data.Datasets, 2)
	assert.Equal(t, []float64{2, 0}, data.Datasets[0].Data)
	assert.Equal(t, []float64{4, 1}, data.Datasets[1].Data)

	_, err = closed.Confirm(func(Bundle) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConfirmStaysOpenWhenRejected(t *testing.T) {
	d := openOrders(t).WithName("r")
	rejected := errors.New("backend said no")

	after, err := d.Confirm(func(Bundle) error { return rejected })
	assert.ErrorIs(t, err, rejected)
	assert.False(t, after.Closed())
}

func TestConfirmBlockedByValidation(t *testing.T) {
	called := false
	_, err := openOrders(t).Confirm(func(Bundle) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.False(t, called)
}

func TestCreateRequestShape(t *testing.T) {
	d := openOrders(t).WithName("r").WithVisualization(chart.Line).WithCumulated(true)
	var req CreateRequest
	_, err := d.Confirm(func(b Bundle) error {
		req = b.CreateRequest()
		return nil
	})
	require.NoError(t, err)

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "r", m["name"])
	assert.Equal(t, "orders by day", m["query_text"])
	assert.Equal(t, "line", m["visualization_type"])
	assert.Equal(t, true, m["config"].(map[string]any)["cumulated"])
	assert.Contains(t, m["data"].(map[string]any), "chartDefinition")
}

func TestPreview(t *testing.T) {
	data := openOrders(t).WithDimension("region").Preview()
	assert.Equal(t, []string{"North", "South"}, data.Labels)
	assert.Equal(t, []float64{6, 1}, data.Datasets[0].Data)
}

func TestApplyOptions(t *testing.T) {
	d, err := openOrders(t).Apply(Options{
		Name:          "Qty by region",
		Visualization: "BAR",
		Dimension:     "region",
		Measure:       "qty",
		Series:        "product",
		Aggregation:   "avg",
		Stacked:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Qty by region", d.Name())
	assert.Equal(t, "region", d.Dimension())
	assert.Equal(t, "product", d.Series())
	assert.Equal(t, aggregate.Average, d.Aggregation())
	assert.True(t, d.Stacked())

	def := d.Definition()
	assert.Equal(t, payload.NullString("product"), def.SeriesField)
}

func TestApplyCumulatedOnlyForLine(t *testing.T) {
	d, err := openOrders(t).Apply(Options{Visualization: "pie", Cumulated: true, Stacked: true})
	require.NoError(t, err)
	assert.False(t, d.Cumulated())
	assert.False(t, d.Stacked())

	d, err = openOrders(t).Apply(Options{Visualization: "line", Cumulated: true})
	require.NoError(t, err)
	assert.True(t, d.Cumulated())
}

func TestApplyRejectsUnknownValues(t *testing.T) {
	_, err := openOrders(t).Apply(Options{Dimension: "missing"})
	assert.EqualError(t, err, `unknown dimension field "missing"`)

	_, err = openOrders(t).Apply(Options{Visualization: "radar"})
	assert.Error(t, err)

	_, err = openOrders(t).Apply(Options{Aggregation: "median"})
	assert.EqualError(t, err, `unknown aggregation "median"`)
}

func TestApplyNonNumericMeasureForcesCount(t *testing.T) {
	d, err := openOrders(t).Apply(Options{Measure: "product", Aggregation: "sum"})
	require.NoError(t, err)
	assert.Equal(t, aggregate.Count, d.Aggregation())
}
