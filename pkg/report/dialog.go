// Package report models the report configuration dialog as an immutable
// value: every user action returns a new Dialog.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/hdsoft/unisearch/pkg/payload"
)

var (
	ErrNameRequired      = errors.New("report name is required")
	ErrQueryRequired     = errors.New("query text is required")
	ErrDimensionRequired = errors.New("a dimension field must be selected")
	ErrMeasureRequired   = errors.New("a measure field must be selected")
	ErrSeriesRequired    = errors.New("a series field must be selected for stacked bar charts")
	ErrClosed            = errors.New("dialog already closed")
)

type Dialog struct {
	name        string
	queryText   string
	viz         chart.Visualization
	stacked     bool
	cumulated   bool
	dimension   string
	measure     string
	series      string
	aggregation aggregate.Kind
	fields      []payload.FieldDescriptor
	data        *payload.Payload
	closed      bool
}

// Open inspects the result payload and preselects default fields.
func Open(queryText string, data *payload.Payload) Dialog {
	fs := fields.Inspect(data)
	defaults := fields.DefaultsFor(fs)
	return Dialog{
		queryText:   queryText,
		viz:         chart.Bar,
		dimension:   defaults.Dimension,
		measure:     defaults.Measure,
		series:      defaults.Series,
		aggregation: fields.ResolveAggregation(fs, defaults.Measure, aggregate.Sum),
		fields:      fs,
		data:        data,
	}
}

func (d Dialog) Name() string                       { return d.name }
func (d Dialog) QueryText() string                  { return d.queryText }
func (d Dialog) Visualization() chart.Visualization { return d.viz }
func (d Dialog) Stacked() bool                      { return d.stacked }
func (d Dialog) Cumulated() bool                    { return d.cumulated }
func (d Dialog) Dimension() string                  { return d.dimension }
func (d Dialog) Measure() string                    { return d.measure }
func (d Dialog) Series() string                     { return d.series }
func (d Dialog) Aggregation() aggregate.Kind        { return d.aggregation }
func (d Dialog) Closed() bool                       { return d.closed }
func (d Dialog) Fields() []payload.FieldDescriptor {
	return append([]payload.FieldDescriptor(nil), d.fields...)
}
func (d Dialog) Aggregations() []aggregate.Kind { return fields.AggregationsFor(d.fields, d.measure) }

func (d Dialog) WithName(name string) Dialog {
	d.name = name
	return d
}

func (d Dialog) WithQueryText(q string) Dialog {
	d.queryText = q
	return d
}

// WithVisualization switches chart type. Type specific flags reset while
// field selections are kept.
func (d Dialog) WithVisualization(v chart.Visualization) Dialog {
	if v == d.viz {
		return d
	}
	d.viz = v
	d.stacked = false
	d.cumulated = false
	return d
}

// WithStacked only applies to bar charts.
func (d Dialog) WithStacked(on bool) Dialog {
	d.stacked = on && d.viz == chart.Bar
	return d
}

// WithCumulated only applies to line charts.
func (d Dialog) WithCumulated(on bool) Dialog {
	d.cumulated = on && d.viz == chart.Line
	return d
}

func (d Dialog) WithDimension(name string) Dialog {
	d.dimension = name
	return d
}

// WithMeasure selects the measure and drops numeric-only aggregations when
// it is not numeric.
func (d Dialog) WithMeasure(name string) Dialog {
	d.measure = name
	d.aggregation = fields.ResolveAggregation(d.fields, name, d.aggregation)
	return d
}

func (d Dialog) WithSeries(name string) Dialog {
	d.series = name
	return d
}

func (d Dialog) WithAggregation(k aggregate.Kind) Dialog {
	d.aggregation = fields.ResolveAggregation(d.fields, d.measure, k)
	return d
}

// Validate returns every problem blocking confirmation, joined.
func (d Dialog) Validate() error {
	var errs []error
	if strings.TrimSpace(d.name) == "" {
		errs = append(errs, ErrNameRequired)
	}
	if strings.TrimSpace(d.queryText) == "" {
		errs = append(errs, ErrQueryRequired)
	}
	if d.dimension == "" {
		errs = append(errs, ErrDimensionRequired)
	}
	if d.measure == "" {
		errs = append(errs, ErrMeasureRequired)
	}
	if d.viz == chart.Bar && d.stacked && d.series == "" {
		errs = append(errs, ErrSeriesRequired)
	}
	return errors.Join(errs...)
}

// Definition is the chart definition for the current selection.
func (d Dialog) Definition() payload.ChartDefinition {
	def := payload.ChartDefinition{
		DimensionField:  d.dimension,
		MeasureField:    d.measure,
		AggregationType: string(d.aggregation),
		FieldTypes:      fields.TypeMap(d.fields),
	}
	if d.viz == chart.Bar && d.stacked {
		def.SeriesField = payload.NullString(d.series)
	}
	return def
}

// Config is the report config for the current selection.
func (d Dialog) Config() payload.ReportConfig {
	cfg := payload.ReportConfig{
		Stacked:        d.stacked,
		Cumulated:      d.cumulated,
		DimensionField: d.dimension,
		MeasureField:   d.measure,
	}
	if d.viz == chart.Bar && d.stacked {
		cfg.SeriesField = d.series
	}
	return cfg
}

// Preview builds the chart data the confirmed report would show.
func (d Dialog) Preview(opts ...chart.Option) chart.Data {
	opts = append([]chart.Option{
		chart.WithDefinition(d.Definition()),
		chart.WithConfig(d.Config()),
		chart.WithVisualization(d.viz),
	}, opts...)
	return chart.Build(d.data, opts...)
}

// Bundle is what a confirmed dialog hands to its caller. It shares no
// memory with the dialog.
type Bundle struct {
	Name          string
	QueryText     string
	Visualization chart.Visualization
	Definition    payload.ChartDefinition
	Config        payload.ReportConfig
	Data          *payload.Payload
}

// CreateRequest is the create_report parameter set.
type CreateRequest struct {
	Name              string               `json:"name"`
	QueryText         string               `json:"query_text"`
	VisualizationType chart.Visualization  `json:"visualization_type"`
	Config            payload.ReportConfig `json:"config"`
	Data              *payload.Payload     `json:"data"`
}

func (b Bundle) CreateRequest() CreateRequest {
	return CreateRequest{
		Name:              b.Name,
		QueryText:         b.QueryText,
		VisualizationType: b.Visualization,
		Config:            b.Config,
		Data:              b.Data,
	}
}

// Confirm validates, assembles a deep-copied Bundle and passes it to accept.
// The returned dialog is closed only if accept succeeds.
func (d Dialog) Confirm(accept func(Bundle) error) (Dialog, error) {
	if d.closed {
		return d, ErrClosed
	}
	if err := d.Validate(); err != nil {
		return d, err
	}

	var def payload.ChartDefinition
	if err := deepCopy(d.Definition(), &def); err != nil {
		return d, fmt.Errorf("copying chart definition: %w", err)
	}
	var cfg payload.ReportConfig
	if err := deepCopy(d.Config(), &cfg); err != nil {
		return d, fmt.Errorf("copying report config: %w", err)
	}
	data, err := d.data.WithChartDefinition(def)
	if err != nil {
		return d, fmt.Errorf("embedding chart definition: %w", err)
	}

	bundle := Bundle{
		Name:          strings.TrimSpace(d.name),
		QueryText:     d.queryText,
		Visualization: d.viz,
		Definition:    def,
		Config:        cfg,
		Data:          data,
	}
	if err := accept(bundle); err != nil {
		return d, err
	}
	d.closed = true
	return d, nil
}

func deepCopy(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
