// Package chart turns search result payloads into normalized chart data and
// renders it.
package chart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/fields"
	"github.com/hdsoft/unisearch/pkg/log"
	"github.com/hdsoft/unisearch/pkg/payload"
)

type (
	Data    = payload.ChartData
	Dataset = payload.Dataset
)

type Visualization string

const (
	Bar  Visualization = "bar"
	Line Visualization = "line"
	Pie  Visualization = "pie"
)

var Visualizations = []Visualization{Bar, Line, Pie}

// ParseVisualization accepts bar, line and pie, case-insensitively.
func ParseVisualization(s string) (Visualization, error) {
	v := Visualization(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case Bar, Line, Pie:
		return v, nil
	}
	return "", fmt.Errorf("unknown visualization type %q (want bar, line or pie)", s)
}

type EventKind int

const (
	// EventSampleFallback means no shape produced data and sample data was
	// returned instead.
	EventSampleFallback EventKind = iota
	// EventTruncated means the record set exceeded the record limit.
	EventTruncated
)

// Event describes a data quality condition met while building.
type Event struct {
	Kind   EventKind
	Reason string
	Shapes []payload.Shape
	Total  int
	Limit  int
}

type Observer func(Event)

var logger = log.ForService("chart")

// LogObserver reports events as warnings on the chart logger.
func LogObserver(e Event) {
	switch e.Kind {
	case EventTruncated:
		logger.Warnf("record set truncated from %d to %d records", e.Total, e.Limit)
	default:
		logger.Warnf("using sample data: %s", e.Reason)
	}
}

type builder struct {
	def      *payload.ChartDefinition
	cfg      *payload.ReportConfig
	viz      Visualization
	observer Observer
	limit    int

	truncated bool
}

type Option func(*builder)

// WithDefinition overrides the chart definition embedded in the payload.
func WithDefinition(def payload.ChartDefinition) Option {
	return func(b *builder) { b.def = &def }
}

// WithConfig overrides the report config embedded in the payload.
func WithConfig(cfg payload.ReportConfig) Option {
	return func(b *builder) { b.cfg = &cfg }
}

func WithVisualization(v Visualization) Option {
	return func(b *builder) {
		if v != "" {
			b.viz = v
		}
	}
}

func WithObserver(o Observer) Option {
	return func(b *builder) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithRecordLimit caps the records read from the active record set. Zero or
// less means no limit.
func WithRecordLimit(n int) Option {
	return func(b *builder) { b.limit = n }
}

// Build normalizes p into chart data. It never fails: when no shape of the
// payload yields data the sample dataset is returned and the observer is
// told why.
func Build(p *payload.Payload, opts ...Option) Data {
	b := &builder{viz: Bar, observer: LogObserver}
	for _, opt := range opts {
		opt(b)
	}

	sel := payload.Selection{Definition: b.def, Config: b.cfg}.Resolve(p)
	shapes := payload.Classify(p, sel)
	for _, shape := range shapes {
		if data := b.build(shape, p, sel); !data.Empty() {
			return data
		}
	}

	reason := "unrecognized payload shape"
	if len(shapes) > 0 {
		names := make([]string, len(shapes))
		for i, s := range shapes {
			names[i] = s.String()
		}
		reason = "no data from shapes " + strings.Join(names, ", ")
	}
	b.observer(Event{Kind: EventSampleFallback, Reason: reason, Shapes: shapes})
	return SampleData()
}

// SampleData is the placeholder shown when nothing else can be drawn.
func SampleData() Data {
	return Data{
		Labels:   []string{"Sample A", "Sample B", "Sample C", "Sample D", "Sample E"},
		Datasets: []Dataset{newDataset("Sample Data", []float64{30, 20, 25, 15, 10}, 0)},
	}
}

func newDataset(label string, data []float64, i int) Dataset {
	c := Color(i)
	return Dataset{
		Label:           label,
		Data:            data,
		BackgroundColor: c.String(),
		BorderColor:     c.Opaque().String(),
		BorderWidth:     1,
	}
}

func (b *builder) build(shape payload.Shape, p *payload.Payload, sel payload.Selection) Data {
	switch shape {
	case payload.PreProcessed:
		data, _ := p.Graph()
		return data
	case payload.ChartDefinitionDriven:
		return b.fromDefinition(p, *sel.Definition, sel.Config)
	case payload.LegacySelection:
		return b.fromLegacyConfig(p, *sel.Config)
	case payload.AggregationResult:
		return b.fromAggregation(p)
	case payload.MultiModel:
		return b.fromMultiModel(p)
	case payload.PlainRecords:
		return b.fromRecords(p.Records())
	}
	return Data{}
}

func (b *builder) limitRecords(records []payload.Record) []payload.Record {
	if b.limit <= 0 || len(records) <= b.limit {
		return records
	}
	if !b.truncated {
		b.truncated = true
		b.observer(Event{Kind: EventTruncated, Total: len(records), Limit: b.limit})
	}
	return records[:b.limit]
}

func (b *builder) stacked(cfg *payload.ReportConfig, series string) bool {
	return b.viz == Bar && cfg != nil && cfg.Stacked && series != ""
}

func (b *builder) fromDefinition(p *payload.Payload, def payload.ChartDefinition, cfg *payload.ReportConfig) Data {
	records := b.limitRecords(p.ActiveRecords())
	kind, _ := aggregate.ParseKind(def.AggregationType)
	series := string(def.SeriesField)
	if b.stacked(cfg, series) {
		return crossTab(records, def.DimensionField, series, def.MeasureField, kind)
	}
	return grouped(records, def.DimensionField, def.MeasureField, kind)
}

// fromLegacyConfig reads reports saved before chart definitions existed.
// Those always summed the measure.
func (b *builder) fromLegacyConfig(p *payload.Payload, cfg payload.ReportConfig) Data {
	records := b.limitRecords(p.ActiveRecords())
	if b.stacked(&cfg, cfg.SeriesField) {
		return crossTab(records, cfg.DimensionField, cfg.SeriesField, cfg.MeasureField, aggregate.Sum)
	}
	return grouped(records, cfg.DimensionField, cfg.MeasureField, aggregate.Sum)
}

func datasetLabel(measure string, kind aggregate.Kind) string {
	switch kind {
	case aggregate.Count:
		return "Count"
	case aggregate.None:
		return payload.Label(measure)
	}
	return fmt.Sprintf("%s of %s", payload.Label(string(kind)), payload.Label(measure))
}

func grouped(records []payload.Record, dimension, measure string, kind aggregate.Kind) Data {
	order, groups := groupBy(records, dimension)
	values := make([]float64, len(order))
	for i, key := range order {
		values[i] = aggregate.Aggregate(groups[key], measure, kind)
	}
	return Data{
		Labels:   order,
		Datasets: []Dataset{newDataset(datasetLabel(measure, kind), values, 0)},
	}
}

// crossTab builds one dataset per series value over every dimension value.
// Combinations without records aggregate to 0.
func crossTab(records []payload.Record, dimension, series, measure string, kind aggregate.Kind) Data {
	dims, _ := groupBy(records, dimension)
	seriesValues, _ := groupBy(records, series)

	cells := make(map[[2]string][]payload.Record)
	for _, r := range records {
		key := [2]string{ValueLabel(r.Value(dimension)), ValueLabel(r.Value(series))}
		cells[key] = append(cells[key], r)
	}

	datasets := make([]Dataset, 0, len(seriesValues))
	for si, s := range seriesValues {
		values := make([]float64, len(dims))
		for di, d := range dims {
			values[di] = aggregate.Aggregate(cells[[2]string{d, s}], measure, kind)
		}
		datasets = append(datasets, newDataset(s, values, si))
	}
	return Data{Labels: dims, Datasets: datasets}
}

// groupBy groups records by the label of field, keeping first-seen order.
func groupBy(records []payload.Record, field string) ([]string, map[string][]payload.Record) {
	var order []string
	groups := make(map[string][]payload.Record)
	for _, r := range records {
		key := ValueLabel(r.Value(field))
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	return order, groups
}

// ValueLabel renders a field value as a category label. Relational values
// sent as [id, name] use the name.
func ValueLabel(v any) string { return payload.ValueLabel(v) }

func (b *builder) fromAggregation(p *payload.Payload) Data {
	dimension := p.String(payload.KeyDimension)
	measure := p.String(payload.KeyMeasure)
	if dimension == "" || measure == "" {
		return Data{}
	}

	records := b.limitRecords(p.Records())
	labels := make([]string, len(records))
	values := make([]float64, len(records))
	for i, r := range records {
		labels[i] = ValueLabel(r.Value(dimension))
		values[i], _ = aggregate.ToNumber(r.Value(measure))
	}

	label := dimension
	if desc, ok := p.StringMap(payload.KeyFieldDescriptions)[dimension]; ok && desc != "" {
		label = desc
	}
	return Data{Labels: labels, Datasets: []Dataset{newDataset(label, values, 0)}}
}

func countLabel(model string) string {
	if strings.Contains(model, "log") {
		return "User Login Count"
	}
	return model + " Count"
}

// primaryModel returns the result with the most records. The first listed
// wins a tie.
func primaryModel(results []payload.ModelResult) (payload.ModelResult, bool) {
	best := -1
	for i, r := range results {
		if best < 0 || len(r.Records) > len(results[best].Records) {
			best = i
		}
	}
	if best < 0 {
		return payload.ModelResult{}, false
	}
	return results[best], true
}

func (b *builder) fromMultiModel(p *payload.Payload) Data {
	results := p.Results()
	for _, r := range results {
		if r.DateAggregation == nil {
			continue
		}
		agg := r.DateAggregation
		values := make([]float64, len(agg.Dates))
		copy(values, agg.Counts)
		return Data{
			Labels:   append([]string(nil), agg.Dates...),
			Datasets: []Dataset{newDataset(countLabel(r.Model), values, 0)},
		}
	}

	primary, ok := primaryModel(results)
	if !ok || len(primary.Records) == 0 {
		return Data{}
	}
	records := b.limitRecords(primary.Records)

	if field := dateField(records[0]); field != "" {
		return countByDate(records, field, countLabel(primary.Model))
	}
	if field := stringField(records[0]); field != "" {
		order, groups := groupBy(records, field)
		values := make([]float64, len(order))
		for i, key := range order {
			values[i] = float64(len(groups[key]))
		}
		return Data{Labels: order, Datasets: []Dataset{newDataset(countLabel(primary.Model), values, 0)}}
	}
	return Data{}
}

func dateField(r payload.Record) string {
	for _, k := range r.Keys() {
		if fields.IsTechnical(k) {
			continue
		}
		if fields.LooksLikeDate(r.Value(k)) {
			return k
		}
	}
	return ""
}

func stringField(r payload.Record) string {
	for _, k := range r.Keys() {
		if fields.IsTechnical(k) {
			continue
		}
		if _, ok := r.Value(k).(string); ok {
			return k
		}
	}
	return ""
}

// datePortion strips the time of day from a date-like value.
func datePortion(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if !fields.LooksLikeDate(t) {
			return "", false
		}
		return t[:10], true
	case time.Time:
		return t.Format(time.DateOnly), true
	case interface{ Year() int }:
		return strconv.Itoa(t.Year()), true
	}
	return "", false
}

// countByDate counts records per calendar day, sorted by date.
func countByDate(records []payload.Record, field, label string) Data {
	counts := make(map[string]int)
	for _, r := range records {
		if day, ok := datePortion(r.Value(field)); ok {
			counts[day]++
		}
	}
	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	values := make([]float64, len(days))
	for i, day := range days {
		values[i] = float64(counts[day])
	}
	return Data{Labels: days, Datasets: []Dataset{newDataset(label, values, 0)}}
}

func parseableNumber(v any) bool {
	switch t := v.(type) {
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return err == nil
	case []any:
		return len(t) > 0 && parseableNumber(t[0])
	}
	return fields.LooksLikeNumeric(v)
}

// fromRecords charts records without an explicit selection: the first label
// capable field against the first value capable field.
func (b *builder) fromRecords(all []payload.Record) Data {
	if len(all) == 0 {
		return Data{}
	}
	var labelField, valueField, dateFieldName string
	first := all[0]
	for _, k := range first.Keys() {
		if fields.IsTechnical(k) {
			continue
		}
		v := first.Value(k)
		isDate := fields.LooksLikeDate(v)
		if isDate && dateFieldName == "" {
			dateFieldName = k
		}
		_, isString := v.(string)
		switch {
		case labelField == "" && (isString || isDate):
			labelField = k
		case valueField == "" && parseableNumber(v):
			valueField = k
		}
	}

	records := b.limitRecords(all)
	if labelField != "" && valueField != "" {
		labels := make([]string, len(records))
		values := make([]float64, len(records))
		for i, r := range records {
			labels[i] = ValueLabel(r.Value(labelField))
			values[i], _ = aggregate.ToNumber(r.Value(valueField))
		}
		return Data{Labels: labels, Datasets: []Dataset{newDataset(payload.Label(valueField), values, 0)}}
	}
	if valueField == "" && dateFieldName != "" {
		return countByDate(records, dateFieldName, "Count")
	}
	return Data{}
}
