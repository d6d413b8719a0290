package report

import (
	"fmt"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/chart"
)

// Options is a batch of dialog selections, as sent by the CLI flags and the
// local API. Empty values keep the current selection.
type Options struct {
	Name          string `json:"name,omitempty"`
	Visualization string `json:"visualization,omitempty"`
	Dimension     string `json:"dimension,omitempty"`
	Measure       string `json:"measure,omitempty"`
	Series        string `json:"series,omitempty"`
	Aggregation   string `json:"aggregation,omitempty"`
	Stacked       bool   `json:"stacked,omitempty"`
	Cumulated     bool   `json:"cumulated,omitempty"`
}

// Apply runs the selections in the order a user would: chart type first so
// its flag reset does not undo stacked or cumulated.
func (d Dialog) Apply(o Options) (Dialog, error) {
	if o.Name != "" {
		d = d.WithName(o.Name)
	}
	if o.Visualization != "" {
		v, err := chart.ParseVisualization(o.Visualization)
		if err != nil {
			return d, err
		}
		d = d.WithVisualization(v)
	}
	var err error
	if d, err = d.selectField("dimension", o.Dimension, Dialog.WithDimension); err != nil {
		return d, err
	}
	if d, err = d.selectField("measure", o.Measure, Dialog.WithMeasure); err != nil {
		return d, err
	}
	if d, err = d.selectField("series", o.Series, Dialog.WithSeries); err != nil {
		return d, err
	}
	if o.Aggregation != "" {
		k, ok := aggregate.ParseKind(o.Aggregation)
		if !ok {
			return d, fmt.Errorf("unknown aggregation %q", o.Aggregation)
		}
		d = d.WithAggregation(k)
	}
	return d.WithStacked(o.Stacked).WithCumulated(o.Cumulated), nil
}

func (d Dialog) selectField(kind, name string, with func(Dialog, string) Dialog) (Dialog, error) {
	if name == "" {
		return d, nil
	}
	if !d.hasField(name) {
		return d, fmt.Errorf("unknown %s field %q", kind, name)
	}
	return with(d, name), nil
}

func (d Dialog) hasField(name string) bool {
	for _, f := range d.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
