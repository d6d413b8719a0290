package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeDate   FieldType = "date"
)

// FieldDescriptor describes one inferred field of a record set.
type FieldDescriptor struct {
	Name  string    `json:"name"`
	Type  FieldType `json:"type"`
	Label string    `json:"label"`
}

var titleCaser = cases.Title(language.English)

// Label turns a field name into display text: "partner_id" becomes "Partner Id".
func Label(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// ValueLabel renders a field value as a category label or chart axis label. Relational values
// sent as [id, name] use the name.
func ValueLabel(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if !t {
			return "None"
		}
		return "True"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.DateTime)
	case []any:
		if len(t) == 2 {
			if name, ok := t[1].(string); ok {
				return name
			}
		}
		if len(t) > 0 {
			return ValueLabel(t[0])
		}
		return "None"
	}
	return fmt.Sprint(v)
}

// NullString marshals the empty string as JSON null.
type NullString string

func (s NullString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *NullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = NullString(v)
	return nil
}

// ChartDefinition records the field selection a report was created with.
type ChartDefinition struct {
	DimensionField  string               `json:"dimensionField"`
	MeasureField    string               `json:"measureField"`
	AggregationType string               `json:"aggregationType"`
	SeriesField     NullString           `json:"seriesField"`
	FieldTypes      map[string]FieldType `json:"fieldTypes"`
}

// ReportConfig holds visualization specific rendering options.
type ReportConfig struct {
	Stacked        bool   `json:"stacked,omitempty"`
	Cumulated      bool   `json:"cumulated,omitempty"`
	DimensionField string `json:"dimensionField,omitempty"`
	MeasureField   string `json:"measureField,omitempty"`
	SeriesField    string `json:"seriesField,omitempty"`
}

// Dataset is one series of normalized chart data.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor string    `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor"`
	BorderWidth     int       `json:"borderWidth"`
	// BackgroundColors holds per-point colours when the backend sends an
	// array; BackgroundColor is then its first entry.
	BackgroundColors []string `json:"-"`
}

type datasetJSON struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor"`
	BorderWidth     int       `json:"borderWidth"`
}

func (d Dataset) MarshalJSON() ([]byte, error) {
	out := datasetJSON{
		Label:           d.Label,
		Data:            d.Data,
		BackgroundColor: d.BackgroundColor,
		BorderColor:     d.BorderColor,
		BorderWidth:     d.BorderWidth,
	}
	if len(d.BackgroundColors) > 0 {
		out.BackgroundColor = d.BackgroundColors
	}
	return json.Marshal(out)
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = datasetFromMap(m)
	return nil
}

// PointColor returns the colour of point i, falling back to the dataset
// colour.
func (d Dataset) PointColor(i int) string {
	if i >= 0 && i < len(d.BackgroundColors) && d.BackgroundColors[i] != "" {
		return d.BackgroundColors[i]
	}
	return d.BackgroundColor
}

// ChartData is the normalized {labels, datasets} structure every chart is
// drawn from.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Empty reports whether there is nothing to draw.
func (d ChartData) Empty() bool {
	if len(d.Labels) == 0 || len(d.Datasets) == 0 {
		return true
	}
	for _, ds := range d.Datasets {
		if len(ds.Data) > 0 {
			return false
		}
	}
	return true
}

type DateAggregation struct {
	Dates  []string  `json:"dates"`
	Counts []float64 `json:"counts"`
}

// ModelResult is the per-model section of a multi-model payload.
type ModelResult struct {
	Model           string           `json:"model"`
	ModelLabel      string           `json:"model_label,omitempty"`
	Fields          FieldList        `json:"fields,omitempty"`
	Records         []Record         `json:"records"`
	Count           int              `json:"count,omitempty"`
	DateAggregation *DateAggregation `json:"_dateAggregation,omitempty"`
}

func (m *ModelResult) UnmarshalJSON(data []byte) error {
	_, raw, err := decodeObject(data)
	if err != nil {
		return err
	}
	*m = ModelResult{}
	_ = json.Unmarshal(raw["model"], &m.Model)
	_ = json.Unmarshal(raw["model_label"], &m.ModelLabel)
	_ = json.Unmarshal(raw["count"], &m.Count)
	if f, ok := raw["fields"]; ok {
		_ = m.Fields.UnmarshalJSON(f)
	}
	if r, ok := raw["records"]; ok {
		m.Records = decodeRecords(r)
	}
	if agg, ok := raw["_dateAggregation"]; ok {
		var da DateAggregation
		if json.Unmarshal(agg, &da) == nil && len(da.Dates) > 0 {
			m.DateAggregation = &da
		}
	}
	return nil
}

// FieldList is the list of field names a backend reports. Entries may be
// plain names or objects carrying a "name" key.
type FieldList []string

func (f *FieldList) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*f = nil
		return nil
	}
	out := make(FieldList, 0, len(items))
	for _, item := range items {
		var name string
		if json.Unmarshal(item, &name) == nil {
			out = append(out, name)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(item, &obj) == nil && obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	*f = out
	return nil
}

// SavedReport is the cached projection of a backend report.
type SavedReport struct {
	ID                int          `json:"id"`
	Name              string       `json:"name"`
	QueryText         string       `json:"query_text"`
	VisualizationType string       `json:"visualization_type"`
	Config            ReportConfig `json:"config"`
	Data              *Payload     `json:"data,omitempty"`
	CreateDate        string       `json:"create_date,omitempty"`
}

// EffectiveConfig is the rendering config of the report. Backends that do
// not store a config get the one embedded in the data; a chart definition
// carrying a series field marks a stacked bar report.
func (r SavedReport) EffectiveConfig() ReportConfig {
	cfg := r.Config
	if cfg == (ReportConfig{}) {
		cfg, _ = r.Data.Config()
	}
	def, ok := r.Data.ChartDefinition()
	if !ok || def.SeriesField == "" {
		return cfg
	}
	cfg.Stacked = true
	if cfg.SeriesField == "" {
		cfg.SeriesField = string(def.SeriesField)
	}
	if cfg.DimensionField == "" {
		cfg.DimensionField = def.DimensionField
	}
	if cfg.MeasureField == "" {
		cfg.MeasureField = def.MeasureField
	}
	return cfg
}

type Favorite struct {
	ID         int    `json:"id"`
	Name       string `json:"name,omitempty"`
	QueryText  string `json:"query_text"`
	CreateDate string `json:"create_date,omitempty"`
}

// Title returns the favorite name, falling back to the query text.
func (f Favorite) Title() string {
	if strings.TrimFunc(f.Name, unicode.IsSpace) != "" {
		return f.Name
	}
	return f.QueryText
}
