package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known payload keys.
const (
	KeyRecords           = "records"
	KeyFields            = "fields"
	KeyModel             = "model"
	KeyModelLabel        = "model_label"
	KeyCount             = "count"
	KeyMultiModel        = "multi_model"
	KeyResults           = "results"
	KeyTotalCount        = "total_count"
	KeyAggregation       = "aggregation"
	KeyDimension         = "dimension"
	KeyMeasure           = "measure"
	KeyFieldDescriptions = "field_descriptions"
	KeyLabels            = "labels"
	KeyDatasets          = "datasets"
	KeyChartDefinition   = "chartDefinition"
	KeyConfig            = "config"
)

// Payload is a search result body. The backend does not tag the shape, so
// the raw members are kept verbatim and typed views are decoded leniently:
// a member with an unexpected type reads as absent.
type Payload struct {
	keys []string
	raw  map[string]json.RawMessage

	records []Record
	results []ModelResult
}

// Parse decodes a payload. Only a body that is not a JSON object is an error.
func Parse(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := p.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return p, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) *Payload {
	p, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	keys, raw, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	p.keys = keys
	p.raw = raw
	p.records = nil
	p.results = nil
	if r, ok := raw[KeyRecords]; ok {
		p.records = decodeRecords(r)
	}
	if r, ok := raw[KeyResults]; ok {
		p.results = decodeResults(r)
	}
	return nil
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(p.raw[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeResults(data json.RawMessage) []ModelResult {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil
	}
	results := make([]ModelResult, 0, len(items))
	for _, item := range items {
		var m ModelResult
		if err := m.UnmarshalJSON(item); err != nil {
			continue
		}
		results = append(results, m)
	}
	return results
}

// Keys returns the top-level keys in document order.
func (p *Payload) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *Payload) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p.raw[key]
	return ok
}

// Raw returns the undecoded member.
func (p *Payload) Raw(key string) (json.RawMessage, bool) {
	if p == nil {
		return nil, false
	}
	r, ok := p.raw[key]
	return r, ok
}

// Decode unmarshals a member into v.
func (p *Payload) Decode(key string, v any) error {
	r, ok := p.Raw(key)
	if !ok {
		return fmt.Errorf("payload has no %q member", key)
	}
	return json.Unmarshal(r, v)
}

// Bool reports whether key holds JSON true.
func (p *Payload) Bool(key string) bool {
	var b bool
	return p.Decode(key, &b) == nil && b
}

// String returns the member as a string, or "" when it is not one.
func (p *Payload) String(key string) string {
	var s string
	if p.Decode(key, &s) != nil {
		return ""
	}
	return s
}

// Int returns the member as an integer, or 0.
func (p *Payload) Int(key string) int {
	var f float64
	if p.Decode(key, &f) != nil {
		return 0
	}
	return int(f)
}

// StringMap decodes an object of string values, ignoring other members.
func (p *Payload) StringMap(key string) map[string]string {
	var m map[string]any
	if p.Decode(key, &m) != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (p *Payload) Records() []Record {
	if p == nil {
		return nil
	}
	return p.records
}

func (p *Payload) Results() []ModelResult {
	if p == nil {
		return nil
	}
	return p.results
}

func (p *Payload) IsMultiModel() bool {
	return p.Bool(KeyMultiModel)
}

func (p *Payload) IsAggregation() bool {
	return p.Bool(KeyAggregation)
}

// ActiveRecords is the record set charts and field inference work on: the
// first model with records for multi-model payloads, else the top-level
// records.
func (p *Payload) ActiveRecords() []Record {
	if p.IsMultiModel() {
		for _, r := range p.Results() {
			if len(r.Records) > 0 {
				return r.Records
			}
		}
		return nil
	}
	return p.Records()
}

// ChartDefinition returns the embedded definition, if any.
func (p *Payload) ChartDefinition() (ChartDefinition, bool) {
	var def ChartDefinition
	if p.Decode(KeyChartDefinition, &def) != nil {
		return ChartDefinition{}, false
	}
	return def, def.DimensionField != ""
}

// Config returns the embedded legacy report config, if any.
func (p *Payload) Config() (ReportConfig, bool) {
	var cfg ReportConfig
	if p.Decode(KeyConfig, &cfg) != nil {
		return ReportConfig{}, false
	}
	return cfg, true
}

// Graph returns pre-processed chart data carried by the payload itself.
func (p *Payload) Graph() (ChartData, bool) {
	if !p.Has(KeyLabels) || !p.Has(KeyDatasets) {
		return ChartData{}, false
	}
	var labels []any
	if p.Decode(KeyLabels, &labels) != nil {
		return ChartData{}, false
	}
	data := ChartData{Labels: make([]string, len(labels))}
	for i, l := range labels {
		data.Labels[i] = ValueLabel(l)
	}
	var sets []map[string]any
	if p.Decode(KeyDatasets, &sets) != nil {
		return ChartData{}, false
	}
	for _, s := range sets {
		data.Datasets = append(data.Datasets, datasetFromMap(s))
	}
	return data, true
}

func datasetFromMap(m map[string]any) Dataset {
	ds := Dataset{}
	ds.Label, _ = m["label"].(string)
	switch bg := m["backgroundColor"].(type) {
	case string:
		ds.BackgroundColor = bg
	case []any:
		ds.BackgroundColors = make([]string, len(bg))
		for i, c := range bg {
			ds.BackgroundColors[i], _ = c.(string)
		}
		if len(bg) > 0 {
			ds.BackgroundColor = ds.BackgroundColors[0]
		}
	}
	ds.BorderColor = firstString(m["borderColor"])
	if w, ok := m["borderWidth"].(float64); ok {
		ds.BorderWidth = int(w)
	}
	if values, ok := m["data"].([]any); ok {
		ds.Data = make([]float64, len(values))
		for i, v := range values {
			if f, ok := v.(float64); ok {
				ds.Data[i] = f
			}
		}
	}
	return ds
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			s, _ := t[0].(string)
			return s
		}
	}
	return ""
}

// Set returns a copy of the payload with key replaced by value.
func (p *Payload) Set(key string, value any) (*Payload, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key, err)
	}
	out := p.Clone()
	if _, ok := out.raw[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.raw[key] = b
	switch key {
	case KeyRecords:
		out.records = decodeRecords(b)
	case KeyResults:
		out.results = decodeResults(b)
	}
	return out, nil
}

// WithChartDefinition embeds def under chartDefinition.
func (p *Payload) WithChartDefinition(def ChartDefinition) (*Payload, error) {
	return p.Set(KeyChartDefinition, def)
}

// Clone returns a deep copy that shares nothing with p.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return &Payload{raw: map[string]json.RawMessage{}}
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return &Payload{raw: map[string]json.RawMessage{}}
	}
	out := &Payload{}
	if err := out.UnmarshalJSON(b); err != nil {
		return &Payload{raw: map[string]json.RawMessage{}}
	}
	return out
}
