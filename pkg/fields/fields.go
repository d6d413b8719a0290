// Package fields infers field types from a sample record and proposes
// default chart selections.
package fields

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/hdsoft/unisearch/pkg/aggregate"
	"github.com/hdsoft/unisearch/pkg/payload"
)

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

type yearer interface {
	Year() int
}

// IsTechnical reports whether a field is internal and hidden from users.
func IsTechnical(name string) bool {
	return name == "id" || name == "has_linked_data" || strings.HasSuffix(name, "_info")
}

// LooksLikeNumeric reports whether v is a number value.
func LooksLikeNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// LooksLikeDate reports whether v is a date, exposes a year, or is a string
// starting with an ISO date.
func LooksLikeDate(v any) bool {
	switch t := v.(type) {
	case time.Time:
		return true
	case *time.Time:
		return t != nil
	case string:
		return isoDatePrefix.MatchString(t)
	case yearer:
		return true
	}
	return false
}

// Classify applies the inference policy: number, then date, then string.
func Classify(v any) payload.FieldType {
	if LooksLikeNumeric(v) {
		return payload.TypeNumber
	}
	if LooksLikeDate(v) {
		return payload.TypeDate
	}
	return payload.TypeString
}

// SampleRecord returns the record fields are inferred from.
func SampleRecord(p *payload.Payload) (payload.Record, bool) {
	records := p.ActiveRecords()
	if len(records) == 0 {
		return payload.Record{}, false
	}
	return records[0], true
}

// Inspect describes the fields of the payload's sample record.
func Inspect(p *payload.Payload) []payload.FieldDescriptor {
	rec, ok := SampleRecord(p)
	if !ok {
		return nil
	}
	return InspectRecord(rec)
}

func InspectRecord(rec payload.Record) []payload.FieldDescriptor {
	var out []payload.FieldDescriptor
	for _, name := range rec.Keys() {
		if IsTechnical(name) {
			continue
		}
		out = append(out, payload.FieldDescriptor{
			Name:  name,
			Type:  Classify(rec.Value(name)),
			Label: payload.Label(name),
		})
	}
	return out
}

// TypeMap returns name to type for every descriptor.
func TypeMap(fields []payload.FieldDescriptor) map[string]payload.FieldType {
	m := make(map[string]payload.FieldType, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Type
	}
	return m
}

func firstOfType(fields []payload.FieldDescriptor, t payload.FieldType) (string, bool) {
	for _, f := range fields {
		if f.Type == t {
			return f.Name, true
		}
	}
	return "", false
}

// DefaultDimension picks the first date field, else the first string field,
// else the first field.
func DefaultDimension(fields []payload.FieldDescriptor) string {
	if name, ok := firstOfType(fields, payload.TypeDate); ok {
		return name
	}
	if name, ok := firstOfType(fields, payload.TypeString); ok {
		return name
	}
	if len(fields) > 0 {
		return fields[0].Name
	}
	return ""
}

// DefaultMeasure picks the first numeric field, else the first field that is
// not the dimension.
func DefaultMeasure(fields []payload.FieldDescriptor, dimension string) string {
	if name, ok := firstOfType(fields, payload.TypeNumber); ok {
		return name
	}
	for _, f := range fields {
		if f.Name != dimension {
			return f.Name
		}
	}
	return ""
}

// DefaultSeries picks the grouping field for stacked charts.
func DefaultSeries(fields []payload.FieldDescriptor, dimension, measure string) string {
	var strs []string
	for _, f := range fields {
		if f.Type == payload.TypeString {
			strs = append(strs, f.Name)
		}
	}
	switch {
	case len(strs) >= 2:
		for _, name := range strs {
			if name != dimension {
				return name
			}
		}
	case len(strs) == 1 && strs[0] != dimension:
		return strs[0]
	}
	for _, f := range fields {
		if f.Name != dimension && f.Name != measure {
			return f.Name
		}
	}
	return ""
}

// Defaults bundles the default selections for a descriptor list.
type Defaults struct {
	Dimension string `json:"dimension"`
	Measure   string `json:"measure"`
	Series    string `json:"series"`
}

func DefaultsFor(fields []payload.FieldDescriptor) Defaults {
	d := Defaults{Dimension: DefaultDimension(fields)}
	d.Measure = DefaultMeasure(fields, d.Dimension)
	d.Series = DefaultSeries(fields, d.Dimension, d.Measure)
	return d
}

func isNumeric(fields []payload.FieldDescriptor, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return f.Type == payload.TypeNumber
		}
	}
	return false
}

// AggregationsFor lists the aggregations offered for measure.
func AggregationsFor(fields []payload.FieldDescriptor, measure string) []aggregate.Kind {
	if !isNumeric(fields, measure) {
		return []aggregate.Kind{aggregate.None, aggregate.Count}
	}
	out := make([]aggregate.Kind, len(aggregate.Kinds))
	copy(out, aggregate.Kinds)
	return out
}

// ResolveAggregation keeps current unless it needs a numeric measure and
// measure is not numeric, in which case it becomes count.
func ResolveAggregation(fields []payload.FieldDescriptor, measure string, current aggregate.Kind) aggregate.Kind {
	if current.NumericOnly() && !isNumeric(fields, measure) {
		return aggregate.Count
	}
	return current
}
