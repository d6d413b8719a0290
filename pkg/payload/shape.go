package payload

// Shape is a payload layout the chart builder knows how to read.
type Shape int

const (
	Unrecognized Shape = iota
	PreProcessed
	ChartDefinitionDriven
	LegacySelection
	AggregationResult
	MultiModel
	PlainRecords
)

func (s Shape) String() string {
	switch s {
	case PreProcessed:
		return "pre-processed"
	case ChartDefinitionDriven:
		return "chart-definition"
	case LegacySelection:
		return "legacy-selection"
	case AggregationResult:
		return "aggregation"
	case MultiModel:
		return "multi-model"
	case PlainRecords:
		return "plain-records"
	default:
		return "unrecognized"
	}
}

// Selection is the field selection supplied next to a payload. Either part
// may be nil, in which case the one embedded in the payload is used.
type Selection struct {
	Definition *ChartDefinition
	Config     *ReportConfig
}

// Resolve fills missing parts of the selection from the payload.
func (s Selection) Resolve(p *Payload) Selection {
	if s.Definition == nil {
		if def, ok := p.ChartDefinition(); ok {
			s.Definition = &def
		}
	}
	if s.Config == nil {
		if cfg, ok := p.Config(); ok {
			s.Config = &cfg
		}
	}
	return s
}

// Classify lists every shape p satisfies, in the order the builder must try
// them. A later shape is only a fallback for when an earlier one yields no
// data. An empty list means the payload is unrecognized.
func Classify(p *Payload, sel Selection) []Shape {
	if p == nil {
		return nil
	}
	sel = sel.Resolve(p)

	var shapes []Shape
	if p.Has(KeyLabels) && p.Has(KeyDatasets) {
		shapes = append(shapes, PreProcessed)
	}
	if sel.Definition != nil && sel.Definition.DimensionField != "" {
		shapes = append(shapes, ChartDefinitionDriven)
	}
	if sel.Config != nil && sel.Config.DimensionField != "" {
		shapes = append(shapes, LegacySelection)
	}
	if p.IsAggregation() && len(p.Records()) > 0 {
		shapes = append(shapes, AggregationResult)
	}
	if p.IsMultiModel() && len(p.Results()) > 0 {
		shapes = append(shapes, MultiModel)
	}
	if len(p.Records()) > 0 {
		shapes = append(shapes, PlainRecords)
	}
	return shapes
}
