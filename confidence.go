package lpscrape

import "unicode/utf8"

// Confidence is a heuristic trust score for an extracted record.
// Every value lies in [0, 1].
type Confidence struct {
	Score        float64 `json:"score"`
	Completeness float64 `json:"completeness"`
	Quality      float64 `json:"quality"`
}

// Scorer scores extracted records.
type Scorer interface {
	Score(r Record, schema *Schema) Confidence
}

// ConfidenceWeights configures the confidence heuristic.
//
// The score is Completeness*CompletenessWeight + Quality*QualityWeight,
// where completeness is the fraction of schema fields present and quality
// adds IndicatorWeight for each satisfied indicator:
//   - the identity field is present
//   - the description field is longer than DescriptionMinLen characters
//   - the features field is non-empty
//   - any classification field is present
type ConfidenceWeights struct {
	CompletenessWeight float64 `mapstructure:"completeness_weight"`
	QualityWeight      float64 `mapstructure:"quality_weight"`
	IndicatorWeight    float64 `mapstructure:"indicator_weight"`

	IdentityField        string   `mapstructure:"identity_field"`
	DescriptionField     string   `mapstructure:"description_field"`
	DescriptionMinLen    int      `mapstructure:"description_min_len"`
	FeaturesField        string   `mapstructure:"features_field"`
	ClassificationFields []string `mapstructure:"classification_fields"`
}

// DefaultConfidenceWeights returns weights tuned for DefaultSchema.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		CompletenessWeight:   0.7,
		QualityWeight:        0.3,
		IndicatorWeight:      0.25,
		IdentityField:        "product_name",
		DescriptionField:     "product_description",
		DescriptionMinLen:    20,
		FeaturesField:        "key_features",
		ClassificationFields: []string{"brand_name", "category"},
	}
}

// Ensure ConfidenceScorer implements Scorer at compile time.
var _ Scorer = (*ConfidenceScorer)(nil)

// ConfidenceScorer computes Confidence from a record and its schema.
// It is a pure function of its inputs.
type ConfidenceScorer struct {
	Weights ConfidenceWeights
}

// NewConfidenceScorer returns a scorer using w.
func NewConfidenceScorer(w ConfidenceWeights) *ConfidenceScorer {
	return &ConfidenceScorer{Weights: w}
}

// Score returns the confidence of r against schema. A schema with no fields
// scores zero.
func (s *ConfidenceScorer) Score(r Record, schema *Schema) Confidence {
	if schema == nil || len(schema.Fields) == 0 {
		return Confidence{}
	}

	var filled int
	for _, f := range schema.Fields {
		if r.Present(f.Name) {
			filled++
		}
	}
	completeness := float64(filled) / float64(len(schema.Fields))

	w := s.Weights
	var quality float64
	if s.hasField(schema, w.IdentityField) && r.Present(w.IdentityField) {
		quality += w.IndicatorWeight
	}
	if s.hasField(schema, w.DescriptionField) &&
		utf8.RuneCountInString(r.String(w.DescriptionField)) > w.DescriptionMinLen {
		quality += w.IndicatorWeight
	}
	if s.hasField(schema, w.FeaturesField) && r.Present(w.FeaturesField) {
		quality += w.IndicatorWeight
	}
	for _, name := range w.ClassificationFields {
		if s.hasField(schema, name) && r.Present(name) {
			quality += w.IndicatorWeight
			break
		}
	}
	quality = clamp(quality)

	return Confidence{
		Score:        clamp(completeness*w.CompletenessWeight + quality*w.QualityWeight),
		Completeness: clamp(completeness),
		Quality:      quality,
	}
}

func (s *ConfidenceScorer) hasField(schema *Schema, name string) bool {
	if name == "" {
		return false
	}
	_, ok := schema.Field(name)
	return ok
}

func clamp(v float64) float64 {
	switch {
	case v != v, v < 0: // NaN or negative
		return 0
	case v > 1:
		return 1
	}
	return v
}
