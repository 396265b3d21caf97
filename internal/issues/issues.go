// Package issues classifies article text into the issue category that
// dominates it, based on weighted keyword counts.
package issues

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is one issue bucket. Weight scales raw keyword counts so
// high-salience topics can dominate with fewer mentions.
type Category struct {
	Label    string
	Keywords []string
	Weight   float64
}

// DefaultCategories returns the built-in issue taxonomy. Order matters:
// under equal scores the earlier category keeps the label.
func DefaultCategories() []Category {
	return []Category{
		{
			Label:    "Unrest",
			Keywords: []string{"protest", "rally", "strike", "bandh", "agitation", "clash", "violence"},
			Weight:   2.0,
		},
		{
			Label:    "Corruption",
			Keywords: []string{"corruption", "scam", "bribe", "bribery", "kickback", "embezzlement"},
			Weight:   2.0,
		},
		{
			Label:    "Agriculture",
			Keywords: []string{"farmer", "farmers", "crop", "harvest", "irrigation", "msp", "drought"},
			Weight:   1.5,
		},
		{
			Label:    "Water",
			Keywords: []string{"water", "reservoir", "dam", "cauvery", "borewell"},
			Weight:   1.5,
		},
		{
			Label:    "Infrastructure",
			Keywords: []string{"road", "roads", "bridge", "metro", "highway", "flyover", "pothole"},
			Weight:   1.0,
		},
		{
			Label:    "Healthcare",
			Keywords: []string{"hospital", "doctor", "doctors", "clinic", "vaccine", "ambulance"},
			Weight:   1.0,
		},
		{
			Label:    "Education",
			Keywords: []string{"school", "schools", "college", "teacher", "teachers", "exam", "university"},
			Weight:   1.0,
		},
		{
			Label:    "Employment",
			Keywords: []string{"job", "jobs", "unemployment", "layoff", "layoffs", "hiring", "wages"},
			Weight:   1.0,
		},
	}
}

type compiledCategory struct {
	label    string
	weight   float64
	patterns []*regexp.Regexp
}

// Extractor scores text against a fixed, ordered category list. Keyword
// patterns are compiled once at construction.
type Extractor struct {
	categories []compiledCategory
}

// NewExtractor compiles the given categories. Keywords are matched as
// case-insensitive whole words.
func NewExtractor(categories []Category) (*Extractor, error) {
	compiled := make([]compiledCategory, 0, len(categories))
	for _, cat := range categories {
		cc := compiledCategory{label: cat.Label, weight: cat.Weight}
		for _, kw := range cat.Keywords {
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compile keyword %q for category %q: %w", kw, cat.Label, err)
			}
			cc.patterns = append(cc.patterns, re)
		}
		compiled = append(compiled, cc)
	}
	return &Extractor{categories: compiled}, nil
}

// MustNewExtractor is NewExtractor for the built-in taxonomy, which is
// known to compile.
func MustNewExtractor() *Extractor {
	e, err := NewExtractor(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return e
}

// Dominant returns the label of the category with the strictly greatest
// weighted keyword score in text, or nil when the text is empty or no
// category scores above zero. Under equal scores the first-seen category
// keeps the label.
func (e *Extractor) Dominant(text string) *string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	scores := e.Score(text)

	var dominant *string
	maxScore := 0.0
	for i := range e.categories {
		cat := &e.categories[i]
		if score := scores[cat.label]; score > maxScore {
			maxScore = score
			label := cat.label
			dominant = &label
		}
	}
	return dominant
}

// Score returns the weighted keyword score of every category for text,
// keyed by label.
func (e *Extractor) Score(text string) map[string]float64 {
	lowered := strings.ToLower(text)
	scores := make(map[string]float64, len(e.categories))
	for i := range e.categories {
		cat := &e.categories[i]
		count := 0
		for _, re := range cat.patterns {
			count += len(re.FindAllStringIndex(lowered, -1))
		}
		scores[cat.label] = float64(count) * cat.weight
	}
	return scores
}
