package features

import (
	"fmt"
	"strings"

	"snowdensity/internal/types"
)

// SnowClass is the canonical code of a Sturm et al. (1995) snow class.
type SnowClass int

const (
	Unclassified SnowClass = iota
	Alpine
	Maritime
	Prairie
	Tundra
	Taiga
	Ephemeral
)

var classNames = map[SnowClass]string{
	Alpine:    "alpine",
	Maritime:  "maritime",
	Prairie:   "prairie",
	Tundra:    "tundra",
	Taiga:     "taiga",
	Ephemeral: "ephemeral",
}

func (c SnowClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unclassified"
}

// Vocabulary is the closed set of classes a model accepts.
type Vocabulary struct {
	classes []SnowClass
}

// NewVocabulary builds a vocabulary over classes, in the order given.
func NewVocabulary(classes ...SnowClass) Vocabulary {
	return Vocabulary{classes: append([]SnowClass(nil), classes...)}
}

// SturmVocabulary covers the classes with published Sturm parameters.
var SturmVocabulary = NewVocabulary(Alpine, Maritime, Prairie, Tundra, Taiga)

// LearnedVocabulary covers the classes seen when training the learned model.
var LearnedVocabulary = NewVocabulary(Alpine, Maritime, Prairie, Tundra, Taiga, Ephemeral)

// Names lists the labels accepted by the vocabulary.
func (v Vocabulary) Names() []string {
	names := make([]string, len(v.classes))
	for i, c := range v.classes {
		names[i] = c.String()
	}
	return names
}

// Contains reports whether c belongs to the vocabulary.
func (v Vocabulary) Contains(c SnowClass) bool {
	for _, known := range v.classes {
		if known == c {
			return true
		}
	}
	return false
}

// Parse maps a label to its code. Matching is case-insensitive and exact
// apart from surrounding whitespace.
func (v Vocabulary) Parse(label string) (SnowClass, error) {
	needle := strings.ToLower(strings.TrimSpace(label))
	for _, c := range v.classes {
		if c.String() == needle {
			return c, nil
		}
	}
	return Unclassified, types.NewAppErrorWithDetails(types.ErrCodeFeatureUnknownSnowClass,
		fmt.Sprintf("unknown snow class %q; valid options: %s", label, strings.Join(v.Names(), ", ")),
		nil, map[string]any{"value": label, "valid": v.Names()})
}

// ParseValue is Parse for a raw cell value.
func (v Vocabulary) ParseValue(raw any) (SnowClass, error) {
	switch x := raw.(type) {
	case string:
		return v.Parse(x)
	case *string:
		if x != nil {
			return v.Parse(*x)
		}
	}
	return Unclassified, featureError(types.ErrCodeFeatureUnknownSnowClass, raw,
		"snow class must be a text label, got %T", raw)
}
