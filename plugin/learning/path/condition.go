package path

import (
	"fmt"

	"github.com/hrygo/learnengine/plugin/learning/performance"
)

// ConditionType is the wire tag of a branch condition.
type ConditionType string

const (
	ConditionAccuracyBelow     ConditionType = "accuracy_below"
	ConditionAccuracyAbove     ConditionType = "accuracy_above"
	ConditionConceptStruggling ConditionType = "concept_struggling"
	ConditionConceptMastered   ConditionType = "concept_mastered"
)

// Condition is the closed set of branch triggers. The unexported method
// keeps other packages from adding variants, so the type switch in Matches
// covers every implementation.
type Condition interface {
	Type() ConditionType
	isCondition()
}

// AccuracyBelow matches when overall accuracy is strictly below Threshold.
type AccuracyBelow struct {
	Threshold float64
}

// AccuracyAbove matches when overall accuracy is strictly above Threshold.
type AccuracyAbove struct {
	Threshold float64
}

// StrugglingConcept matches when ConceptKey is in the struggling set.
type StrugglingConcept struct {
	ConceptKey string
}

// MasteredConcept matches when ConceptKey is in the mastered set.
type MasteredConcept struct {
	ConceptKey string
}

func (AccuracyBelow) Type() ConditionType     { return ConditionAccuracyBelow }
func (AccuracyAbove) Type() ConditionType     { return ConditionAccuracyAbove }
func (StrugglingConcept) Type() ConditionType { return ConditionConceptStruggling }
func (MasteredConcept) Type() ConditionType   { return ConditionConceptMastered }

func (AccuracyBelow) isCondition()     {}
func (AccuracyAbove) isCondition()     {}
func (StrugglingConcept) isCondition() {}
func (MasteredConcept) isCondition()   {}

// Matches evaluates c against the student's current metrics.
func Matches(c Condition, m performance.Metrics) (bool, error) {
	switch c := c.(type) {
	case AccuracyBelow:
		return m.Accuracy < c.Threshold, nil
	case AccuracyAbove:
		return m.Accuracy > c.Threshold, nil
	case StrugglingConcept:
		return m.IsStruggling(c.ConceptKey), nil
	case MasteredConcept:
		return m.IsMastered(c.ConceptKey), nil
	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownBranchCondition, c)
	}
}

// Describe renders c as a short reason string for branch history.
func Describe(c Condition) string {
	switch c := c.(type) {
	case AccuracyBelow:
		return fmt.Sprintf("accuracy below %.0f%%", c.Threshold)
	case AccuracyAbove:
		return fmt.Sprintf("accuracy above %.0f%%", c.Threshold)
	case StrugglingConcept:
		return fmt.Sprintf("struggling with %s", c.ConceptKey)
	case MasteredConcept:
		return fmt.Sprintf("mastered %s", c.ConceptKey)
	default:
		return "unknown condition"
	}
}

// ConditionSpec is the loosely-typed wire form of a Condition.
type ConditionSpec struct {
	Type       ConditionType `json:"type" yaml:"type"`
	Threshold  *float64      `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	ConceptKey string        `json:"concept_key,omitempty" yaml:"concept_key,omitempty"`
}

// Condition converts the wire form into its typed variant.
func (s ConditionSpec) Condition() (Condition, error) {
	switch s.Type {
	case ConditionAccuracyBelow, ConditionAccuracyAbove:
		if s.Threshold == nil {
			return nil, fmt.Errorf("%w: %s requires a threshold", ErrInvalidGraph, s.Type)
		}
		if s.Type == ConditionAccuracyBelow {
			return AccuracyBelow{Threshold: *s.Threshold}, nil
		}
		return AccuracyAbove{Threshold: *s.Threshold}, nil
	case ConditionConceptStruggling, ConditionConceptMastered:
		if s.ConceptKey == "" {
			return nil, fmt.Errorf("%w: %s requires a concept key", ErrInvalidGraph, s.Type)
		}
		if s.Type == ConditionConceptStruggling {
			return StrugglingConcept{ConceptKey: s.ConceptKey}, nil
		}
		return MasteredConcept{ConceptKey: s.ConceptKey}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBranchCondition, s.Type)
	}
}

// SpecOf converts a typed condition back into its wire form.
func SpecOf(c Condition) (ConditionSpec, error) {
	switch c := c.(type) {
	case AccuracyBelow:
		th := c.Threshold
		return ConditionSpec{Type: ConditionAccuracyBelow, Threshold: &th}, nil
	case AccuracyAbove:
		th := c.Threshold
		return ConditionSpec{Type: ConditionAccuracyAbove, Threshold: &th}, nil
	case StrugglingConcept:
		return ConditionSpec{Type: ConditionConceptStruggling, ConceptKey: c.ConceptKey}, nil
	case MasteredConcept:
		return ConditionSpec{Type: ConditionConceptMastered, ConceptKey: c.ConceptKey}, nil
	default:
		return ConditionSpec{}, fmt.Errorf("%w: %T", ErrUnknownBranchCondition, c)
	}
}
