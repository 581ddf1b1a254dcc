package performance

import "sort"

// ConceptStat aggregates graded responses for one concept.
type ConceptStat struct {
	ConceptKey string  `json:"concept_key"`
	Attempts   int     `json:"attempts"`
	Correct    int     `json:"correct"`
	Accuracy   float64 `json:"accuracy"` // percent of score over max score
}

// ConceptBreakdown returns per-concept statistics sorted by ascending
// accuracy, so the weakest concepts come first. Responses without a concept
// key or without a score are skipped.
func ConceptBreakdown(responses []Response) []ConceptStat {
	type acc struct {
		stat          ConceptStat
		score, points float64
	}
	byKey := make(map[string]*acc)

	for _, r := range responses {
		if !r.Graded() || r.ConceptKey == "" {
			continue
		}
		a, ok := byKey[r.ConceptKey]
		if !ok {
			a = &acc{stat: ConceptStat{ConceptKey: r.ConceptKey}}
			byKey[r.ConceptKey] = a
		}
		a.stat.Attempts++
		if r.IsCorrect {
			a.stat.Correct++
		}
		a.score += r.Score
		a.points += r.MaxScore
	}

	out := make([]ConceptStat, 0, len(byKey))
	for _, a := range byKey {
		a.stat.Accuracy = percent(a.score, a.points)
		out = append(out, a.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Accuracy != out[j].Accuracy {
			return out[i].Accuracy < out[j].Accuracy
		}
		return out[i].ConceptKey < out[j].ConceptKey
	})
	return out
}
