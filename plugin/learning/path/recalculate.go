package path

import (
	"github.com/hrygo/learnengine/plugin/learning/performance"
)

// Ranks used by Recalculate; lower goes first.
const (
	rankRemediation = iota
	rankNeutral
	rankMastered
)

// Recalculate regenerates the suggested path for the nodes the student has
// not yet completed or skipped. The current node stays first. The rest are
// ordered greedily: at each step the lowest-ranked node whose prerequisites
// are already placed or settled is taken, ties broken by authored order.
// Remediation (struggling concepts and targets of matching remedial
// branches) is pulled forward and mastered concepts are pushed to the end.
func Recalculate(g *Graph, sp StudentPath, m performance.Metrics) []string {
	remedialTargets := make(map[string]struct{})
	for _, b := range g.Branches {
		if b.BranchType != BranchRemedial {
			continue
		}
		if ok, err := Matches(b.Condition, m); err != nil || !ok {
			continue
		}
		if i, found := g.moduleIndex(b.TargetModuleID); found {
			remedialTargets[g.Nodes[i].ID] = struct{}{}
		}
	}

	rank := func(n ConceptNode) int {
		if _, ok := remedialTargets[n.ID]; ok {
			return rankRemediation
		}
		switch {
		case m.IsStruggling(n.ConceptKey):
			return rankRemediation
		case m.IsMastered(n.ConceptKey):
			return rankMastered
		default:
			return rankNeutral
		}
	}

	placed := make(map[string]struct{})
	out := make([]string, 0, len(g.Nodes))
	if _, ok := g.Node(sp.CurrentNodeID); ok && !sp.settled(sp.CurrentNodeID) {
		out = append(out, sp.CurrentNodeID)
		placed[sp.CurrentNodeID] = struct{}{}
	}

	var remaining []int
	for i, n := range g.Nodes {
		if _, ok := placed[n.ID]; ok || sp.settled(n.ID) {
			continue
		}
		remaining = append(remaining, i)
	}

	available := func(n ConceptNode) bool {
		for _, p := range n.Prerequisites {
			if _, ok := placed[p]; ok {
				continue
			}
			if sp.settled(p) {
				continue
			}
			return false
		}
		return true
	}

	for len(remaining) > 0 {
		best, bestAvail := -1, false
		for pos, i := range remaining {
			n := g.Nodes[i]
			avail := available(n)
			switch {
			case best < 0:
			case avail && !bestAvail:
			case avail == bestAvail && rank(n) < rank(g.Nodes[remaining[best]]):
			default:
				continue
			}
			best, bestAvail = pos, avail
		}

		id := g.Nodes[remaining[best]].ID
		out = append(out, id)
		placed[id] = struct{}{}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return out
}
