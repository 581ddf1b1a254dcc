package path

import (
	"fmt"
	"slices"
	"time"

	"github.com/hrygo/learnengine/plugin/learning/performance"
)

// Recommendation is the outcome of Evaluate. Branch is only a suggestion;
// nothing is applied until the caller executes an action.
type Recommendation struct {
	Branch     *PathBranch `json:"-"`
	BranchID   string      `json:"branch_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	NextNodeID string      `json:"next_node_id,omitempty"`
	Terminal   bool        `json:"terminal"`
}

// Evaluate scans the course branches in authored order and recommends the
// first one whose condition matches m, alongside the default next node.
func Evaluate(g *Graph, sp StudentPath, m performance.Metrics) (Recommendation, error) {
	var rec Recommendation

	for i := range g.Branches {
		b := g.Branches[i]
		ok, err := Matches(b.Condition, m)
		if err != nil {
			return Recommendation{}, fmt.Errorf("branch %q: %w", b.ID, err)
		}
		if !ok {
			continue
		}
		if _, found := g.moduleIndex(b.TargetModuleID); !found {
			return Recommendation{}, fmt.Errorf("%w: branch %q targets module %q", ErrMissingConceptNode, b.ID, b.TargetModuleID)
		}
		rec.Branch = &b
		rec.BranchID = b.ID
		rec.Reason = Describe(b.Condition)
		break
	}

	next, ok := NextNode(g, sp)
	rec.NextNodeID = next
	rec.Terminal = !ok
	return rec, nil
}

// NextNode returns the default next node along the unconditioned path: the
// first unsettled node after the current one in suggested order, falling
// back to an earlier unsettled node. Among candidates, nodes whose
// prerequisites are all settled (or are the current node) win. It reports
// false at the terminal node.
func NextNode(g *Graph, sp StudentPath) (string, bool) {
	order := sp.SuggestedPath
	if len(order) == 0 {
		order = make([]string, 0, len(g.Nodes))
		for _, n := range g.Nodes {
			order = append(order, n.ID)
		}
	}

	pos := slices.Index(order, sp.CurrentNodeID)
	var candidates []string
	for _, id := range order[pos+1:] {
		if id != sp.CurrentNodeID && !sp.settled(id) {
			candidates = append(candidates, id)
		}
	}
	if pos > 0 {
		for _, id := range order[:pos] {
			if !sp.settled(id) {
				candidates = append(candidates, id)
			}
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	for _, id := range candidates {
		if prerequisitesMet(g, sp, id) {
			return id, true
		}
	}
	return candidates[0], true
}

func prerequisitesMet(g *Graph, sp StudentPath, nodeID string) bool {
	n, ok := g.Node(nodeID)
	if !ok {
		return false
	}
	for _, p := range n.Prerequisites {
		if p != sp.CurrentNodeID && !sp.settled(p) {
			return false
		}
	}
	return true
}

// ActionType names a path action.
type ActionType string

const (
	ActionAcceptRemedial  ActionType = "accept_remedial"
	ActionAcceptAdvanced  ActionType = "accept_advanced"
	ActionAcceptBranch    ActionType = "accept_branch"
	ActionDeclineBranch   ActionType = "decline_branch"
	ActionRecalculatePath ActionType = "recalculate_path"
	ActionSkipModule      ActionType = "skip_module"
)

// Action is a request to change a student's path.
type Action struct {
	Type     ActionType
	BranchID string
	// Reason overrides the history reason for accepted branches.
	Reason string
	// Metrics drive the ordering for recalculate_path.
	Metrics performance.Metrics
}

// Execute applies action to sp. Every check runs before the copy is
// modified: on error the returned path equals sp.
func Execute(g *Graph, sp StudentPath, action Action, now time.Time) (StudentPath, error) {
	current := g.index(sp.CurrentNodeID)
	if current < 0 {
		return sp, fmt.Errorf("%w: current node %q", ErrMissingConceptNode, sp.CurrentNodeID)
	}

	switch action.Type {
	case ActionAcceptRemedial, ActionAcceptAdvanced, ActionAcceptBranch:
		b, target, err := resolveBranch(g, action)
		if err != nil {
			return sp, err
		}
		return takeBranch(g, sp, b, current, target, action.Reason, now), nil

	case ActionDeclineBranch:
		if _, _, err := resolveBranch(g, action); err != nil {
			return sp, err
		}
		// Declining is recorded by the caller; the path itself is unchanged.
		return sp.clone(), nil

	case ActionRecalculatePath:
		next := sp.clone()
		next.SuggestedPath = Recalculate(g, sp, action.Metrics)
		return next, nil

	case ActionSkipModule:
		if current+1 >= len(g.Nodes) {
			return sp, fmt.Errorf("%w: no node after %q to skip to", ErrInvalidAction, sp.CurrentNodeID)
		}
		next := sp.clone()
		next.SkippedNodes = addUnique(next.SkippedNodes, sp.CurrentNodeID)
		next.CurrentNodeID = g.Nodes[current+1].ID
		return next, nil

	default:
		return sp, fmt.Errorf("%w: %q", ErrInvalidAction, action.Type)
	}
}

// resolveBranch validates the branch an action refers to and returns it with
// the authored index of its target node.
func resolveBranch(g *Graph, action Action) (PathBranch, int, error) {
	b, ok := g.Branch(action.BranchID)
	if !ok {
		return PathBranch{}, 0, fmt.Errorf("%w: %q", ErrUnknownBranch, action.BranchID)
	}
	if _, err := SpecOf(b.Condition); err != nil {
		return PathBranch{}, 0, fmt.Errorf("branch %q: %w", b.ID, err)
	}
	target, found := g.moduleIndex(b.TargetModuleID)
	if !found {
		return PathBranch{}, 0, fmt.Errorf("%w: branch %q targets module %q", ErrMissingConceptNode, b.ID, b.TargetModuleID)
	}

	want := map[ActionType]BranchType{
		ActionAcceptRemedial: BranchRemedial,
		ActionAcceptAdvanced: BranchAdvanced,
	}
	if t, strict := want[action.Type]; strict && b.BranchType != t {
		return PathBranch{}, 0, fmt.Errorf("%w: %s on %s branch %q", ErrInvalidAction, action.Type, b.BranchType, b.ID)
	}
	return b, target, nil
}

func takeBranch(g *Graph, sp StudentPath, b PathBranch, current, target int, reason string, now time.Time) StudentPath {
	next := sp.clone()

	if b.BranchType == BranchAdvanced {
		// Completed and skipped stay disjoint.
		for i := current + 1; i < target; i++ {
			id := g.Nodes[i].ID
			if !next.IsCompleted(id) {
				next.SkippedNodes = addUnique(next.SkippedNodes, id)
			}
		}
	}

	if reason == "" {
		reason = Describe(b.Condition)
	}
	next.CurrentNodeID = g.Nodes[target].ID
	next.BranchHistory = append(next.BranchHistory, BranchRecord{
		BranchID: b.ID,
		TakenAt:  now,
		Reason:   reason,
	})
	return next
}

// CompleteNode marks the current node completed and advances along the
// default path. At the terminal node the student stays in place.
func CompleteNode(g *Graph, sp StudentPath) (StudentPath, error) {
	if g.index(sp.CurrentNodeID) < 0 {
		return sp, fmt.Errorf("%w: current node %q", ErrMissingConceptNode, sp.CurrentNodeID)
	}

	next := sp.clone()
	next.CompletedNodes = addUnique(next.CompletedNodes, sp.CurrentNodeID)
	if id, ok := NextNode(g, next); ok {
		next.CurrentNodeID = id
	}
	return next, nil
}

// IsFinished reports whether every node is either completed or skipped.
func IsFinished(g *Graph, sp StudentPath) bool {
	for _, n := range g.Nodes {
		if !sp.settled(n.ID) {
			return false
		}
	}
	return true
}
