// Package path decides where a student goes next in a course.
//
// A course is a static Graph of concept nodes in authored order plus a list
// of conditional branches. A StudentPath is one student's position in that
// graph. Every operation takes the current StudentPath by value and returns
// the next one; validation happens before any change, so a failed call leaves
// the caller's state untouched.
package path

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrUnknownBranchCondition is returned for an unrecognized condition tag.
	ErrUnknownBranchCondition = errors.New("path: unknown branch condition")
	// ErrMissingConceptNode is returned when a branch or path references a node
	// that is not part of the course graph.
	ErrMissingConceptNode = errors.New("path: missing concept node")
	// ErrUnknownBranch is returned when an action names a branch the course does not define.
	ErrUnknownBranch = errors.New("path: unknown branch")
	// ErrInvalidAction is returned for unknown actions or actions that do not
	// fit the branch or position they target.
	ErrInvalidAction = errors.New("path: invalid action")
	// ErrInvalidGraph is returned by Graph.Validate for malformed graphs.
	ErrInvalidGraph = errors.New("path: invalid graph")
)

// ConceptNode is one unit of the course path.
type ConceptNode struct {
	ID            string   `json:"id" yaml:"id"`
	ConceptKey    string   `json:"concept_key" yaml:"concept_key"`
	ModuleID      string   `json:"module_id" yaml:"module_id"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Difficulty    int      `json:"difficulty" yaml:"difficulty"`         // 1-10
	EstimatedTime int      `json:"estimated_time" yaml:"estimated_time"` // minutes
}

// BranchType classifies where a branch leads.
type BranchType string

const (
	BranchRemedial    BranchType = "remedial"
	BranchAdvanced    BranchType = "advanced"
	BranchAlternative BranchType = "alternative"
)

func (t BranchType) valid() bool {
	switch t {
	case BranchRemedial, BranchAdvanced, BranchAlternative:
		return true
	}
	return false
}

// PathBranch is a conditional redirect to another module.
type PathBranch struct {
	ID             string
	Condition      Condition
	TargetModuleID string
	BranchType     BranchType
}

// Graph is a course's static path definition. Node and branch order is the
// authored order.
type Graph struct {
	CourseID string
	Nodes    []ConceptNode
	Branches []PathBranch
}

// Validate checks that the graph is internally consistent.
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("%w: course %q has no nodes", ErrInvalidGraph, g.CourseID)
	}

	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidGraph)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, n.ID)
		}
		ids[n.ID] = struct{}{}
	}
	for _, n := range g.Nodes {
		for _, p := range n.Prerequisites {
			if _, ok := ids[p]; !ok {
				return fmt.Errorf("%w: node %q requires %q", ErrMissingConceptNode, n.ID, p)
			}
		}
	}

	branchIDs := make(map[string]struct{}, len(g.Branches))
	for _, b := range g.Branches {
		if _, dup := branchIDs[b.ID]; dup {
			return fmt.Errorf("%w: duplicate branch id %q", ErrInvalidGraph, b.ID)
		}
		branchIDs[b.ID] = struct{}{}
		if err := g.validateBranch(b); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) validateBranch(b PathBranch) error {
	if !b.BranchType.valid() {
		return fmt.Errorf("%w: branch %q has type %q", ErrInvalidGraph, b.ID, b.BranchType)
	}
	if _, err := SpecOf(b.Condition); err != nil {
		return fmt.Errorf("branch %q: %w", b.ID, err)
	}
	if _, ok := g.moduleIndex(b.TargetModuleID); !ok {
		return fmt.Errorf("%w: branch %q targets module %q", ErrMissingConceptNode, b.ID, b.TargetModuleID)
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (ConceptNode, bool) {
	i := g.index(id)
	if i < 0 {
		return ConceptNode{}, false
	}
	return g.Nodes[i], true
}

// Branch returns the branch with the given id.
func (g *Graph) Branch(id string) (PathBranch, bool) {
	for _, b := range g.Branches {
		if b.ID == id {
			return b, true
		}
	}
	return PathBranch{}, false
}

// TargetNode returns the node a branch leads to.
func (g *Graph) TargetNode(b PathBranch) (ConceptNode, bool) {
	i, ok := g.moduleIndex(b.TargetModuleID)
	if !ok {
		return ConceptNode{}, false
	}
	return g.Nodes[i], true
}

// index returns the authored position of a node id, or -1.
func (g *Graph) index(id string) int {
	return slices.IndexFunc(g.Nodes, func(n ConceptNode) bool { return n.ID == id })
}

// moduleIndex returns the authored position of the first node in moduleID.
func (g *Graph) moduleIndex(moduleID string) (int, bool) {
	i := slices.IndexFunc(g.Nodes, func(n ConceptNode) bool { return n.ModuleID == moduleID })
	return i, i >= 0
}

// BranchRecord is one entry in a student's branch history.
type BranchRecord struct {
	BranchID string    `json:"branch_id"`
	TakenAt  time.Time `json:"taken_at"`
	Reason   string    `json:"reason"`
}

// StudentPath is one student's position in a course graph.
// CompletedNodes and SkippedNodes are sets kept in insertion order.
type StudentPath struct {
	CurrentNodeID  string         `json:"current_node_id"`
	CompletedNodes []string       `json:"completed_nodes"`
	SkippedNodes   []string       `json:"skipped_nodes"`
	BranchHistory  []BranchRecord `json:"branch_history"`
	SuggestedPath  []string       `json:"suggested_path"`
}

// NewStudentPath places a student at the first authored node.
func NewStudentPath(g *Graph) StudentPath {
	sp := StudentPath{
		CompletedNodes: []string{},
		SkippedNodes:   []string{},
		BranchHistory:  []BranchRecord{},
		SuggestedPath:  make([]string, 0, len(g.Nodes)),
	}
	for _, n := range g.Nodes {
		sp.SuggestedPath = append(sp.SuggestedPath, n.ID)
	}
	if len(g.Nodes) > 0 {
		sp.CurrentNodeID = g.Nodes[0].ID
	}
	return sp
}

// clone returns a deep copy so returned paths never alias the input.
func (sp StudentPath) clone() StudentPath {
	out := sp
	out.CompletedNodes = slices.Clone(sp.CompletedNodes)
	out.SkippedNodes = slices.Clone(sp.SkippedNodes)
	out.BranchHistory = slices.Clone(sp.BranchHistory)
	out.SuggestedPath = slices.Clone(sp.SuggestedPath)
	return out
}

// IsCompleted reports whether nodeID has been completed.
func (sp StudentPath) IsCompleted(nodeID string) bool {
	return slices.Contains(sp.CompletedNodes, nodeID)
}

// IsSkipped reports whether nodeID has been skipped.
func (sp StudentPath) IsSkipped(nodeID string) bool {
	return slices.Contains(sp.SkippedNodes, nodeID)
}

func (sp StudentPath) settled(nodeID string) bool {
	return sp.IsCompleted(nodeID) || sp.IsSkipped(nodeID)
}

func addUnique(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	return append(set, id)
}
