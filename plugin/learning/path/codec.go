package path

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// branchDocument is the wire form of a PathBranch.
type branchDocument struct {
	ID             string        `json:"id" yaml:"id"`
	Condition      ConditionSpec `json:"condition" yaml:"condition"`
	TargetModuleID string        `json:"target_module_id" yaml:"target_module_id"`
	BranchType     BranchType    `json:"branch_type" yaml:"branch_type"`
}

// GraphDocument is the serialized form of a course graph as supplied by the
// content layer. It decodes from either JSON or YAML.
type GraphDocument struct {
	CourseID string           `json:"course_id" yaml:"course_id"`
	Nodes    []ConceptNode    `json:"nodes" yaml:"nodes"`
	Branches []branchDocument `json:"branches" yaml:"branches"`
}

// MarshalJSON encodes the branch with its tagged condition.
func (b PathBranch) MarshalJSON() ([]byte, error) {
	spec, err := SpecOf(b.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(branchDocument{
		ID:             b.ID,
		Condition:      spec,
		TargetModuleID: b.TargetModuleID,
		BranchType:     b.BranchType,
	})
}

// UnmarshalJSON decodes a branch, rejecting unknown condition tags.
func (b *PathBranch) UnmarshalJSON(data []byte) error {
	var doc branchDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	out, err := doc.branch()
	if err != nil {
		return err
	}
	*b = out
	return nil
}

func (d branchDocument) branch() (PathBranch, error) {
	cond, err := d.Condition.Condition()
	if err != nil {
		return PathBranch{}, fmt.Errorf("branch %q: %w", d.ID, err)
	}
	return PathBranch{
		ID:             d.ID,
		Condition:      cond,
		TargetModuleID: d.TargetModuleID,
		BranchType:     d.BranchType,
	}, nil
}

// Graph converts the document into a validated Graph.
func (d GraphDocument) Graph() (*Graph, error) {
	g := &Graph{
		CourseID: d.CourseID,
		Nodes:    d.Nodes,
		Branches: make([]PathBranch, 0, len(d.Branches)),
	}
	for _, bd := range d.Branches {
		b, err := bd.branch()
		if err != nil {
			return nil, err
		}
		g.Branches = append(g.Branches, b)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Document converts g into its serialized form.
func (g *Graph) Document() (GraphDocument, error) {
	doc := GraphDocument{
		CourseID: g.CourseID,
		Nodes:    g.Nodes,
		Branches: make([]branchDocument, 0, len(g.Branches)),
	}
	for _, b := range g.Branches {
		spec, err := SpecOf(b.Condition)
		if err != nil {
			return GraphDocument{}, fmt.Errorf("branch %q: %w", b.ID, err)
		}
		doc.Branches = append(doc.Branches, branchDocument{
			ID:             b.ID,
			Condition:      spec,
			TargetModuleID: b.TargetModuleID,
			BranchType:     b.BranchType,
		})
	}
	return doc, nil
}

// ParseGraph decodes a course graph from JSON or YAML and validates it.
func ParseGraph(data []byte) (*Graph, error) {
	var doc GraphDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode course graph")
	}
	return doc.Graph()
}

// MarshalGraph encodes g as JSON for storage.
func MarshalGraph(g *Graph) ([]byte, error) {
	doc, err := g.Document()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
