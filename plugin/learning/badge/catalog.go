// Package badge decides which catalog badges a student has newly earned.
//
// The catalog is an immutable registry built once and passed to Evaluate, so
// callers and tests can supply their own. Evaluation is read-only; awarding
// the returned ids is left to the gamification package.
package badge

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/google/cel-go/cel"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownRequirement is returned for requirement types the engine cannot evaluate.
	ErrUnknownRequirement = errors.New("badge: unknown requirement type")
	// ErrDuplicateBadge is returned when a catalog lists the same id twice.
	ErrDuplicateBadge = errors.New("badge: duplicate badge id")
	// ErrInvalidBadge is returned for catalog entries without an id.
	ErrInvalidBadge = errors.New("badge: invalid badge")
	// ErrInvalidExpression is returned when an expression requirement does not
	// compile to a boolean.
	ErrInvalidExpression = errors.New("badge: invalid expression")
)

// RequirementType selects the predicate a badge is evaluated with.
type RequirementType string

const (
	RequirementModuleComplete RequirementType = "module_complete"
	RequirementTotalModules   RequirementType = "total_modules"
	RequirementCourseComplete RequirementType = "course_complete"
	RequirementStreakDays     RequirementType = "streak_days"
	RequirementPerfectScore   RequirementType = "perfect_score"
	RequirementAccuracy       RequirementType = "accuracy"
	RequirementModulesInDay   RequirementType = "modules_in_day"
	RequirementXPEarned       RequirementType = "xp_earned"
	// RequirementExpression evaluates a CEL boolean over the progress variables.
	RequirementExpression RequirementType = "expression"
)

// Requirement is the unlock condition of a badge.
type Requirement struct {
	Type       RequirementType `json:"type" yaml:"type"`
	Value      float64         `json:"value" yaml:"value"`
	Expression string          `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Badge is an immutable catalog entry.
type Badge struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Category    string      `json:"category" yaml:"category"`
	Requirement Requirement `json:"requirement" yaml:"requirement"`
	XPReward    int         `json:"xp_reward" yaml:"xp_reward"`
}

// Catalog is an ordered, validated set of badges. It is safe for concurrent use.
type Catalog struct {
	badges   []Badge
	programs map[string]cel.Program
}

// NewCatalog validates badges and compiles their expressions.
// Catalog order is the order given.
func NewCatalog(badges []Badge) (*Catalog, error) {
	c := &Catalog{
		badges:   slices.Clone(badges),
		programs: make(map[string]cel.Program),
	}

	seen := make(map[string]struct{}, len(badges))
	for _, b := range c.badges {
		if b.ID == "" {
			return nil, fmt.Errorf("%w: empty id", ErrInvalidBadge)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBadge, b.ID)
		}
		seen[b.ID] = struct{}{}

		switch b.Requirement.Type {
		case RequirementModuleComplete, RequirementTotalModules, RequirementCourseComplete,
			RequirementStreakDays, RequirementPerfectScore, RequirementAccuracy,
			RequirementModulesInDay, RequirementXPEarned:
		case RequirementExpression:
			prg, err := compile(b.Requirement.Expression)
			if err != nil {
				return nil, fmt.Errorf("badge %q: %w", b.ID, err)
			}
			c.programs[b.ID] = prg
		default:
			return nil, fmt.Errorf("%w: badge %q has %q", ErrUnknownRequirement, b.ID, b.Requirement.Type)
		}
	}
	return c, nil
}

// Badges returns the catalog entries in order.
func (c *Catalog) Badges() []Badge {
	return slices.Clone(c.badges)
}

// Get returns the badge with the given id.
func (c *Catalog) Get(id string) (Badge, bool) {
	i := slices.IndexFunc(c.badges, func(b Badge) bool { return b.ID == id })
	if i < 0 {
		return Badge{}, false
	}
	return c.badges[i], true
}

// Len returns the number of badges.
func (c *Catalog) Len() int {
	return len(c.badges)
}

type catalogFile struct {
	Badges []Badge `yaml:"badges"`
}

// ParseCatalog decodes a YAML (or JSON) document with a top-level "badges" list.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode badge catalog")
	}
	return NewCatalog(f.Badges)
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read badge catalog %s", path)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in badge set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultBadges)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultBadges = []Badge{
	{ID: "first-steps", Name: "First Steps", Description: "Complete your first module", Category: "progress",
		Requirement: Requirement{Type: RequirementModuleComplete, Value: 1}, XPReward: 25},
	{ID: "module-explorer", Name: "Module Explorer", Description: "Complete 10 modules", Category: "progress",
		Requirement: Requirement{Type: RequirementTotalModules, Value: 10}, XPReward: 100},
	{ID: "course-graduate", Name: "Course Graduate", Description: "Complete a full course", Category: "progress",
		Requirement: Requirement{Type: RequirementCourseComplete, Value: 1}, XPReward: 250},
	{ID: "streak-3", Name: "On a Roll", Description: "Keep a 3-day streak", Category: "consistency",
		Requirement: Requirement{Type: RequirementStreakDays, Value: 3}, XPReward: 30},
	{ID: "streak-7", Name: "Week Warrior", Description: "Keep a 7-day streak", Category: "consistency",
		Requirement: Requirement{Type: RequirementStreakDays, Value: 7}, XPReward: 75},
	{ID: "streak-30", Name: "Unstoppable", Description: "Keep a 30-day streak", Category: "consistency",
		Requirement: Requirement{Type: RequirementStreakDays, Value: 30}, XPReward: 300},
	{ID: "perfectionist", Name: "Perfectionist", Description: "Score 100% on an assessment", Category: "mastery",
		Requirement: Requirement{Type: RequirementPerfectScore, Value: 1}, XPReward: 50},
	{ID: "perfect-5", Name: "Flawless", Description: "Score 100% on 5 assessments", Category: "mastery",
		Requirement: Requirement{Type: RequirementPerfectScore, Value: 5}, XPReward: 150},
	{ID: "sharpshooter", Name: "Sharpshooter", Description: "Reach 90% overall accuracy", Category: "mastery",
		Requirement: Requirement{Type: RequirementAccuracy, Value: 90}, XPReward: 100},
	{ID: "speed-learner", Name: "Speed Learner", Description: "Complete 3 modules in one day", Category: "dedication",
		Requirement: Requirement{Type: RequirementModulesInDay, Value: 3}, XPReward: 60},
	{ID: "xp-1000", Name: "Rising Star", Description: "Earn 1000 XP", Category: "dedication",
		Requirement: Requirement{Type: RequirementXPEarned, Value: 1000}, XPReward: 50},
}
