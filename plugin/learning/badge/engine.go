package badge

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/hrygo/learnengine/plugin/learning/gamification"
)

// modulesPerCourse approximates course size for course_complete.
const modulesPerCourse = 10

// Progress is the cumulative activity a student's badges are judged on.
type Progress struct {
	CompletedModules  int     `json:"completed_modules"`
	CompletedChapters int     `json:"completed_chapters"`
	PerfectScores     int     `json:"perfect_scores"`
	Accuracy          float64 `json:"accuracy"`
	// ModulesToday is the caller's count of modules completed on the current day.
	ModulesToday int `json:"modules_today"`
}

// Variables exposed to expression requirements.
var celVariables = []cel.EnvOption{
	cel.Variable("completed_modules", cel.IntType),
	cel.Variable("completed_chapters", cel.IntType),
	cel.Variable("perfect_scores", cel.IntType),
	cel.Variable("accuracy", cel.DoubleType),
	cel.Variable("modules_today", cel.IntType),
	cel.Variable("total_xp", cel.IntType),
	cel.Variable("level", cel.IntType),
	cel.Variable("current_streak", cel.IntType),
	cel.Variable("longest_streak", cel.IntType),
	cel.Variable("badge_count", cel.IntType),
}

func compile(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	env, err := cel.NewEnv(celVariables...)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q yields %s, want bool", ErrInvalidExpression, expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return prg, nil
}

func activation(p Progress, g gamification.State) map[string]any {
	return map[string]any{
		"completed_modules":  int64(p.CompletedModules),
		"completed_chapters": int64(p.CompletedChapters),
		"perfect_scores":     int64(p.PerfectScores),
		"accuracy":           p.Accuracy,
		"modules_today":      int64(p.ModulesToday),
		"total_xp":           int64(g.TotalXP),
		"level":              int64(g.Level),
		"current_streak":     int64(g.CurrentStreak),
		"longest_streak":     int64(g.LongestStreak),
		"badge_count":        int64(len(g.Badges)),
	}
}

// Evaluate returns, in catalog order, the ids of badges the student does not
// hold yet and now qualifies for. It never modifies its inputs.
func Evaluate(c *Catalog, p Progress, g gamification.State) ([]string, error) {
	var earned []string
	var vars map[string]any

	for _, b := range c.badges {
		if g.HasBadge(b.ID) {
			continue
		}

		var ok bool
		if prg, isExpr := c.programs[b.ID]; isExpr {
			if vars == nil {
				vars = activation(p, g)
			}
			out, _, err := prg.Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("badge %q: %w", b.ID, err)
			}
			ok, _ = out.Value().(bool)
		} else {
			ok = qualifies(b.Requirement, p, g)
		}

		if ok {
			earned = append(earned, b.ID)
		}
	}
	return earned, nil
}

func qualifies(r Requirement, p Progress, g gamification.State) bool {
	switch r.Type {
	case RequirementModuleComplete, RequirementTotalModules:
		return float64(p.CompletedModules) >= r.Value
	case RequirementCourseComplete:
		return p.CompletedChapters > 0 && float64(p.CompletedModules) >= r.Value*modulesPerCourse
	case RequirementStreakDays:
		return float64(g.LongestStreak) >= r.Value
	case RequirementPerfectScore:
		return float64(p.PerfectScores) >= r.Value
	case RequirementAccuracy:
		return p.Accuracy >= r.Value
	case RequirementModulesInDay:
		return float64(p.ModulesToday) >= r.Value
	case RequirementXPEarned:
		return float64(g.TotalXP) >= r.Value
	}
	return false
}
