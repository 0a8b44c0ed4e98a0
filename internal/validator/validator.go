// Package validator implements the Architecture Validator (§4.I): a
// declarative set of bounded contexts checked against the dependency
// graph by a closed set of rule variants, producing RuleViolation
// records without ever mutating the graph.
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/standardbeagle/repoindex/internal/graph"
	"github.com/standardbeagle/repoindex/internal/types"
)

// BoundedContext declares a named grouping of modules and the
// dependencies it is, or is not, allowed to have.
type BoundedContext struct {
	ID                     string
	Name                   string
	Modules                []string // path-prefix or path-substring matches
	Dependencies           []string
	ProhibitedDependencies []string
}

// ValidationContext bundles the graph plus the auxiliary lookup tables
// rules need, per §4's ValidationContext description. It is read-only:
// no rule may mutate the graph it wraps.
type ValidationContext struct {
	Graph    *graph.Graph
	Contexts []BoundedContext
}

// Rule is a closed tagged variant: DependencyRule, NamingRule, or
// CustomRule, per the REDESIGN FLAGS decision to avoid a string-kind
// dispatch. Every concrete type below implements it.
type Rule interface {
	// Check evaluates the rule against vc and returns any violations.
	Check(vc *ValidationContext) []types.RuleViolation
	// Name identifies the rule for RuleViolation.Rule.
	Name() string
}

// DependencyRule checks bounded-context prohibited-dependency
// constraints, and, when NoCircular is set, delegates cycle detection to
// the dependency graph's findCycles (the built-in "no-circular-deps"
// rule).
type DependencyRule struct {
	RuleName   string
	NoCircular bool
	Severity   types.Severity
}

// NewNoCircularDepsRule returns the built-in no-circular-deps rule.
func NewNoCircularDepsRule() DependencyRule {
	return DependencyRule{RuleName: "no-circular-deps", NoCircular: true, Severity: types.SeverityError}
}

// NewProhibitedDependencyRule returns a rule enforcing every bounded
// context's ProhibitedDependencies.
func NewProhibitedDependencyRule() DependencyRule {
	return DependencyRule{RuleName: "prohibited-dependency", Severity: types.SeverityError}
}

func (r DependencyRule) Name() string { return r.RuleName }

func (r DependencyRule) Check(vc *ValidationContext) []types.RuleViolation {
	var violations []types.RuleViolation

	if r.NoCircular {
		for _, cycle := range vc.Graph.FindCycles() {
			violations = append(violations, types.RuleViolation{
				ID:       uuid.NewString(),
				Rule:     r.RuleName,
				Severity: r.Severity,
				Message:  fmt.Sprintf("circular dependency: %s", strings.Join(cycle.Path, " -> ")),
			})
		}
		return violations
	}

	for _, ctx := range vc.Contexts {
		for _, prohibited := range ctx.ProhibitedDependencies {
			violations = append(violations, r.checkProhibited(vc, ctx, prohibited)...)
		}
	}
	return violations
}

// checkProhibited reports a violation whenever any node in ctx.Modules
// has an edge into any node whose path contains the prohibited module
// substring, per §4.I.
func (r DependencyRule) checkProhibited(vc *ValidationContext, ctx BoundedContext, prohibited string) []types.RuleViolation {
	var violations []types.RuleViolation
	for _, modulePrefix := range ctx.Modules {
		for _, nodePath := range vc.Graph.AllPaths() {
			if !strings.Contains(nodePath, modulePrefix) {
				continue
			}
			for _, dep := range vc.Graph.DependenciesOf(nodePath) {
				if strings.Contains(dep, prohibited) {
					violations = append(violations, types.RuleViolation{
						ID:         uuid.NewString(),
						Rule:       r.RuleName,
						Severity:   r.Severity,
						Message:    fmt.Sprintf("context %q: %s depends on prohibited module %q via %s", ctx.Name, nodePath, prohibited, dep),
						Suggestion: fmt.Sprintf("remove the edge from %s into %s, or drop %q from prohibitedDependencies", nodePath, dep, prohibited),
					})
				}
			}
		}
	}
	return violations
}

// NamingRule checks every graph node's path against a regular
// expression, the built-in "naming-convention" rule.
type NamingRule struct {
	RuleName string
	Pattern  *regexp.Regexp
	Severity types.Severity
}

// NewNamingRule compiles pattern and returns a NamingRule, or an error
// if the pattern is invalid.
func NewNamingRule(name, pattern string, severity types.Severity) (NamingRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return NamingRule{}, fmt.Errorf("compile naming pattern: %w", err)
	}
	return NamingRule{RuleName: name, Pattern: re, Severity: severity}, nil
}

func (r NamingRule) Name() string { return r.RuleName }

func (r NamingRule) Check(vc *ValidationContext) []types.RuleViolation {
	var violations []types.RuleViolation
	for _, path := range vc.Graph.AllPaths() {
		if !r.Pattern.MatchString(path) {
			violations = append(violations, types.RuleViolation{
				ID:       uuid.NewString(),
				Rule:     r.RuleName,
				Severity: r.Severity,
				Message:  fmt.Sprintf("%s does not match naming convention %s", path, r.Pattern.String()),
			})
		}
	}
	return violations
}

// CustomRule wraps an arbitrary predicate over the ValidationContext,
// for rules that don't fit DependencyRule or NamingRule.
type CustomRule struct {
	RuleName  string
	Predicate func(vc *ValidationContext) []types.RuleViolation
}

func (r CustomRule) Name() string { return r.RuleName }

func (r CustomRule) Check(vc *ValidationContext) []types.RuleViolation {
	if r.Predicate == nil {
		return nil
	}
	return r.Predicate(vc)
}

// Validate runs every rule against vc and returns the concatenated,
// rule-order-stable list of violations. It never mutates vc.Graph.
func Validate(vc *ValidationContext, rules []Rule) []types.RuleViolation {
	var all []types.RuleViolation
	for _, rule := range rules {
		all = append(all, rule.Check(vc)...)
	}
	return all
}
