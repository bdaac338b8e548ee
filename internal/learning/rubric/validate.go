package rubric

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Tolerance bounds float comparisons in the quantitative invariants.
const Tolerance = 1e-6

// ValidationError lists everything wrong with an artifact. InvariantOnly is set
// when the object is structurally sound and only the point/weight sums disagree,
// which is the one case worth a repair round-trip.
type ValidationError struct {
	Kind          Kind
	Problems      []string
	InvariantOnly bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s artifact: %s", e.Kind, strings.Join(e.Problems, "; "))
}

// Validate checks the variant selected by Kind.
func (a *Artifact) Validate() error {
	if a == nil {
		return &ValidationError{Problems: []string{"artifact is nil"}}
	}
	switch a.Kind {
	case KindDescriptive:
		if a.Descriptive == nil || a.Quantitative != nil {
			return &ValidationError{Kind: a.Kind, Problems: []string{"variant body does not match kind"}}
		}
		if p := a.Descriptive.problems(); len(p) > 0 {
			return &ValidationError{Kind: a.Kind, Problems: p}
		}
	case KindQuantitative:
		if a.Quantitative == nil || a.Descriptive != nil {
			return &ValidationError{Kind: a.Kind, Problems: []string{"variant body does not match kind"}}
		}
		structural := a.Quantitative.structuralProblems()
		invariant := a.Quantitative.InvariantProblems()
		if len(structural)+len(invariant) > 0 {
			return &ValidationError{
				Kind:          a.Kind,
				Problems:      append(structural, invariant...),
				InvariantOnly: len(structural) == 0,
			}
		}
	default:
		return &ValidationError{Kind: a.Kind, Problems: []string{fmt.Sprintf("unknown kind %q", a.Kind)}}
	}
	return nil
}

// checkDomainSet reports missing, duplicate and unknown domains.
func checkDomainSet(field string, got []string) []string {
	var out []string
	if len(got) != len(Domains) {
		out = append(out, fmt.Sprintf("%s has %d entries, want %d", field, len(got), len(Domains)))
	}
	seen := map[string]int{}
	for _, d := range got {
		seen[d]++
		if !IsDomain(d) {
			out = append(out, fmt.Sprintf("%s has unknown domain %q", field, d))
		}
	}
	for _, d := range Domains {
		switch seen[d] {
		case 0:
			out = append(out, fmt.Sprintf("%s is missing domain %s", field, d))
		case 1:
		default:
			out = append(out, fmt.Sprintf("%s repeats domain %s", field, d))
		}
	}
	return out
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func (d *Descriptive) problems() []string {
	domains := make([]string, 0, len(d.Rubric))
	for _, c := range d.Rubric {
		domains = append(domains, c.Domain)
	}
	out := checkDomainSet("rubric", domains)

	for i, c := range d.Rubric {
		if blank(c.Criterion) {
			out = append(out, fmt.Sprintf("rubric[%d] criterion is empty", i))
		}
		for level, text := range map[string]string{"4": c.Level4, "3": c.Level3, "2": c.Level2, "1": c.Level1} {
			if blank(text) {
				out = append(out, fmt.Sprintf("rubric[%d] level %s descriptor is empty", i, level))
			}
		}
	}

	if len(d.Questions) == 0 {
		out = append(out, "questions is empty")
	}
	for i, q := range d.Questions {
		if !IsDomain(q.Domain) {
			out = append(out, fmt.Sprintf("questions[%d] has unknown domain %q", i, q.Domain))
		}
		if blank(q.Stem) {
			out = append(out, fmt.Sprintf("questions[%d] stem is empty", i))
		}
		if len(q.Options) != 4 {
			out = append(out, fmt.Sprintf("questions[%d] has %d options, want 4", i, len(q.Options)))
		}
		for j, o := range q.Options {
			if blank(o) {
				out = append(out, fmt.Sprintf("questions[%d] option %d is empty", i, j))
			}
		}
		if blank(q.Answer) {
			out = append(out, fmt.Sprintf("questions[%d] answer is empty", i))
		}
	}
	sort.Strings(out)
	return out
}

func (q *Quantitative) structuralProblems() []string {
	domains := make([]string, 0, len(q.RubricOverview))
	for _, o := range q.RubricOverview {
		domains = append(domains, o.Domain)
	}
	out := checkDomainSet("rubric_overview", domains)

	if blank(q.LessonTitle) {
		out = append(out, "lesson_title is empty")
	}
	for i, o := range q.RubricOverview {
		if o.Tasks < 0 || o.PointsPerTask < 0 || o.DomainMax < 0 {
			out = append(out, fmt.Sprintf("rubric_overview[%d] has negative counts", i))
		}
		if o.Weight < 0 || o.Weight > 1 {
			out = append(out, fmt.Sprintf("rubric_overview[%d] weight %g outside [0,1]", i, o.Weight))
		}
	}
	for domain, items := range q.TaskMatrix {
		if !IsDomain(domain) {
			out = append(out, fmt.Sprintf("task_matrix has unknown domain %q", domain))
		}
		for i, it := range items {
			if blank(it.Text()) {
				out = append(out, fmt.Sprintf("task_matrix[%s][%d] has no question, task or observation", domain, i))
			}
		}
	}
	if q.ScoringSystem.TotalPoints <= 0 {
		out = append(out, "scoring_system.total_points must be positive")
	}
	for domain := range q.ScoringSystem.Weights {
		if !IsDomain(domain) {
			out = append(out, fmt.Sprintf("scoring_system.weights has unknown domain %q", domain))
		}
	}
	for i, b := range q.ScoringSystem.Bands {
		if blank(b.Label) || b.Min > b.Max {
			out = append(out, fmt.Sprintf("scoring_system.bands[%d] is malformed", i))
		}
	}
	sort.Strings(out)
	return out
}

// InvariantProblems checks sum(domain_max) == total_points and sum(weights) == 1.
func (q *Quantitative) InvariantProblems() []string {
	var out []string
	var maxSum float64
	for _, o := range q.RubricOverview {
		maxSum += o.DomainMax
	}
	if math.Abs(maxSum-q.ScoringSystem.TotalPoints) > Tolerance {
		out = append(out, fmt.Sprintf("sum of domain_max is %g but scoring_system.total_points is %g",
			maxSum, q.ScoringSystem.TotalPoints))
	}
	var wSum float64
	for _, w := range q.ScoringSystem.Weights {
		wSum += w
	}
	if math.Abs(wSum-1) > Tolerance {
		out = append(out, fmt.Sprintf("scoring_system.weights sum to %g, want 1.0", wSum))
	}
	return out
}
