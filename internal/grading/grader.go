// Package grading computes automated scores from a paper's answer key and a
// submitted answer snapshot. It is pure: no storage, no clock, no I/O.
package grading

import (
	"sort"
	"strings"

	"github.com/zwlabs/examtrack-backend/internal/model"
)

// QuestionResult is the per-question outcome of grading.
type QuestionResult struct {
	QuestionID string
	Gradable   bool
	Answered   bool
	Correct    bool
	Earned     float64
}

// Grade scores a snapshot against the paper's question definitions.
//
// Policy: single-choice and true-false need an exact match of the one selected
// option; multi-choice needs the submitted set to equal the key set exactly
// (no partial credit); fill-in matches any accepted string after trimming and
// case-folding; free-text always earns zero here and is left to manual review.
// Unanswered or unknown question IDs score zero without error. The total is
// clamped to [0, paper.TotalScore].
func Grade(paper *model.Paper, snapshot model.AnswerSnapshot) (float64, []QuestionResult) {
	results := make([]QuestionResult, 0, len(paper.Questions))
	var total float64

	for _, q := range paper.Questions {
		r := QuestionResult{QuestionID: q.ID, Gradable: q.Type.AutoGradable()}

		answer, ok := snapshot[q.ID]
		r.Answered = ok

		if r.Gradable && ok && answerMatches(q, answer) {
			r.Correct = true
			r.Earned = q.Weight
			total += q.Weight
		}

		results = append(results, r)
	}

	if total < 0 {
		total = 0
	}
	if total > paper.TotalScore {
		total = paper.TotalScore
	}

	return total, results
}

func answerMatches(q model.Question, a model.Answer) bool {
	switch q.Type {
	case model.QuestionTypeSingleChoice, model.QuestionTypeTrueFalse:
		return len(q.Correct) == 1 && len(a.Selected) == 1 && a.Selected[0] == q.Correct[0]
	case model.QuestionTypeMultiChoice:
		return sameSet(a.Selected, q.Correct)
	case model.QuestionTypeFillIn:
		return fillInMatches(q.Correct, a.Text)
	default:
		return false
	}
}

// sameSet compares two option lists as sets, ignoring order and duplicates.
func sameSet(submitted, correct []string) bool {
	if len(correct) == 0 {
		return false
	}
	a := dedupeSorted(submitted)
	b := dedupeSorted(correct)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupeSorted(options []string) []string {
	out := make([]string, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

func fillInMatches(accepted []string, text string) bool {
	normalized := normalize(text)
	if normalized == "" {
		return false
	}
	for _, want := range accepted {
		if normalize(want) == normalized {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
