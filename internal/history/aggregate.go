// Package history rebuilds per-test summaries from flat result rows.
package history

import (
	"sort"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// Aggregate groups rows by test id. Every row counts toward the total; a row
// whose answer key is missing counts as incorrect. Rows from repeated
// attempts of the same test merge into one summary. Output is ordered by
// test id, newest id first.
func Aggregate(rows []model.ResultRow) []model.TestSummary {
	if len(rows) == 0 {
		return []model.TestSummary{}
	}

	groups := make(map[int]*model.TestSummary)
	order := make([]int, 0)

	for _, r := range rows {
		g, ok := groups[r.TestID]
		if !ok {
			g = &model.TestSummary{
				TestID:      r.TestID,
				Title:       r.TestTitle,
				Description: r.TestDescription,
				CompletedAt: r.CreatedAt,
				Answers:     make([]model.AnswerReview, 0),
			}
			groups[r.TestID] = g
			order = append(order, r.TestID)
		}
		if g.Title == nil && r.TestTitle != nil {
			g.Title = r.TestTitle
			g.Description = r.TestDescription
		}
		if r.CreatedAt.After(g.CompletedAt) {
			g.CompletedAt = r.CreatedAt
		}

		g.TotalQuestions++
		correct := r.IsCorrect()
		if correct {
			g.CorrectAnswers++
		}
		g.Answers = append(g.Answers, review(r, correct))
	}

	out := make([]model.TestSummary, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.Score = scoring.Percentage(g.CorrectAnswers, g.TotalQuestions)
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TestID > out[j].TestID })
	return out
}

// Details summarises a single test. It returns nil when no row belongs to
// the test.
func Details(testID int, rows []model.ResultRow) *model.TestSummary {
	filtered := make([]model.ResultRow, 0, len(rows))
	for _, r := range rows {
		if r.TestID == testID {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	summaries := Aggregate(filtered)
	return &summaries[0]
}

// Limit truncates summaries to n entries; n <= 0 keeps everything.
func Limit(summaries []model.TestSummary, n int) []model.TestSummary {
	if n <= 0 || len(summaries) <= n {
		return summaries
	}
	return summaries[:n]
}

func review(r model.ResultRow, correct bool) model.AnswerReview {
	return model.AnswerReview{
		QuestionID:    r.QuestionID,
		Prompt:        r.QuestionPrompt,
		GivenAnswer:   r.GivenAnswer,
		CorrectAnswer: r.AnswerKey,
		IsCorrect:     correct,
	}
}
