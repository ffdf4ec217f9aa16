package app

import (
	"slices"
	"strings"

	"dailyquiz-service/internal/domain"
)

const (
	PointsCorrect = 10
	PointsBonus   = 20
)

// Outcome is the scored result of one question.
type Outcome struct {
	IsCorrect bool
	Points    int
}

// Evaluate scores one submitted answer. It is pure: the same question and
// answer always produce the same outcome. Unanswered questions score zero.
func Evaluate(q domain.Question, answer string, answered bool) Outcome {
	if !answered || !matches(q, answer) {
		return Outcome{}
	}
	if q.IsBonus {
		return Outcome{IsCorrect: true, Points: PointsBonus}
	}
	return Outcome{IsCorrect: true, Points: PointsCorrect}
}

func matches(q domain.Question, answer string) bool {
	accepted := q.Answer.Values()
	switch q.Kind {
	case domain.KindShortAnswer:
		want := normalize(answer)
		return slices.ContainsFunc(accepted, func(v string) bool { return normalize(v) == want })
	case domain.KindTrueFalse:
		return strings.ToLower(answer) == strings.ToLower(q.Answer.Single())
	default:
		// multiple choice, audio included: verbatim option text
		return slices.Contains(accepted, answer)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// scoreQuiz applies Evaluate to every question in quiz order.
func scoreQuiz(questions []domain.Question, answers map[string]domain.SubmittedAnswer) (results []domain.QuestionResult, score, correct int) {
	results = make([]domain.QuestionResult, 0, len(questions))
	for _, q := range questions {
		submitted, ok := answers[q.ID]
		answered := ok && strings.TrimSpace(submitted.Answer) != ""
		outcome := Evaluate(q, submitted.Answer, answered)
		if outcome.IsCorrect {
			correct++
			score += outcome.Points
		}
		result := domain.QuestionResult{
			QuestionID:    q.ID,
			Answered:      answered,
			IsCorrect:     outcome.IsCorrect,
			PointsAwarded: outcome.Points,
			SecondsSpent:  max(submitted.SecondsSpent, 0),
		}
		if answered {
			result.SubmittedAnswer = submitted.Answer
		}
		results = append(results, result)
	}
	return results, score, correct
}
