package services

import (
	"math"
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
)

type QuizResult struct {
	ScorePercentage  int
	CorrectCount     int
	TotalQuestions   int
	PointsEarned     int
	PointsPossible   int
	Passed           bool
	TimeSpentMinutes int
}

// ScoreQuiz grades a complete answer set. It has no side effects and the
// same input always yields the same result.
func ScoreQuiz(questions []models.QuizQuestion, answers map[string]models.Answer, startedAt, submittedAt time.Time, passingScore int) QuizResult {
	result := QuizResult{TotalQuestions: len(questions)}

	for _, q := range questions {
		result.PointsPossible += q.Points
		answer, ok := answers[q.ID]
		if !ok || !answer.Matches(q.Kind, q.CorrectAnswer) {
			continue
		}
		result.PointsEarned += q.Points
		result.CorrectCount++
	}

	if result.PointsPossible > 0 {
		result.ScorePercentage = int(math.Round(float64(result.PointsEarned) / float64(result.PointsPossible) * 100))
	}
	result.Passed = result.ScorePercentage >= passingScore
	result.TimeSpentMinutes = spentMinutes(startedAt, submittedAt)

	return result
}

func spentMinutes(startedAt, submittedAt time.Time) int {
	ms := submittedAt.Sub(startedAt).Milliseconds()
	minutes := int(math.Round(float64(ms) / 60000))
	if minutes < 1 {
		return 1
	}
	return minutes
}
