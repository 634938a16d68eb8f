package services

import (
	"testing"
	"time"

	"github.com/ad/go-rescue-academy/internal/models"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var quizStart = time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

func TestScoreQuiz_FundamentalsFirstAttempt(t *testing.T) {
	m := fundamentalsModule()
	answers := map[string]models.Answer{
		"f1": models.ChoiceAnswer(0),
		"f2": models.TruthAnswer(true),
		"f3": models.ChoiceAnswer(1),
		"f4": models.TruthAnswer(false),
	}

	result := ScoreQuiz(m.Questions, answers, quizStart, quizStart.Add(6*time.Minute), m.PassingScore)

	assert.Equal(t, 3, result.CorrectCount)
	assert.Equal(t, 75, result.ScorePercentage)
	assert.False(t, result.Passed)
	assert.Equal(t, 6, result.TimeSpentMinutes)
	assert.Equal(t, 4, result.TotalQuestions)
}

func TestScoreQuiz_WeightedPoints(t *testing.T) {
	questions := []models.QuizQuestion{
		{ID: "a", Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(true), Points: 1},
		{ID: "b", Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(true), Points: 2},
	}
	answers := map[string]models.Answer{
		"a": models.TruthAnswer(false),
		"b": models.TruthAnswer(true),
	}

	result := ScoreQuiz(questions, answers, quizStart, quizStart.Add(time.Minute), 60)

	assert.Equal(t, 1, result.CorrectCount, "correct count ignores weights")
	assert.Equal(t, 67, result.ScorePercentage, "2 of 3 points rounds to 67")
	assert.Equal(t, 2, result.PointsEarned)
	assert.Equal(t, 3, result.PointsPossible)
	assert.True(t, result.Passed)
}

func TestScoreQuiz_Rounding(t *testing.T) {
	questions := make([]models.QuizQuestion, 8)
	answers := make(map[string]models.Answer)
	for i := range questions {
		id := string(rune('a' + i))
		questions[i] = models.QuizQuestion{ID: id, Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(true), Points: 1}
		answers[id] = models.TruthAnswer(i > 0)
	}

	// 7/8 = 87.5 rounds half away from zero
	result := ScoreQuiz(questions, answers, quizStart, quizStart, 88)
	assert.Equal(t, 88, result.ScorePercentage)
	assert.True(t, result.Passed)
}

func TestScoreQuiz_TimeSpent(t *testing.T) {
	m := fundamentalsModule()
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 1},
		{20 * time.Second, 1},
		{89 * time.Second, 1},
		{90 * time.Second, 2},
		{6 * time.Minute, 6},
		{6*time.Minute + 29*time.Second, 6},
		{-time.Minute, 1},
	}
	for _, tc := range cases {
		result := ScoreQuiz(m.Questions, nil, quizStart, quizStart.Add(tc.elapsed), m.PassingScore)
		assert.Equal(t, tc.want, result.TimeSpentMinutes, "elapsed %s", tc.elapsed)
	}
}

func drawQuiz(t *rapid.T) ([]models.QuizQuestion, map[string]models.Answer) {
	n := rapid.IntRange(1, 10).Draw(t, "questions")
	questions := make([]models.QuizQuestion, n)
	answers := make(map[string]models.Answer, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		points := rapid.IntRange(1, 5).Draw(t, "points")
		if rapid.Bool().Draw(t, "trueFalse") {
			questions[i] = models.QuizQuestion{ID: id, Kind: models.QuestionTrueFalse, CorrectAnswer: models.TruthAnswer(rapid.Bool().Draw(t, "correct")), Points: points}
			answers[id] = models.TruthAnswer(rapid.Bool().Draw(t, "given"))
		} else {
			questions[i] = models.QuizQuestion{ID: id, Kind: models.QuestionMultipleChoice, Options: []string{"w", "x", "y", "z"},
				CorrectAnswer: models.ChoiceAnswer(rapid.IntRange(0, 3).Draw(t, "correct")), Points: points}
			answers[id] = models.ChoiceAnswer(rapid.IntRange(0, 3).Draw(t, "given"))
		}
	}
	return questions, answers
}

func TestProperty3_ScoreQuizIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		questions, answers := drawQuiz(t)
		passing := rapid.IntRange(0, 100).Draw(t, "passing")
		elapsed := time.Duration(rapid.Int64Range(0, int64(3*time.Hour)).Draw(t, "elapsed"))

		first := ScoreQuiz(questions, answers, quizStart, quizStart.Add(elapsed), passing)
		second := ScoreQuiz(questions, answers, quizStart, quizStart.Add(elapsed), passing)

		if first != second {
			t.Fatalf("same input scored differently: %+v vs %+v", first, second)
		}
		if first.ScorePercentage < 0 || first.ScorePercentage > 100 {
			t.Fatalf("score out of range: %d", first.ScorePercentage)
		}
		if first.Passed != (first.ScorePercentage >= passing) {
			t.Fatalf("passed=%t disagrees with score %d and threshold %d", first.Passed, first.ScorePercentage, passing)
		}
		if first.CorrectCount > first.TotalQuestions {
			t.Fatalf("correct %d exceeds total %d", first.CorrectCount, first.TotalQuestions)
		}
		if first.TimeSpentMinutes < 1 {
			t.Fatalf("time spent below one minute: %d", first.TimeSpentMinutes)
		}
		if (first.CorrectCount == first.TotalQuestions) != (first.ScorePercentage == 100) {
			t.Fatalf("all correct must mean 100%%: %+v", first)
		}
	})
}
