package models

import "time"

// Attempt is one scored quiz submission. Attempts are append-only.
type Attempt struct {
	ID               string
	ModuleID         string
	UserID           int64
	StartedAt        time.Time
	SubmittedAt      time.Time
	Answers          map[string]Answer
	ScorePercentage  int
	CorrectCount     int
	TotalQuestions   int
	Passed           bool
	TimeSpentMinutes int
}
