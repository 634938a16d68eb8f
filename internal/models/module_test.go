package models

import (
	"testing"

	"pgregory.net/rapid"
)

func TestAnswerMatches_ExactEquality(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, 5).Draw(t, "a")
		b := rapid.IntRange(0, 5).Draw(t, "b")
		if ChoiceAnswer(a).Matches(QuestionMultipleChoice, ChoiceAnswer(b)) != (a == b) {
			t.Fatalf("choice %d vs %d compared incorrectly", a, b)
		}

		x := rapid.Bool().Draw(t, "x")
		y := rapid.Bool().Draw(t, "y")
		if TruthAnswer(x).Matches(QuestionTrueFalse, TruthAnswer(y)) != (x == y) {
			t.Fatalf("truth %v vs %v compared incorrectly", x, y)
		}
	})
}

func TestAnswerMatches_KindMismatchIsWrong(t *testing.T) {
	if TruthAnswer(true).Matches(QuestionMultipleChoice, ChoiceAnswer(1)) {
		t.Fatal("a boolean must never match a choice question")
	}
	if ChoiceAnswer(1).Matches(QuestionTrueFalse, TruthAnswer(true)) {
		t.Fatal("an index must never match a true/false question")
	}
}

func TestAnswerValidFor(t *testing.T) {
	mc := &QuizQuestion{Kind: QuestionMultipleChoice, Options: []string{"a", "b", "c"}}
	tf := &QuizQuestion{Kind: QuestionTrueFalse}

	cases := []struct {
		name     string
		answer   Answer
		question *QuizQuestion
		valid    bool
	}{
		{"choice in range", ChoiceAnswer(2), mc, true},
		{"choice out of range", ChoiceAnswer(3), mc, false},
		{"negative choice", ChoiceAnswer(-1), mc, false},
		{"truth for choice", TruthAnswer(true), mc, false},
		{"truth", TruthAnswer(false), tf, true},
		{"choice for truth", ChoiceAnswer(0), tf, false},
		{"empty", Answer{}, tf, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.answer.ValidFor(tc.question); got != tc.valid {
				t.Errorf("ValidFor = %v, want %v", got, tc.valid)
			}
		})
	}
}

func TestParseAnswer_RoundTripsString(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		index := rapid.IntRange(0, 10).Draw(t, "index")
		parsed, err := ParseAnswer(QuestionMultipleChoice, ChoiceAnswer(index).String())
		if err != nil || *parsed.Choice != index {
			t.Fatalf("choice %d did not survive String/ParseAnswer: %v", index, err)
		}

		value := rapid.Bool().Draw(t, "value")
		parsed, err = ParseAnswer(QuestionTrueFalse, TruthAnswer(value).String())
		if err != nil || *parsed.Truth != value {
			t.Fatalf("truth %v did not survive String/ParseAnswer: %v", value, err)
		}
	})
}

func TestPrerequisites_ModuleIDsDeduplicates(t *testing.T) {
	p := Prerequisites{{"a", "b"}, {"b", "c"}, {}}
	ids := p.ModuleIDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if p.IsEmpty() {
		t.Fatal("expression with groups should not be empty")
	}
	if !(Prerequisites{{}, nil}).IsEmpty() {
		t.Fatal("expression of empty groups should be empty")
	}
}
