package quiz

import (
	"errors"
	"testing"
	"time"
)

var testStart = time.Unix(1700000000, 0)

func TestSessionSubmitScores(t *testing.T) {
	tests := []struct {
		name   string
		answer func(s *Session)
		want   int
	}{
		{
			name:   "no answers",
			answer: func(*Session) {},
			want:   0,
		},
		{
			name: "all correct",
			answer: func(s *Session) {
				for idx, item := range s.Items {
					_ = s.Answer(idx, intPtr(item.Question.CorrectIndex))
				}
			},
			want: 8,
		},
		{
			name: "half correct",
			answer: func(s *Session) {
				for idx, item := range s.Items {
					choice := item.Question.CorrectIndex
					if idx%2 == 1 {
						choice = (choice + 1) % 4
					}
					_ = s.Answer(idx, intPtr(choice))
				}
			},
			want: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			session := testSession(8, testStart)
			tc.answer(session)
			session.CurrentIndex = session.Len() - 1
			if err := session.Finish(); err != nil {
				t.Fatalf("Finish failed: %v", err)
			}
			if session.Score != tc.want {
				t.Fatalf("expected score %d, got %d", tc.want, session.Score)
			}
			for idx, item := range session.Items {
				if item.IsCorrect == nil {
					t.Fatalf("item %d has no correctness after submit", idx)
				}
			}
		})
	}
}

func TestSessionTimeoutSubmits(t *testing.T) {
	session := testSession(4, testStart)
	_ = session.Answer(0, intPtr(session.Items[0].Question.CorrectIndex))

	if session.Tick(testStart.Add(44 * time.Minute)) {
		t.Fatalf("session should not time out before the deadline")
	}
	if !session.Tick(testStart.Add(45 * time.Minute)) {
		t.Fatalf("session should time out at the deadline")
	}
	if !session.Submitted || session.SubmittedBy != SubmitTimeout || session.Score != 1 {
		t.Fatalf("unexpected session after timeout: submitted=%v by=%q score=%d", session.Submitted, session.SubmittedBy, session.Score)
	}
	if session.Tick(testStart.Add(50 * time.Minute)) {
		t.Fatalf("second tick should be a no-op")
	}
	if err := session.Answer(1, intPtr(0)); !errors.Is(err, ErrSubmitted) {
		t.Fatalf("expected ErrSubmitted after timeout, got %v", err)
	}
}

func TestSessionTwoStepSubmit(t *testing.T) {
	session := testSession(4, testStart)

	done, err := session.RequestSubmit()
	if err != nil || done {
		t.Fatalf("first request should arm: done=%v err=%v", done, err)
	}
	if !session.SubmitArmed {
		t.Fatalf("expected submit to be armed")
	}

	session.Advance()
	if session.SubmitArmed {
		t.Fatalf("navigation should disarm submit")
	}

	if done, _ := session.RequestSubmit(); done {
		t.Fatalf("request after disarm should arm again")
	}
	done, err = session.RequestSubmit()
	if err != nil || !done {
		t.Fatalf("second request should submit: done=%v err=%v", done, err)
	}
	if session.SubmittedBy != SubmitManual {
		t.Fatalf("expected manual submit, got %q", session.SubmittedBy)
	}
	if _, err := session.RequestSubmit(); !errors.Is(err, ErrSubmitted) {
		t.Fatalf("expected ErrSubmitted, got %v", err)
	}
}

func TestSessionAnswerDisarmsSubmit(t *testing.T) {
	session := testSession(2, testStart)
	_, _ = session.RequestSubmit()

	if err := session.Answer(0, intPtr(1)); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if session.SubmitArmed {
		t.Fatalf("answer should disarm submit")
	}
}

func TestSessionNavigationClamps(t *testing.T) {
	session := testSession(3, testStart)

	session.Retreat()
	if session.CurrentIndex != 0 {
		t.Fatalf("retreat at first question moved to %d", session.CurrentIndex)
	}
	for i := 0; i < 5; i++ {
		session.Advance()
	}
	if session.CurrentIndex != 2 {
		t.Fatalf("expected index clamped at 2, got %d", session.CurrentIndex)
	}
}

func TestSessionAnswerValidation(t *testing.T) {
	session := testSession(2, testStart)

	if err := session.Answer(5, intPtr(0)); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if err := session.Answer(0, intPtr(4)); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
	if err := session.Answer(0, intPtr(-1)); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}

	if err := session.Answer(0, intPtr(3)); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if err := session.Answer(0, nil); err != nil {
		t.Fatalf("clearing answer failed: %v", err)
	}
	if session.Items[0].UserChoice != nil || session.AnsweredCount() != 0 {
		t.Fatalf("expected answer to be cleared")
	}
}

func TestSessionFinishOnlyOnLastQuestion(t *testing.T) {
	session := testSession(3, testStart)

	if err := session.Finish(); !errors.Is(err, ErrNotLast) {
		t.Fatalf("expected ErrNotLast, got %v", err)
	}
	session.Advance()
	session.Advance()
	if err := session.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if session.SubmittedBy != SubmitFinish {
		t.Fatalf("expected finish reason, got %q", session.SubmittedBy)
	}
}

func TestSessionRemaining(t *testing.T) {
	session := testSession(1, testStart)

	if got := session.Remaining(testStart.Add(15 * time.Minute)); got != 30*time.Minute {
		t.Fatalf("expected 30m remaining, got %v", got)
	}
	if got := session.Remaining(testStart.Add(50 * time.Minute)); got >= 0 {
		t.Fatalf("expected negative remaining, got %v", got)
	}
}
