package quiz

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"exam-app/internal/bank"
)

func TestEncodeRestoreRoundTrip(t *testing.T) {
	session := testSession(5, testStart)
	_ = session.Answer(0, intPtr(2))
	_ = session.Answer(3, intPtr(1))
	session.Advance()
	_, _ = session.RequestSubmit()

	encoded, err := Encode(session)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.ContainsAny(encoded, "+/") {
		t.Fatalf("token is not URL safe: %s", encoded)
	}

	lookup := makePool(lawsTopic, 5)
	restored, ok, err := Restore(encoded, lawsTopic.Path, lookup)
	if err != nil || !ok {
		t.Fatalf("Restore failed: ok=%v err=%v", ok, err)
	}

	if restored.ID != session.ID || restored.CurrentIndex != 1 || !restored.SubmitArmed {
		t.Fatalf("unexpected restored session: %+v", restored)
	}
	if !restored.StartTime.Equal(testStart) || restored.Duration != 45*time.Minute {
		t.Fatalf("unexpected timing: %v %v", restored.StartTime, restored.Duration)
	}
	for idx := range session.Items {
		if restored.Items[idx].Question.ID != session.Items[idx].Question.ID {
			t.Fatalf("item %d order changed", idx)
		}
		want, got := session.Items[idx].UserChoice, restored.Items[idx].UserChoice
		if (want == nil) != (got == nil) || (want != nil && *want != *got) {
			t.Fatalf("item %d choice mismatch: %v vs %v", idx, want, got)
		}
	}
}

func TestRestoreKeepsAnswerKeyOfDuplicateRow(t *testing.T) {
	pool := bank.NewPool(lawsTopic, []bank.Question{
		{Question: "same", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 0},
		{Question: "same", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 2},
	})
	session := NewSession("sess-dup", lawsTopic.Path, []Item{{Question: pool.Questions[1]}}, testStart, 45*time.Minute)

	encoded, err := Encode(session)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	restored, ok, err := Restore(encoded, lawsTopic.Path, pool)
	if err != nil || !ok {
		t.Fatalf("Restore failed: ok=%v err=%v", ok, err)
	}
	if got := restored.Items[0].Question.CorrectIndex; got != 2 {
		t.Fatalf("expected answer key 2 after restore, got %d", got)
	}
}

func TestRestoreSubmittedRecomputesScore(t *testing.T) {
	session := testSession(4, testStart)
	for idx, item := range session.Items {
		_ = session.Answer(idx, intPtr(item.Question.CorrectIndex))
	}
	session.CurrentIndex = 3
	_ = session.Finish()

	projection := Project(session)
	projection.Score = 0
	raw, _ := json.Marshal(projection)
	encoded := base64.URLEncoding.EncodeToString(raw)

	restored, ok, err := Restore(encoded, lawsTopic.Path, makePool(lawsTopic, 4))
	if err != nil || !ok {
		t.Fatalf("Restore failed: ok=%v err=%v", ok, err)
	}
	if !restored.Submitted || restored.Score != 4 {
		t.Fatalf("expected recomputed score 4, got submitted=%v score=%d", restored.Submitted, restored.Score)
	}
	if restored.SubmittedBy != "" {
		t.Fatalf("restored submit must not look like a new transition")
	}
}

func TestRestoreTopicMismatch(t *testing.T) {
	encoded, err := Encode(testSession(2, testStart))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	session, ok, err := Restore(encoded, taxTopic.Path, makePool(taxTopic, 2))
	if err != nil || ok || session != nil {
		t.Fatalf("expected no saved state, got session=%v ok=%v err=%v", session, ok, err)
	}
}

func TestRestoreStaleQuestionIDs(t *testing.T) {
	encoded, err := Encode(testSession(3, testStart))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// The bank was edited: only the first question is still present.
	_, _, err = Restore(encoded, lawsTopic.Path, makePool(lawsTopic, 1))
	if !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
}

func TestDecodeRejectsBadTokens(t *testing.T) {
	valid, err := Encode(testSession(3, testStart))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	mutate := func(change func(p *Projection)) string {
		projection, err := Decode(valid)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		change(&projection)
		raw, _ := json.Marshal(projection)
		return base64.URLEncoding.EncodeToString(raw)
	}
	encodeRaw := func(raw string) string {
		return base64.URLEncoding.EncodeToString([]byte(raw))
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "", want: ErrMalformedState},
		{name: "truncated base64", token: valid[:len(valid)/2+1], want: ErrMalformedState},
		{name: "not base64", token: "%%%not-a-token%%%", want: ErrMalformedState},
		{name: "invalid json", token: encodeRaw("{not json"), want: ErrMalformedState},
		{name: "positional v1 token", token: encodeRaw(`{"topic_path":"1. Laws.csv","items":[{"q":"x"}],"user_choices":[null]}`), want: ErrUnsupportedVersion},
		{name: "no items", token: mutate(func(p *Projection) { p.ItemIDs = nil; p.UserChoices = nil }), want: ErrMalformedState},
		{name: "length mismatch", token: mutate(func(p *Projection) { p.UserChoices = p.UserChoices[:1] }), want: ErrMalformedState},
		{name: "index out of range", token: mutate(func(p *Projection) { p.CurrentIndex = 3 }), want: ErrMalformedState},
		{name: "choice out of range", token: mutate(func(p *Projection) { p.UserChoices[0] = intPtr(7) }), want: ErrMalformedState},
		{name: "zero duration", token: mutate(func(p *Projection) { p.DurationSeconds = 0 }), want: ErrMalformedState},
		{name: "negative start", token: mutate(func(p *Projection) { p.StartTime = -1 }), want: ErrMalformedState},
		{name: "score too high", token: mutate(func(p *Projection) { p.Score = 9 }), want: ErrMalformedState},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecodeAcceptsUnpaddedToken(t *testing.T) {
	valid, err := Encode(testSession(3, testStart))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := Decode(strings.TrimRight(valid, "=")); err != nil {
		t.Fatalf("expected unpadded token to decode, got %v", err)
	}
}

func TestProjectionUsesStableIDs(t *testing.T) {
	session := testSession(2, testStart)
	projection := Project(session)

	for idx, id := range projection.ItemIDs {
		if id != session.Items[idx].Question.ID {
			t.Fatalf("item %d: id %q is not the question id", idx, id)
		}
	}
	if projection.Version != StateVersion {
		t.Fatalf("expected version %d, got %d", StateVersion, projection.Version)
	}
}
