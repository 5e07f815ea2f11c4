package gate

import (
	"strings"
	"testing"
)

type report struct {
	Title string
}

func TestAfterToolsMonotonic(t *testing.T) {
	tracker := NewTracker(nil)
	cond := AfterTools("search")

	if cond.Satisfied(tracker.Snapshot()) {
		t.Fatalf("condition should be unsatisfied before the tool is recorded")
	}

	tracker.RecordToolCall("search")
	if !cond.Satisfied(tracker.Snapshot()) {
		t.Fatalf("condition should be satisfied after the tool is recorded")
	}

	// Later calls never re-lock within one invocation.
	tracker.RecordToolCall("summarize")
	tracker.RecordToolCall("search")
	if !cond.Satisfied(tracker.Snapshot()) {
		t.Fatalf("condition should stay satisfied")
	}
}

func TestAfterToolsEmptyIsVacuouslySatisfied(t *testing.T) {
	if !AfterTools().Satisfied(NewTracker(nil).Snapshot()) {
		t.Fatalf("empty prerequisite list should be vacuously satisfied")
	}
}

func TestComposites(t *testing.T) {
	tracker := NewTracker(nil)
	both := AllOf(AfterTools("search"), OnArtifact[report]())
	either := AnyOf(AfterTools("search"), OnArtifact[report]())

	snap := tracker.Snapshot()
	if both.Satisfied(snap) || either.Satisfied(snap) {
		t.Fatalf("nothing recorded yet, nothing should be satisfied")
	}

	tracker.RecordToolCall("search")
	snap = tracker.Snapshot()
	if both.Satisfied(snap) {
		t.Fatalf("AllOf should still wait for the artifact")
	}
	if !either.Satisfied(snap) {
		t.Fatalf("AnyOf should be satisfied by the tool call alone")
	}

	tracker.RecordArtifact(report{Title: "q3"})
	snap = tracker.Snapshot()
	if !both.Satisfied(snap) {
		t.Fatalf("AllOf should be satisfied once both children are")
	}
}

func TestOnArtifactAcceptsPointer(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.RecordArtifact(&report{Title: "draft"})
	if !OnArtifact[report]().Satisfied(tracker.Snapshot()) {
		t.Fatalf("pointer to the artifact type should match")
	}
}

func TestOnArtifactMatching(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.RecordArtifact(report{Title: "draft"})

	approved := OnArtifactMatching(func(r report, _ *Snapshot) bool { return r.Title == "final" })
	if approved.Satisfied(tracker.Snapshot()) {
		t.Fatalf("predicate should reject the draft")
	}

	tracker.RecordArtifact(report{Title: "final"})
	if !approved.Satisfied(tracker.Snapshot()) {
		t.Fatalf("predicate should accept the final report")
	}
}

func TestWhenPredicate(t *testing.T) {
	tracker := NewTracker(nil)
	cond := When("three tools have been used", func(snap *Snapshot) bool {
		return snap.Iterations() >= 3
	})
	for _, name := range []string{"a", "b"} {
		tracker.RecordToolCall(name)
	}
	if cond.Satisfied(tracker.Snapshot()) {
		t.Fatalf("predicate should not hold at two calls")
	}
	tracker.RecordToolCall("c")
	if !cond.Satisfied(tracker.Snapshot()) {
		t.Fatalf("predicate should hold at three calls")
	}
	if When("never", nil).Satisfied(tracker.Snapshot()) {
		t.Fatalf("nil predicate must evaluate to false, not panic")
	}
}

func TestEvaluationIsIdempotent(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.RecordToolCall("search")
	snap := tracker.Snapshot()

	conds := []Condition{
		AfterTools("search"),
		AfterTools("missing"),
		OnArtifact[report](),
		AllOf(AfterTools("search"), AfterTools("missing")),
		AnyOf(AfterTools("missing"), AfterTools("search")),
	}
	for _, cond := range conds {
		first := cond.Satisfied(snap)
		second := cond.Satisfied(snap)
		if first != second {
			t.Fatalf("condition %q changed answer between evaluations", cond.Describe())
		}
	}
}

func TestUnmetNamesMissingPrerequisite(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.RecordToolCall("search")
	snap := tracker.Snapshot()

	msg := AfterTools("search", "fetch").Unmet(snap)
	if !strings.Contains(msg, "fetch") {
		t.Fatalf("unmet message should name the missing tool, got %q", msg)
	}
	if strings.Contains(msg, "search") {
		t.Fatalf("unmet message should not name satisfied prerequisites, got %q", msg)
	}
}
