package history

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func turnWithQuestion(question string) Turn {
	return Turn{
		TurnID:    NewTurnID(),
		Question:  question,
		Status:    TurnSucceeded,
		Timestamp: time.Now().UTC(),
	}
}

func TestAppendEvictsOldestBeyondWindow(t *testing.T) {
	store, err := NewStore(3)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for i := 1; i <= 5; i++ {
		store.Append("s1", turnWithQuestion(fmt.Sprintf("q%d", i)))
	}

	turns := store.Recent("s1", 10)
	if len(turns) != 3 {
		t.Fatalf("retained = %d, want 3", len(turns))
	}
	if turns[0].Question != "q3" || turns[2].Question != "q5" {
		t.Fatalf("retained order = [%s..%s], want [q3..q5]", turns[0].Question, turns[2].Question)
	}
}

func TestRecentReturnsChronologicalTail(t *testing.T) {
	store, err := NewStore(10)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.Append("s1", turnWithQuestion("q1"))
	store.Append("s1", turnWithQuestion("q2"))
	store.Append("s1", turnWithQuestion("q3"))

	turns := store.Recent("s1", 2)
	if len(turns) != 2 {
		t.Fatalf("len = %d, want 2", len(turns))
	}
	if turns[0].Question != "q2" || turns[1].Question != "q3" {
		t.Fatalf("order = [%s, %s], want [q2, q3]", turns[0].Question, turns[1].Question)
	}
	if got := store.Recent("s1", 0); got != nil {
		t.Fatalf("Recent(0) = %v, want nil", got)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	store, err := NewStore(5)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.Append("s1", turnWithQuestion("q1"))
	store.Append("s2", turnWithQuestion("other"))

	store.Clear("s2")

	if len(store.Recent("s1", 10)) != 1 {
		t.Fatal("clearing s2 affected s1")
	}
	if len(store.Recent("s2", 10)) != 0 {
		t.Fatal("s2 should be empty after Clear")
	}
}

func TestExportSnapshotIsACopy(t *testing.T) {
	store, err := NewStore(5)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.Append("s1", turnWithQuestion("q1"))

	snapshot := store.Export("s1")
	if snapshot.SessionID != "s1" {
		t.Fatalf("SessionID = %q", snapshot.SessionID)
	}
	if len(snapshot.Turns) != 1 {
		t.Fatalf("Turns = %d", len(snapshot.Turns))
	}
	snapshot.Turns[0].Question = "mutated"
	if store.Recent("s1", 1)[0].Question != "q1" {
		t.Fatal("export snapshot shares memory with the store")
	}
}

func TestSummarizeCountsAndWarnsWhenFull(t *testing.T) {
	store, err := NewStore(2)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	summary := store.Summarize("s1")
	if summary.TotalTurns != 0 || summary.Warning != "" {
		t.Fatalf("empty summary = %+v", summary)
	}

	store.Append("s1", turnWithQuestion("q1"))
	failed := turnWithQuestion("q2")
	failed.Status = TurnRejected
	store.Append("s1", failed)

	summary = store.Summarize("s1")
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Warning == "" {
		t.Fatal("expected window-full warning")
	}
}

func TestConcurrentAppendsNeverExceedWindow(t *testing.T) {
	store, err := NewStore(4)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", worker%2)
			for i := 0; i < 50; i++ {
				store.Append(sessionID, turnWithQuestion("q"))
			}
		}(worker)
	}
	wg.Wait()

	for _, sessionID := range []string{"s0", "s1"} {
		if got := len(store.Recent(sessionID, 100)); got > 4 {
			t.Fatalf("session %s retained %d turns, window is 4", sessionID, got)
		}
	}
}
