package split

import (
	"fmt"
	"testing"

	"twin_corpus/internal/corpus"
)

func TestAssignIsDeterministic(t *testing.T) {
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("thread-%d", i)
		if Assign(id) != Assign(id) {
			t.Fatalf("assignment for %s changed between calls", id)
		}
	}
}

func TestAssignRoughProportions(t *testing.T) {
	counts := map[corpus.Split]int{}
	const n = 5000
	for i := 0; i < n; i++ {
		counts[Assign(fmt.Sprintf("thread-%d", i))]++
	}
	if counts[corpus.SplitTrain] < n*70/100 || counts[corpus.SplitTrain] > n*90/100 {
		t.Fatalf("train share out of range: %v", counts)
	}
	if counts[corpus.SplitVal] == 0 || counts[corpus.SplitTest] == 0 {
		t.Fatalf("expected all splits to be used: %v", counts)
	}
}

func TestApplyKeepsThreadsTogether(t *testing.T) {
	var units []corpus.TrainingUnit
	for i := 0; i < 200; i++ {
		units = append(units, corpus.TrainingUnit{ThreadID: fmt.Sprintf("thread-%d", i%17), Response: "r"})
	}
	Apply(units)
	seen := map[string]corpus.Split{}
	for _, u := range units {
		if u.Split == "" {
			t.Fatalf("unit without split: %+v", u)
		}
		if prev, ok := seen[u.ThreadID]; ok && prev != u.Split {
			t.Fatalf("thread %s straddles %s and %s", u.ThreadID, prev, u.Split)
		}
		seen[u.ThreadID] = u.Split
	}
}
