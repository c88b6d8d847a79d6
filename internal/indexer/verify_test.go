package indexer

import (
	"context"
	"math"
	"reflect"
	"testing"

	"chainExplorer/internal/model"
)

func TestVerifyContiguousChain(t *testing.T) {
	store := newMemStore()
	store.storeChain(forkA, 0, 20)

	report, err := Verify(context.Background(), store, 0, 20, 6, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.OK() {
		t.Fatalf("unexpected problems: %+v", report.Problems)
	}
	if report.Checked != 21 {
		t.Fatalf("checked mismatch: %d", report.Checked)
	}
}

func TestVerifyReportsProblems(t *testing.T) {
	store := newMemStore()
	store.storeChain(forkA, 0, 10)
	delete(store.blocks, 4)
	broken := store.blocks[8]
	broken.ParentHash = hashAt(forkB, 7)
	store.blocks[8] = broken
	genesis := store.blocks[0]
	genesis.ParentHash = hashAt(forkB, 0)
	store.blocks[0] = genesis

	report, err := Verify(context.Background(), store, 0, 10, 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Problem{
		{Height: 0, Kind: ProblemGenesis},
		{Height: 4, Kind: ProblemMissing},
		{Height: 8, Kind: ProblemParent},
	}
	if len(report.Problems) != len(want) {
		t.Fatalf("problems mismatch: %+v", report.Problems)
	}
	for i, problem := range report.Problems {
		if problem.Height != want[i].Height || problem.Kind != want[i].Kind {
			t.Fatalf("problem %d mismatch: %+v != %+v", i, problem, want[i])
		}
	}
}

func TestVerifyChecksLinkBelowRange(t *testing.T) {
	store := newMemStore()
	store.storeChain(forkA, 0, 5)
	block := store.blocks[3]
	block.ParentHash = model.ZeroHash
	store.blocks[3] = block

	report, err := Verify(context.Background(), store, 3, 5, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Problems) != 1 || report.Problems[0].Kind != ProblemParent {
		t.Fatalf("problems mismatch: %+v", report.Problems)
	}
}

func TestVerifyRejectsBadRange(t *testing.T) {
	if _, err := Verify(context.Background(), newMemStore(), 5, 1, 10, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerifyPages(t *testing.T) {
	got, err := pages(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []heightRange{{from: 100, to: 101}, {from: 102, to: 103}, {from: 104, to: 105}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pages mismatch: %+v != %+v", got, want)
	}

	got, err = pages(5, 5, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []heightRange{{from: 5, to: 5}}) {
		t.Fatalf("single page mismatch: %+v", got)
	}

	got, err = pages(math.MaxUint64-2, math.MaxUint64, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = []heightRange{{from: math.MaxUint64 - 2, to: math.MaxUint64 - 1}, {from: math.MaxUint64, to: math.MaxUint64}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("top pages mismatch: %+v", got)
	}

	if _, err := pages(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
