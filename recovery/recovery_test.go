package recovery

import (
	"testing"

	"github.com/milmillin/copyem/types"
)

func manifest(paths ...string) types.Manifest {
	m := make(types.Manifest, len(paths))
	for i, p := range paths {
		m[i] = types.FileEntry{Path: p, Size: 1}
	}
	return m
}

func TestResidualFailedStream(t *testing.T) {
	m := manifest("a", "b", "c", "d")
	outcomes := []types.StreamOutcome{
		{Stream: 0, Success: false, Assigned: []string{"a", "b", "c", "d"}, Delivered: []string{"a", "b"}},
	}

	got := Residual(m, outcomes)
	if len(got) != 2 || got[0].Path != "c" || got[1].Path != "d" {
		t.Errorf("residual = %v, want [c d]", got.Paths())
	}
}

func TestResidualSuccessfulStreamCountsAssignment(t *testing.T) {
	m := manifest("a", "b", "c", "d")
	outcomes := []types.StreamOutcome{
		// Ack scan lagged: only "a" acked, but the stream succeeded.
		{Stream: 0, Success: true, Assigned: []string{"a", "b"}, Delivered: []string{"a"}},
		{Stream: 1, Success: false, Assigned: []string{"c", "d"}, Delivered: []string{"c"}},
	}

	got := Residual(m, outcomes)
	if len(got) != 1 || got[0].Path != "d" {
		t.Errorf("residual = %v, want [d]", got.Paths())
	}
}

func TestResidualIdempotence(t *testing.T) {
	// A sequence of failed attempts whose acknowledgments jointly cover the
	// manifest leaves nothing unresolved.
	m := manifest("a", "b", "c", "d", "e")

	first := []types.StreamOutcome{
		{Stream: 0, Assigned: []string{"a", "c", "e"}, Delivered: []string{"a", "c"}},
		{Stream: 1, Assigned: []string{"b", "d"}, Delivered: []string{"b"}},
	}
	r1 := Residual(m, first)
	if len(r1) != 2 {
		t.Fatalf("first residual = %v, want [d e]", r1.Paths())
	}

	second := []types.StreamOutcome{
		{Stream: 0, Assigned: []string{"e"}, Delivered: []string{"e"}},
		{Stream: 1, Assigned: []string{"d"}, Delivered: []string{"d"}},
	}
	r2 := Residual(r1, second)
	if len(r2) != 0 {
		t.Errorf("final residual = %v, want empty", r2.Paths())
	}

	// Input manifests were not mutated.
	if len(m) != 5 || len(r1) != 2 {
		t.Error("Residual mutated an input manifest")
	}
}

func TestResidualNoOutcomes(t *testing.T) {
	m := manifest("a", "b")
	got := Residual(m, nil)
	if len(got) != 2 {
		t.Errorf("residual = %v, want full manifest", got.Paths())
	}
}
