package schedule

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/milmillin/copyem/types"
)

var testModel = types.CostModel{SpeedBps: 1000, Latency: 0.1}

func manifestOf(sizes ...int64) types.Manifest {
	m := make(types.Manifest, len(sizes))
	for i, s := range sizes {
		m[i] = types.FileEntry{Path: fmt.Sprintf("f%02d", i), Size: s}
	}
	return m
}

func TestPartitionProperty(t *testing.T) {
	manifests := []types.Manifest{
		{},
		manifestOf(10),
		manifestOf(500, 300, 300, 100, 100, 50),
		manifestOf(1, 1, 1, 1, 1, 1, 1, 1),
		manifestOf(9000, 10, 10, 10),
	}

	for _, m := range manifests {
		for n := 1; n <= 5; n++ {
			plans := Partition(m, n, testModel)
			if len(plans) != n {
				t.Fatalf("got %d plans, want %d", len(plans), n)
			}

			seen := make(map[string]int)
			for _, p := range plans {
				for _, f := range p.Files {
					seen[f.Path]++
				}
			}
			if len(seen) != len(m) {
				t.Errorf("n=%d: %d distinct files in plans, manifest has %d", n, len(seen), len(m))
			}
			for path, count := range seen {
				if count != 1 {
					t.Errorf("n=%d: file %s appears %d times", n, path, count)
				}
			}
		}
	}
}

func TestPartitionDegenerateCases(t *testing.T) {
	// Empty manifest: n empty plans.
	plans := Partition(types.Manifest{}, 3, testModel)
	for _, p := range plans {
		if len(p.Files) != 0 || p.EstimatedTime != 0 {
			t.Errorf("empty manifest produced non-empty plan: %+v", p)
		}
	}

	// More streams than files: some plans empty, all files placed.
	plans = Partition(manifestOf(10, 20), 4, testModel)
	total := 0
	for _, p := range plans {
		total += len(p.Files)
	}
	if total != 2 {
		t.Errorf("placed %d files, want 2", total)
	}
}

func TestPartitionOrderWithinStream(t *testing.T) {
	m := manifestOf(10, 900, 50, 400)
	plans := Partition(m, 1, testModel)

	var sizes []int64
	for _, f := range plans[0].Files {
		sizes = append(sizes, f.Size)
	}
	want := []int64{900, 400, 50, 10}
	if !reflect.DeepEqual(sizes, want) {
		t.Errorf("stream order = %v, want descending cost %v", sizes, want)
	}
}

func TestPartitionDeterminism(t *testing.T) {
	// Equal sizes force tie-breaks; manifest order must decide, stably.
	m := manifestOf(100, 100, 100, 100, 100, 200, 200)

	first := Partition(m, 3, testModel)
	for i := 0; i < 10; i++ {
		again := Partition(m, 3, testModel)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced different plans", i)
		}
	}
}

// bruteForceMakespan computes the optimal makespan by exhaustive assignment.
// Only viable for tiny inputs.
func bruteForceMakespan(m types.Manifest, n int, cost types.CostModel) float64 {
	best := math.Inf(1)
	loads := make([]float64, n)

	var assign func(i int)
	assign = func(i int) {
		if i == len(m) {
			worst := 0.0
			for _, l := range loads {
				if l > worst {
					worst = l
				}
			}
			if worst < best {
				best = worst
			}
			return
		}
		c := cost.Cost(m[i].Size)
		for s := 0; s < n; s++ {
			loads[s] += c
			assign(i + 1)
			loads[s] -= c
		}
	}
	assign(0)
	return best
}

func TestPartitionApproximationBound(t *testing.T) {
	manifests := []types.Manifest{
		manifestOf(7, 6, 5, 4, 3, 2, 1),
		manifestOf(100, 100, 100, 99, 99),
		manifestOf(8, 7, 6, 5, 4, 3, 2, 1),
		manifestOf(500, 1, 1, 1, 1, 1),
		manifestOf(33, 33, 33, 33),
	}

	for _, m := range manifests {
		for n := 2; n <= 3; n++ {
			plans := Partition(m, n, testModel)
			got := Makespan(plans)
			opt := bruteForceMakespan(m, n, testModel)
			bound := (4.0/3.0 - 1.0/(3.0*float64(n))) * opt
			if got > bound+1e-9 {
				t.Errorf("n=%d files=%d: makespan %.4f exceeds LPT bound %.4f (opt %.4f)",
					n, len(m), got, bound, opt)
			}
		}
	}
}

func TestMakespan(t *testing.T) {
	plans := []types.StreamPlan{
		{EstimatedTime: 1.5},
		{EstimatedTime: 4.0},
		{EstimatedTime: 2.2},
	}
	if got := Makespan(plans); got != 4.0 {
		t.Errorf("Makespan = %v, want 4.0", got)
	}
	if got := Makespan(nil); got != 0 {
		t.Errorf("Makespan(nil) = %v, want 0", got)
	}
}
