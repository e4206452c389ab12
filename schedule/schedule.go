// Package schedule partitions a manifest across parallel transfer streams.
//
// The scheduler implements longest-processing-time-first list scheduling:
// files are sorted by descending estimated cost and greedily assigned to the
// stream with the least accumulated cost. This is a classic (4/3 - 1/(3N))
// approximation for makespan minimization, and it is deterministic: the
// sort is stable and ties break by manifest order, so identical inputs
// always produce identical plans.
package schedule

import (
	"sort"

	"github.com/milmillin/copyem/types"
)

// Partition splits the manifest into exactly n ordered stream plans.
//
// Every manifest entry appears in exactly one plan. Within a plan, files
// are ordered by descending cost, which front-loads throughput-bound work
// and defers latency-bound small files. n greater than the file count
// yields empty plans, which the orchestrator treats as no-ops; an empty
// manifest yields n empty plans.
func Partition(m types.Manifest, n int, cost types.CostModel) []types.StreamPlan {
	if n < 1 {
		n = 1
	}

	order := make([]int, len(m))
	for i := range order {
		order[i] = i
	}
	// Stable sort on cost only: equal-cost files keep manifest order.
	sort.SliceStable(order, func(a, b int) bool {
		return cost.Cost(m[order[a]].Size) > cost.Cost(m[order[b]].Size)
	})

	plans := make([]types.StreamPlan, n)
	for i := range plans {
		plans[i].Stream = i
		plans[i].Files = []types.FileEntry{}
	}

	for _, idx := range order {
		target := 0
		for i := 1; i < n; i++ {
			if plans[i].EstimatedTime < plans[target].EstimatedTime {
				target = i
			}
		}
		plans[target].Files = append(plans[target].Files, m[idx])
		plans[target].EstimatedTime += cost.Cost(m[idx].Size)
	}

	return plans
}

// Makespan returns the maximum estimated completion time across plans.
func Makespan(plans []types.StreamPlan) float64 {
	var max float64
	for _, p := range plans {
		if p.EstimatedTime > max {
			max = p.EstimatedTime
		}
	}
	return max
}
