package subscription

import (
	"sort"

	"github.com/suprohub/novaprox/internal/model"
)

// Set is one run's publishable output: survivors grouped by protocol plus
// the combined group, each ordered by ascending latency.
type Set struct {
	Groups map[model.Protocol][]model.ProbeResult
	All    []model.ProbeResult
}

// Build keeps only successful results and ranks them. Latency ties keep
// submission order.
func Build(batch model.ProbeBatch) *Set {
	all := make([]model.ProbeResult, 0, len(batch))
	for _, res := range batch {
		if res.Success() {
			all = append(all, res)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Latency != all[j].Latency {
			return all[i].Latency < all[j].Latency
		}
		return all[i].Seq < all[j].Seq
	})

	groups := make(map[model.Protocol][]model.ProbeResult)
	for _, res := range all {
		proto := res.Endpoint.Protocol
		groups[proto] = append(groups[proto], res)
	}

	return &Set{Groups: groups, All: all}
}
