package report

import (
	"sort"

	"workshopportal/internal/model"
)

type WorkshopCount struct {
	Workshop string `json:"workshop"`
	Count    int    `json:"count"`
}

// AggregateByWorkshop counts registrations per workshop. Only workshops that
// appear in regs get an entry.
func AggregateByWorkshop(regs []model.Registration) map[string]int {
	counts := make(map[string]int)
	for _, r := range regs {
		counts[r.Workshop]++
	}
	return counts
}

// SortedCounts orders counts by descending count, then by workshop name.
func SortedCounts(counts map[string]int) []WorkshopCount {
	out := make([]WorkshopCount, 0, len(counts))
	for w, c := range counts {
		out = append(out, WorkshopCount{Workshop: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Workshop < out[j].Workshop
	})
	return out
}
