package filter

import (
	"slices"
	"strings"

	"github.com/erazemk/manutencao/internal/model"
)

// Options holds the values a viewer can pick from. They are always derived
// from the unfiltered list, so picking a value never shrinks the choices.
type Options struct {
	Sectors      []string
	Machines     []string
	Requesters   []string
	ServiceTypes []model.ServiceType
}

// OptionsFor collects the distinct, sorted values present in all. Blank
// values are left out.
func OptionsFor(all []model.Request) Options {
	var o Options
	for _, r := range all {
		o.Sectors = appendValue(o.Sectors, r.Sector)
		o.Machines = appendValue(o.Machines, r.Machine)
		o.Requesters = appendValue(o.Requesters, r.RequesterName)
		o.ServiceTypes = appendValue(o.ServiceTypes, r.ServiceType.OrDefault())
	}
	slices.Sort(o.Sectors)
	slices.Sort(o.Machines)
	slices.Sort(o.Requesters)
	slices.Sort(o.ServiceTypes)
	return o
}

func appendValue[T ~string](set []T, v T) []T {
	if strings.TrimSpace(string(v)) == "" || slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

// StatusCounts tallies requests per status. Every known status has an entry.
func StatusCounts(all []model.Request) map[model.Status]int {
	counts := make(map[model.Status]int, len(model.Statuses))
	for _, s := range model.Statuses {
		counts[s] = 0
	}
	for _, r := range all {
		counts[r.Status]++
	}
	return counts
}
