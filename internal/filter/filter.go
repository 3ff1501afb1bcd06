// Package filter narrows an in-memory list of maintenance requests by sector,
// machine, requester, status, priority, service type and creation date.
//
// Every dimension is a set of allowed values; an empty set places no
// restriction on that dimension. Results keep the input order.
package filter

import (
	"slices"
	"time"

	"github.com/erazemk/manutencao/internal/model"
)

// DateRange is an inclusive range of calendar days. A zero From means no range.
// A zero To means the single day From.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Active reports whether the range restricts anything.
func (d DateRange) Active() bool {
	return !d.From.IsZero()
}

// Bounds returns the first and last instants the range includes: midnight of
// From and the last nanosecond of To, both in From's location.
func (d DateRange) Bounds() (time.Time, time.Time) {
	loc := d.From.Location()
	y, m, day := d.From.Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, loc)

	to := d.To
	if to.IsZero() {
		to = d.From
	}
	y, m, day = to.In(loc).Date()
	end := time.Date(y, m, day, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	return start, end
}

// Contains reports whether t falls inside the range. An inactive range
// contains everything.
func (d DateRange) Contains(t time.Time) bool {
	if !d.Active() {
		return true
	}
	start, end := d.Bounds()
	return !t.Before(start) && !t.After(end)
}

// Criteria is the set of active constraints.
type Criteria struct {
	Sectors      []string
	Machines     []string
	Requesters   []string // requester names
	Statuses     []model.Status
	Priorities   []model.Priority
	ServiceTypes []model.ServiceType
	Range        DateRange
}

// Empty reports whether c restricts nothing, counting the requester
// dimension only when includeRequester is set.
func (c Criteria) Empty(includeRequester bool) bool {
	return c.ActiveCount(includeRequester) == 0
}

// ActiveCount is the number of dimensions that restrict the list.
func (c Criteria) ActiveCount(includeRequester bool) int {
	n := 0
	for _, active := range []bool{
		len(c.Sectors) > 0,
		len(c.Machines) > 0,
		includeRequester && len(c.Requesters) > 0,
		len(c.Statuses) > 0,
		len(c.Priorities) > 0,
		len(c.ServiceTypes) > 0,
		c.Range.Active(),
	} {
		if active {
			n++
		}
	}
	return n
}

// Match reports whether r passes every active dimension.
func (c Criteria) Match(r model.Request, includeRequester bool) bool {
	return allows(c.Sectors, r.Sector) &&
		allows(c.Machines, r.Machine) &&
		(!includeRequester || allows(c.Requesters, r.RequesterName)) &&
		allows(c.Statuses, r.Status) &&
		allows(c.Priorities, r.Priority.OrDefault()) &&
		allows(c.ServiceTypes, r.ServiceType.OrDefault()) &&
		c.Range.Contains(r.CreatedAt)
}

func allows[T comparable](set []T, v T) bool {
	return len(set) == 0 || slices.Contains(set, v)
}

// Apply returns the requests in all that match c, in their original order.
// The requester dimension only applies when includeRequester is set; the
// operator view is already scoped to one requester. The result never aliases
// all.
func Apply(all []model.Request, c Criteria, includeRequester bool) []model.Request {
	if c.Empty(includeRequester) {
		return slices.Clone(all)
	}

	out := make([]model.Request, 0, len(all))
	for _, r := range all {
		if c.Match(r, includeRequester) {
			out = append(out, r)
		}
	}
	return out
}

// Toggle adds v to set, or removes it if already present.
func Toggle[T comparable](set []T, v T) []T {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}
