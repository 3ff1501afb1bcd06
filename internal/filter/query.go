package filter

import (
	"net/url"
	"slices"
	"time"

	"github.com/erazemk/manutencao/internal/model"
)

// DateLayout is how dates appear in filter query strings.
const DateLayout = "2006-01-02"

// Query parameter names.
const (
	paramSector    = "sector"
	paramMachine   = "machine"
	paramRequester = "requester"
	paramStatus    = "status"
	paramPriority  = "priority"
	paramService   = "service"
	paramFrom      = "from"
	paramTo        = "to"
)

// ParseQuery reads criteria from URL query values, as submitted by the
// dashboard filter form. Unknown enum values and unparseable dates are
// ignored. Dates are interpreted in loc.
func ParseQuery(v url.Values, loc *time.Location) Criteria {
	c := Criteria{
		Sectors:    nonBlank(v[paramSector]),
		Machines:   nonBlank(v[paramMachine]),
		Requesters: nonBlank(v[paramRequester]),
	}
	for _, s := range v[paramStatus] {
		if status, ok := model.ParseStatus(s); ok && !slices.Contains(c.Statuses, status) {
			c.Statuses = append(c.Statuses, status)
		}
	}
	for _, s := range nonBlank(v[paramPriority]) {
		if p := model.ParsePriority(s); !slices.Contains(c.Priorities, p) {
			c.Priorities = append(c.Priorities, p)
		}
	}
	for _, s := range nonBlank(v[paramService]) {
		if t := model.ParseServiceType(s); !slices.Contains(c.ServiceTypes, t) {
			c.ServiceTypes = append(c.ServiceTypes, t)
		}
	}

	if from, err := time.ParseInLocation(DateLayout, v.Get(paramFrom), loc); err == nil {
		c.Range.From = from
		if to, err := time.ParseInLocation(DateLayout, v.Get(paramTo), loc); err == nil && !to.Before(from) {
			c.Range.To = to
		}
	}
	return c
}

// Query encodes c so that ParseQuery returns an equivalent Criteria.
func (c Criteria) Query() url.Values {
	v := url.Values{}
	v[paramSector] = c.Sectors
	v[paramMachine] = c.Machines
	v[paramRequester] = c.Requesters
	for _, s := range c.Statuses {
		v.Add(paramStatus, string(s))
	}
	for _, p := range c.Priorities {
		v.Add(paramPriority, string(p))
	}
	for _, t := range c.ServiceTypes {
		v.Add(paramService, string(t))
	}
	if c.Range.Active() {
		v.Set(paramFrom, c.Range.From.Format(DateLayout))
		if !c.Range.To.IsZero() {
			v.Set(paramTo, c.Range.To.Format(DateLayout))
		}
	}
	for k, vals := range v {
		if len(vals) == 0 {
			delete(v, k)
		}
	}
	return v
}

func nonBlank(values []string) []string {
	var out []string
	for _, s := range values {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
