// Package analytics holds the global filters and the dashboard aggregates
// computed over the filtered, enriched records.
package analytics

import (
	"sort"
	"strings"
	"time"

	"controltower/internal/model"
)

// Filter narrows the active record set. Empty sets match everything; a date
// bound excludes orders without an order date.
type Filter struct {
	From         *time.Time `json:"from,omitempty"`
	To           *time.Time `json:"to,omitempty"`
	Priorities   []string   `json:"priority,omitempty"`
	Categories   []string   `json:"category,omitempty"`
	Origins      []string   `json:"origin,omitempty"`
	Destinations []string   `json:"destination,omitempty"`
	Segments     []string   `json:"segment,omitempty"`
}

func (f Filter) IsZero() bool {
	return f.From == nil && f.To == nil && len(f.Priorities) == 0 && len(f.Categories) == 0 &&
		len(f.Origins) == 0 && len(f.Destinations) == 0 && len(f.Segments) == 0
}

func in(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Match reports whether an order passes every filter. Both date bounds are
// inclusive; To covers the whole day.
func (f Filter) Match(o model.Order) bool {
	if f.From != nil || f.To != nil {
		if o.OrderDate == nil {
			return false
		}
		if f.From != nil && o.OrderDate.Before(*f.From) {
			return false
		}
		if f.To != nil && !o.OrderDate.Before(f.To.AddDate(0, 0, 1)) {
			return false
		}
	}
	return in(f.Priorities, o.Priority) &&
		in(f.Categories, o.ProductCategory) &&
		in(f.Origins, o.Origin) &&
		in(f.Destinations, o.Destination) &&
		in(f.Segments, o.CustomerSegment)
}

func (f Filter) Master(records []model.MasterRecord) []model.MasterRecord {
	out := make([]model.MasterRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r.Order) {
			out = append(out, r)
		}
	}
	return out
}

func (f Filter) Orders(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Inventory applies the category filter only; stock rows carry no dates or lanes.
func (f Filter) Inventory(rows []model.InventorySnapshot) []model.InventorySnapshot {
	out := make([]model.InventorySnapshot, 0, len(rows))
	for _, r := range rows {
		if in(f.Categories, r.ProductCategory) {
			out = append(out, r)
		}
	}
	return out
}

// Key is a canonical form of the filter, stable under set reordering.
func (f Filter) Key() string {
	var b strings.Builder
	day := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	b.WriteString("from=" + day(f.From) + ";to=" + day(f.To))
	for _, kv := range []struct {
		name string
		set  []string
	}{
		{"priority", f.Priorities}, {"category", f.Categories}, {"origin", f.Origins},
		{"destination", f.Destinations}, {"segment", f.Segments},
	} {
		vals := append([]string(nil), kv.set...)
		sort.Strings(vals)
		b.WriteString(";" + kv.name + "=" + strings.Join(vals, ","))
	}
	return b.String()
}

// Options lists the distinct values of each filterable column and the
// order date bounds.
type Options struct {
	Priorities   []string   `json:"priorities"`
	Categories   []string   `json:"categories"`
	Origins      []string   `json:"origins"`
	Destinations []string   `json:"destinations"`
	Segments     []string   `json:"segments"`
	MinDate      *time.Time `json:"minDate,omitempty"`
	MaxDate      *time.Time `json:"maxDate,omitempty"`
}

func FilterOptions(orders []model.Order) Options {
	sets := make([]map[string]struct{}, 5)
	for i := range sets {
		sets[i] = map[string]struct{}{}
	}
	var opts Options
	for _, o := range orders {
		for i, v := range []string{o.Priority, o.ProductCategory, o.Origin, o.Destination, o.CustomerSegment} {
			if v != "" {
				sets[i][v] = struct{}{}
			}
		}
		if d := o.OrderDate; d != nil {
			if opts.MinDate == nil || d.Before(*opts.MinDate) {
				opts.MinDate = d
			}
			if opts.MaxDate == nil || d.After(*opts.MaxDate) {
				opts.MaxDate = d
			}
		}
	}
	opts.Priorities = sortedKeys(sets[0])
	opts.Categories = sortedKeys(sets[1])
	opts.Origins = sortedKeys(sets[2])
	opts.Destinations = sortedKeys(sets[3])
	opts.Segments = sortedKeys(sets[4])
	return opts
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
