package analytics

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"controltower/internal/model"
)

var ErrUnknownGroup = errors.New("unknown group column")

type avg struct {
	sum float64
	n   int
}

func (a *avg) add(v *float64) {
	if v != nil {
		a.sum += *v
		a.n++
	}
}

func (a *avg) addBool(v *bool) {
	if v == nil {
		return
	}
	a.n++
	if *v {
		a.sum++
	}
}

func (a avg) value() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.sum / float64(a.n)
	return &v
}

// KPIs are the headline figures. Averages are nil when no record carried the
// underlying value.
type KPIs struct {
	TotalOrders     int             `json:"totalOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	OnTimeRate      *float64        `json:"onTimeRate"`
	AvgDelayDays    *float64        `json:"avgDelayDays"`
	AvgCostPerOrder *float64        `json:"avgCostPerOrder"`
	TotalEmissionKg float64         `json:"totalEmissionKg"`
	Dropped         int             `json:"dropped"`
}

func Overall(records []model.Enriched) KPIs {
	k := KPIs{TotalOrders: len(records), TotalRevenue: decimal.Zero}
	var onTime, delay, cost avg
	for _, r := range records {
		k.TotalRevenue = k.TotalRevenue.Add(r.Order.Revenue)
		if !r.Resolved {
			k.Dropped++
		}
		onTime.addBool(r.OnTime)
		delay.add(r.DelayDays)
		cost.add(r.TotalCost)
		if r.EmissionKg != nil {
			k.TotalEmissionKg += *r.EmissionKg
		}
	}
	k.OnTimeRate, k.AvgDelayDays, k.AvgCostPerOrder = onTime.value(), delay.value(), cost.value()
	return k
}

// Group columns accepted by the grouped summaries.
const (
	GroupCarrier     = "carrier"
	GroupPriority    = "priority"
	GroupOrigin      = "origin"
	GroupDestination = "destination"
	GroupCategory    = "category"
	GroupSegment     = "segment"
)

// GroupKey returns the accessor for a group column.
func GroupKey(column string) (func(model.Enriched) string, error) {
	switch column {
	case GroupCarrier:
		return model.Enriched.Carrier, nil
	case GroupPriority:
		return func(e model.Enriched) string { return e.Order.Priority }, nil
	case GroupOrigin:
		return func(e model.Enriched) string { return e.Order.Origin }, nil
	case GroupDestination:
		return func(e model.Enriched) string { return e.Order.Destination }, nil
	case GroupCategory:
		return func(e model.Enriched) string { return e.Order.ProductCategory }, nil
	case GroupSegment:
		return func(e model.Enriched) string { return e.Order.CustomerSegment }, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, column)
}

type OnTimeRow struct {
	Group        string   `json:"group"`
	Orders       int      `json:"orders"`
	OnTimeRate   *float64 `json:"onTimeRate"`
	AvgDelayDays *float64 `json:"avgDelayDays"`
}

// OnTimeBy summarises on-time performance per group. Records with an empty
// group value are skipped; rows are sorted by group.
func OnTimeBy(records []model.Enriched, key func(model.Enriched) string) []OnTimeRow {
	type acc struct {
		orders        int
		onTime, delay avg
	}
	groups := map[string]*acc{}
	for _, r := range records {
		g := key(r)
		if g == "" {
			continue
		}
		a := groups[g]
		if a == nil {
			a = &acc{}
			groups[g] = a
		}
		a.orders++
		a.onTime.addBool(r.OnTime)
		a.delay.add(r.DelayDays)
	}
	out := make([]OnTimeRow, 0, len(groups))
	for _, g := range sortedKeys(groups) {
		a := groups[g]
		out = append(out, OnTimeRow{Group: g, Orders: a.orders, OnTimeRate: a.onTime.value(), AvgDelayDays: a.delay.value()})
	}
	return out
}

type LaneRow struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	Carrier       string   `json:"carrier"`
	Orders        int      `json:"orders"`
	AvgCost       *float64 `json:"avgCost"`
	AvgDelayDays  *float64 `json:"avgDelayDays"`
	AvgEmissionKg *float64 `json:"avgEmissionKg"`
	OnTimeRate    *float64 `json:"onTimeRate"`
}

// Lanes summarises every (origin, destination, carrier) combination, in
// first-seen order.
func Lanes(records []model.Enriched) []LaneRow {
	type acc struct {
		row                           LaneRow
		cost, delay, emission, onTime avg
	}
	type key struct{ o, d, c string }
	index := map[key]*acc{}
	var order []*acc
	for _, r := range records {
		k := key{r.Order.Origin, r.Order.Destination, r.Carrier()}
		a := index[k]
		if a == nil {
			a = &acc{row: LaneRow{Origin: k.o, Destination: k.d, Carrier: k.c}}
			index[k] = a
			order = append(order, a)
		}
		a.row.Orders++
		a.cost.add(r.TotalCost)
		a.delay.add(r.DelayDays)
		a.emission.add(r.EmissionKg)
		a.onTime.addBool(r.OnTime)
	}
	out := make([]LaneRow, 0, len(order))
	for _, a := range order {
		row := a.row
		row.AvgCost, row.AvgDelayDays, row.AvgEmissionKg, row.OnTimeRate = a.cost.value(), a.delay.value(), a.emission.value(), a.onTime.value()
		out = append(out, row)
	}
	return out
}

type CostRow struct {
	Group      string                                  `json:"group"`
	Orders     int                                     `json:"orders"`
	Components map[model.CostComponent]decimal.Decimal `json:"components"`
	Total      decimal.Decimal                         `json:"total"`
}

// CostBreakdown sums each cost component per group.
func CostBreakdown(records []model.Enriched, key func(model.Enriched) string) []CostRow {
	groups := map[string]*CostRow{}
	for _, r := range records {
		g := key(r)
		if g == "" || r.Cost == nil {
			continue
		}
		row := groups[g]
		if row == nil {
			row = &CostRow{Group: g, Components: map[model.CostComponent]decimal.Decimal{}, Total: decimal.Zero}
			groups[g] = row
		}
		row.Orders++
		for c, v := range r.Cost.Components {
			row.Components[c] = row.Components[c].Add(v)
			row.Total = row.Total.Add(v)
		}
	}
	out := make([]CostRow, 0, len(groups))
	for _, g := range sortedKeys(groups) {
		out = append(out, *groups[g])
	}
	return out
}

type EmissionRow struct {
	Origin        string   `json:"origin"`
	Orders        int      `json:"orders"`
	TotalKg       float64  `json:"totalKg"`
	AvgKgPerOrder *float64 `json:"avgKgPerOrder"`
}

func EmissionsByOrigin(records []model.Enriched) []EmissionRow {
	groups := map[string]*avg{}
	for _, r := range records {
		if r.EmissionKg == nil || r.Order.Origin == "" {
			continue
		}
		a := groups[r.Order.Origin]
		if a == nil {
			a = &avg{}
			groups[r.Order.Origin] = a
		}
		a.add(r.EmissionKg)
	}
	out := make([]EmissionRow, 0, len(groups))
	for _, o := range sortedKeys(groups) {
		a := groups[o]
		out = append(out, EmissionRow{Origin: o, Orders: a.n, TotalKg: a.sum, AvgKgPerOrder: a.value()})
	}
	return out
}

type CostlyLane struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	Orders        int      `json:"orders"`
	AvgCost       float64  `json:"avgCost"`
	AvgEmissionKg *float64 `json:"avgEmissionKg"`
}

// HighCostLanes returns up to n origin/destination lanes with the highest
// mean total cost.
func HighCostLanes(records []model.Enriched, n int) []CostlyLane {
	type acc struct {
		row            CostlyLane
		cost, emission avg
	}
	index := map[string]*acc{}
	var order []*acc
	for _, r := range records {
		if r.TotalCost == nil {
			continue
		}
		id := r.Lane()
		a := index[id]
		if a == nil {
			a = &acc{row: CostlyLane{Origin: r.Order.Origin, Destination: r.Order.Destination}}
			index[id] = a
			order = append(order, a)
		}
		a.row.Orders++
		a.cost.add(r.TotalCost)
		a.emission.add(r.EmissionKg)
	}
	out := make([]CostlyLane, 0, len(order))
	for _, a := range order {
		row := a.row
		row.AvgCost = *a.cost.value()
		row.AvgEmissionKg = a.emission.value()
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgCost > out[j].AvgCost })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
