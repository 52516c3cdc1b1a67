package opt

import (
	"fmt"
	"math"
	"sort"
	"time"

	"controltower/internal/model"
)

type StockStatus string

const (
	StatusNoRecentDemand StockStatus = "no_recent_demand"
	StatusUnderstocked   StockStatus = "understocked"
	StatusOverstocked    StockStatus = "overstocked"
	StatusHealthy        StockStatus = "healthy"
)

// StockItem is the health of one (warehouse, category) pair. Cover is nil
// when there was no demand in the window.
type StockItem struct {
	Warehouse    string      `json:"warehouse"`
	Category     string      `json:"category"`
	Stock        float64     `json:"stock"`
	ReorderLevel float64     `json:"reorderLevel"`
	Demand       float64     `json:"demand"`
	DailyDemand  float64     `json:"dailyDemand"`
	Cover        *float64    `json:"coverDays"`
	Status       StockStatus `json:"status"`
	Deficit      float64     `json:"deficit"`
	Surplus      float64     `json:"surplus"`
	HasInventory bool        `json:"hasInventory"`
}

// target is the level a healthy item is expected to hold.
func (it StockItem) target() float64 { return math.Max(it.ReorderLevel, it.Demand) }

type Transfer struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Category string  `json:"category"`
	Quantity float64 `json:"quantity"`
}

type Reorder struct {
	Warehouse    string  `json:"warehouse"`
	Category     string  `json:"category"`
	Quantity     float64 `json:"quantity"`
	Uncovered    float64 `json:"uncoveredDeficit"`
	HasInventory bool    `json:"hasInventory"`
}

type Plan struct {
	Items     []StockItem `json:"items"`
	Transfers []Transfer  `json:"transfers"`
	Reorders  []Reorder   `json:"reorders"`
	Flags     []string    `json:"flags"`
	// Anchor is the latest order date; the demand window ends there.
	Anchor       *time.Time `json:"anchor,omitempty"`
	LookbackDays int        `json:"lookbackDays"`
}

type pairKey struct{ warehouse, category string }

// Rebalance classifies every inventory row against trailing demand and
// proposes transfers from overstocked to understocked warehouses, falling
// back to reorders for whatever transfers cannot cover.
func Rebalance(orders []model.Order, inventory []model.InventorySnapshot, h model.Heuristics) Plan {
	plan := Plan{
		Items:        []StockItem{},
		Transfers:    []Transfer{},
		Reorders:     []Reorder{},
		Flags:        []string{},
		LookbackDays: h.LookbackDays,
	}
	demand, anchor := windowDemand(orders, h.LookbackDays, h.DemandBasis)
	plan.Anchor = anchor

	seen := map[pairKey]bool{}
	stocked := map[string]bool{}
	for _, inv := range inventory {
		k := pairKey{inv.Warehouse, inv.ProductCategory}
		stocked[inv.ProductCategory] = true
		if seen[k] {
			plan.Flags = append(plan.Flags, fmt.Sprintf("duplicate inventory row for %s/%s ignored; first row kept", inv.Warehouse, inv.ProductCategory))
			continue
		}
		seen[k] = true
		plan.Items = append(plan.Items, classify(StockItem{
			Warehouse:    inv.Warehouse,
			Category:     inv.ProductCategory,
			Stock:        inv.Stock,
			ReorderLevel: inv.ReorderLevel,
			Demand:       demand[k],
			HasInventory: true,
		}, h))
	}

	var orphans []pairKey
	for k, d := range demand {
		if d > 0 && !seen[k] {
			orphans = append(orphans, k)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].category != orphans[j].category {
			return orphans[i].category < orphans[j].category
		}
		return orphans[i].warehouse < orphans[j].warehouse
	})
	flagged := map[string]bool{}
	for _, k := range orphans {
		plan.Items = append(plan.Items, classify(StockItem{Warehouse: k.warehouse, Category: k.category, Demand: demand[k]}, h))
		if !stocked[k.category] && !flagged[k.category] {
			flagged[k.category] = true
			plan.Flags = append(plan.Flags, fmt.Sprintf("category %q has demand but no inventory rows", k.category))
		}
	}

	covered := allocateTransfers(&plan)
	for _, it := range plan.Items {
		if it.Status != StatusUnderstocked {
			continue
		}
		left := it.Deficit - covered[pairKey{it.Warehouse, it.Category}]
		if it.Deficit > 0 && left <= 0 {
			continue
		}
		plan.Reorders = append(plan.Reorders, Reorder{
			Warehouse:    it.Warehouse,
			Category:     it.Category,
			Quantity:     it.target() + h.ReorderBuffer,
			Uncovered:    math.Max(left, 0),
			HasInventory: it.HasInventory,
		})
	}
	return plan
}

// windowDemand counts orders (or units) per origin and category with an order
// date in (anchor-lookback, anchor]. Undated orders are ignored.
func windowDemand(orders []model.Order, lookbackDays int, basis string) (map[pairKey]float64, *time.Time) {
	var anchor *time.Time
	for i := range orders {
		d := orders[i].OrderDate
		if d != nil && (anchor == nil || d.After(*anchor)) {
			anchor = d
		}
	}
	out := map[pairKey]float64{}
	if anchor == nil {
		return out, nil
	}
	start := anchor.AddDate(0, 0, -lookbackDays)
	for _, o := range orders {
		if o.OrderDate == nil || !o.OrderDate.After(start) || o.OrderDate.After(*anchor) {
			continue
		}
		if o.Origin == "" || o.ProductCategory == "" {
			continue
		}
		n := 1.0
		if basis == model.DemandByQuantity {
			n = o.Quantity
		}
		out[pairKey{o.Origin, o.ProductCategory}] += n
	}
	a := *anchor
	return out, &a
}

func classify(it StockItem, h model.Heuristics) StockItem {
	if h.LookbackDays > 0 {
		it.DailyDemand = it.Demand / float64(h.LookbackDays)
	}
	target := it.target()
	switch {
	case it.DailyDemand <= 0:
		it.Status = StatusNoRecentDemand
	case it.Stock/it.DailyDemand < h.UnderstockDays:
		it.Status = StatusUnderstocked
		it.Deficit = math.Max(target-it.Stock, 0)
	case it.Stock > target*h.SurplusFactor:
		it.Status = StatusOverstocked
		it.Surplus = it.Stock - target
	default:
		it.Status = StatusHealthy
	}
	if it.DailyDemand > 0 {
		cover := it.Stock / it.DailyDemand
		it.Cover = &cover
	}
	return it
}

// allocateTransfers greedily matches the largest deficits with the largest
// surpluses of the same category. Sources never drop below their target,
// which is at least their reorder level. Items without an inventory row only
// get reorders.
func allocateTransfers(plan *Plan) map[pairKey]float64 {
	var dests, sources []int
	for i, it := range plan.Items {
		switch {
		case it.Status == StatusUnderstocked && it.HasInventory && it.Deficit > 0:
			dests = append(dests, i)
		case it.Status == StatusOverstocked && it.Surplus > 0:
			sources = append(sources, i)
		}
	}
	sort.SliceStable(dests, func(a, b int) bool { return plan.Items[dests[a]].Deficit > plan.Items[dests[b]].Deficit })
	sort.SliceStable(sources, func(a, b int) bool { return plan.Items[sources[a]].Surplus > plan.Items[sources[b]].Surplus })

	available := make(map[int]float64, len(sources))
	for _, s := range sources {
		available[s] = plan.Items[s].Surplus
	}
	covered := map[pairKey]float64{}
	for _, d := range dests {
		dst := plan.Items[d]
		need := dst.Deficit
		for _, s := range sources {
			if need <= 0 {
				break
			}
			src := plan.Items[s]
			if src.Category != dst.Category || src.Warehouse == dst.Warehouse || available[s] <= 0 {
				continue
			}
			qty := math.Min(available[s], need)
			available[s] -= qty
			need -= qty
			plan.Transfers = append(plan.Transfers, Transfer{From: src.Warehouse, To: dst.Warehouse, Category: dst.Category, Quantity: qty})
		}
		covered[pairKey{dst.Warehouse, dst.Category}] = dst.Deficit - need
	}
	return covered
}
