package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"controltower/internal/model"
)

// Header names are matched after lowercasing and dropping everything that is
// not a letter or digit, so "Order_ID", "order id" and "OrderId" are equal.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"02-01-2006",
	"01/02/2006",
}

func isNullCell(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "nat", "null", "none", "na", "n/a":
		return true
	}
	return false
}

type parser struct {
	table    string
	cols     map[string]int
	rec      []string
	warnings int
}

func newParser(table string, header []string) *parser {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		k := normalizeHeader(h)
		if _, dup := cols[k]; !dup {
			cols[k] = i
		}
	}
	return &parser{table: table, cols: cols}
}

func (p *parser) cell(aliases ...string) string {
	for _, a := range aliases {
		if i, ok := p.cols[a]; ok && i < len(p.rec) {
			return strings.TrimSpace(p.rec[i])
		}
	}
	return ""
}

func (p *parser) str(aliases ...string) string {
	v := p.cell(aliases...)
	if isNullCell(v) {
		return ""
	}
	return v
}

func (p *parser) float(aliases ...string) *float64 {
	v := p.cell(aliases...)
	if isNullCell(v) {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		p.warnings++
		return nil
	}
	return &f
}

func (p *parser) money(aliases ...string) decimal.Decimal {
	v := p.cell(aliases...)
	if isNullCell(v) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		p.warnings++
		return decimal.Zero
	}
	return d
}

func (p *parser) date(aliases ...string) *time.Time {
	v := p.cell(aliases...)
	if isNullCell(v) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	p.warnings++
	return nil
}

func (p *parser) each(rows [][]string, fn func()) {
	for _, rec := range rows {
		p.rec = rec
		fn()
	}
	p.rec = nil
}

func (p *parser) orders(rows [][]string, notices *[]Notice) []model.Order {
	out := make([]model.Order, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	dups := 0
	p.each(rows, func() {
		id := p.str("orderid")
		if id == "" {
			p.warnings++
			return
		}
		if _, ok := seen[id]; ok {
			dups++
			return
		}
		seen[id] = struct{}{}
		qty := 1.0
		if q := p.float("quantity", "qty", "units"); q != nil {
			qty = *q
		}
		out = append(out, model.Order{
			ID:              id,
			OrderDate:       p.date("orderdate"),
			Origin:          p.str("origin", "warehouse"),
			Destination:     p.str("destination"),
			ProductCategory: p.str("productcategory", "category"),
			Priority:        p.str("priority"),
			CustomerSegment: p.str("customersegment", "segment"),
			Quantity:        qty,
			Revenue:         p.money("ordervalueinr", "ordervalue", "revenue"),
			SpecialHandling: p.str("specialhandling"),
		})
	})
	if dups > 0 {
		*notices = append(*notices, Notice{Table: p.table, Kind: NoticeDuplicate, Message: fmt.Sprintf("%d rows with a repeated order id were skipped", dups)})
	}
	return out
}

func (p *parser) deliveries(rows [][]string) []model.Delivery {
	out := make([]model.Delivery, 0, len(rows))
	p.each(rows, func() {
		id := p.str("orderid")
		if id == "" {
			p.warnings++
			return
		}
		out = append(out, model.Delivery{
			OrderID:        id,
			Carrier:        p.str("carrier"),
			VehicleID:      p.str("vehicleid", "vehicle"),
			PromisedDate:   p.date("promiseddeliverydate", "promiseddate"),
			ActualDate:     p.date("actualdeliverydate", "actualdate"),
			PromisedDays:   p.float("promiseddeliverydays", "promiseddays"),
			ActualDays:     p.float("actualdeliverydays", "actualdays"),
			Status:         p.str("deliverystatus", "status"),
			DeliveryCost:   p.money("deliverycostinr", "deliverycost"),
			CustomerRating: p.float("customerrating"),
		})
	})
	return out
}

func (p *parser) routes(rows [][]string) []model.RouteRecord {
	out := make([]model.RouteRecord, 0, len(rows))
	p.each(rows, func() {
		id := p.str("orderid")
		if id == "" {
			p.warnings++
			return
		}
		out = append(out, model.RouteRecord{
			OrderID:        id,
			Route:          p.str("route"),
			DistanceKm:     p.float("distancekm", "distance"),
			FuelConsumedL:  p.float("fuelconsumedl", "fuelconsumptionl"),
			TollCharges:    p.float("tollchargesinr", "tollcharges"),
			TrafficDelayMn: p.float("trafficdelayminutes"),
		})
	})
	return out
}

func (p *parser) fleet(rows [][]string) []model.Vehicle {
	out := make([]model.Vehicle, 0, len(rows))
	p.each(rows, func() {
		id := p.str("vehicleid")
		if id == "" {
			p.warnings++
			return
		}
		out = append(out, model.Vehicle{
			ID:             id,
			Type:           p.str("vehicletype", "type"),
			CO2PerKm:       p.float("co2kgperkm", "co2emissionskgperkm", "co2perkm"),
			FuelEfficiency: p.float("fuelefficiencykmperl", "fuelefficiency"),
			Status:         p.str("status"),
			Location:       p.str("currentlocation", "location"),
		})
	})
	return out
}

func (p *parser) inventory(rows [][]string, notices *[]Notice) []model.InventorySnapshot {
	out := make([]model.InventorySnapshot, 0, len(rows))
	seen := make(map[[2]string]struct{}, len(rows))
	dups := 0
	p.each(rows, func() {
		wh := p.str("warehouse", "location")
		cat := p.str("productcategory", "category")
		if wh == "" || cat == "" {
			p.warnings++
			return
		}
		if _, ok := seen[[2]string{wh, cat}]; ok {
			dups++
			return
		}
		seen[[2]string{wh, cat}] = struct{}{}
		snap := model.InventorySnapshot{
			Warehouse:       wh,
			ProductCategory: cat,
			StorageCost:     p.float("storagecostperunit", "storagecostperunitinr", "storagecost"),
			LastRestocked:   p.date("lastrestockeddate"),
		}
		if v := p.float("stocklevel", "currentstockunits", "currentstock", "stock"); v != nil {
			snap.Stock = *v
		}
		if v := p.float("reorderlevel"); v != nil {
			snap.ReorderLevel = *v
		}
		out = append(out, snap)
	})
	if dups > 0 {
		*notices = append(*notices, Notice{Table: p.table, Kind: NoticeDuplicate, Message: fmt.Sprintf("%d rows with a repeated warehouse and category were skipped", dups)})
	}
	return out
}

func (p *parser) feedback(rows [][]string) []model.Feedback {
	out := make([]model.Feedback, 0, len(rows))
	p.each(rows, func() {
		out = append(out, model.Feedback{
			ID:             p.str("feedbackid"),
			OrderID:        p.str("orderid"),
			Date:           p.date("feedbackdate", "date"),
			Rating:         p.float("rating"),
			Text:           p.str("feedbacktext", "text"),
			IssueCategory:  p.str("issuecategory"),
			WouldRecommend: p.str("wouldrecommend"),
		})
	})
	return out
}

var costAliases = map[model.CostComponent][]string{
	model.CostFuel:        {"fuelcostinr", "fuelcost"},
	model.CostLabor:       {"laborcostinr", "laborcost"},
	model.CostMaintenance: {"maintenancecostinr", "vehiclemaintenance", "maintenancecost"},
	model.CostInsurance:   {"insurancecostinr", "insurance", "insurancecost"},
	model.CostPackaging:   {"packagingcostinr", "packagingcost"},
	model.CostTechnology:  {"technologyfeeinr", "technologyplatformfee", "technologyfee"},
	model.CostOverhead:    {"otheroverheadinr", "otheroverhead"},
	model.CostToll:        {"tollcostinr", "tollcost"},
}

func (p *parser) costs(rows [][]string) []model.CostRecord {
	out := make([]model.CostRecord, 0, len(rows))
	p.each(rows, func() {
		id := p.str("orderid")
		if id == "" {
			p.warnings++
			return
		}
		rec := model.CostRecord{OrderID: id, Components: map[model.CostComponent]decimal.Decimal{}}
		for _, c := range model.CostComponents {
			if p.cell(costAliases[c]...) == "" {
				continue
			}
			rec.Components[c] = p.money(costAliases[c]...)
		}
		out = append(out, rec)
	})
	return out
}
