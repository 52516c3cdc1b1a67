// Package derive computes per-order KPIs from joined master records.
package derive

import (
	"math"

	"controltower/internal/model"
)

// Result is the output of one enrichment pass.
type Result struct {
	Records []model.Enriched
	// Dropped counts records without a route or cost row. They stay in
	// Records with Resolved=false and nil derived fields.
	Dropped int
	Tiers   map[model.EmissionTier]int
}

// Enrich derives delay, cost per km, emissions and the on-time flag for every
// master record. It never mutates its inputs.
func Enrich(master []model.MasterRecord, fleet []model.Vehicle, h model.Heuristics) Result {
	rates := newRateResolver(fleet, h.FallbackCO2PerKm)
	res := Result{
		Records: make([]model.Enriched, 0, len(master)),
		Tiers:   map[model.EmissionTier]int{},
	}
	for _, m := range master {
		e := model.Enriched{MasterRecord: m}
		if m.Route == nil || m.Cost == nil {
			res.Dropped++
			res.Records = append(res.Records, e)
			continue
		}
		e.Resolved = true
		total := m.TotalDeliveryCost().InexactFloat64()
		e.TotalCost = &total
		e.DelayDays = Delay(m.Delivery)
		if e.DelayDays != nil {
			onTime := *e.DelayDays <= 0
			e.OnTime = &onTime
		}
		if d := m.Route.DistanceKm; d != nil {
			dist := *d
			e.DistanceKm = &dist
			if dist > 0 {
				cpk := total / dist
				e.CostPerKm = &cpk
			}
			vehicleID := ""
			if m.Delivery != nil {
				vehicleID = m.Delivery.VehicleID
			}
			rate, tier := rates.resolve(vehicleID)
			kg := dist * rate
			e.EmissionKg = &kg
			e.EmissionTier = tier
			res.Tiers[tier]++
		}
		res.Records = append(res.Records, e)
	}
	return res
}

// Delay returns actual minus promised delivery in whole days, negative when
// early. Nil unless both calendar dates parsed; day counts never stand in.
func Delay(d *model.Delivery) *float64 {
	if d == nil || d.ActualDate == nil || d.PromisedDate == nil {
		return nil
	}
	days := math.Floor(d.ActualDate.Sub(*d.PromisedDate).Hours() / 24)
	return &days
}

type rateResolver struct {
	byVehicle map[string]float64
	average   float64
	hasAvg    bool
	fallback  float64
}

func newRateResolver(fleet []model.Vehicle, fallback float64) rateResolver {
	r := rateResolver{byVehicle: make(map[string]float64, len(fleet)), fallback: fallback}
	sum, n := 0.0, 0
	for _, v := range fleet {
		if v.CO2PerKm == nil || *v.CO2PerKm <= 0 {
			continue
		}
		if _, dup := r.byVehicle[v.ID]; !dup {
			r.byVehicle[v.ID] = *v.CO2PerKm
		}
		sum += *v.CO2PerKm
		n++
	}
	if n > 0 {
		r.average = sum / float64(n)
		r.hasAvg = true
	}
	return r
}

// resolve picks the CO2 rate for a vehicle: its own documented rate, then the
// fleet average, then the fixed fallback.
func (r rateResolver) resolve(vehicleID string) (float64, model.EmissionTier) {
	if rate, ok := r.byVehicle[vehicleID]; ok && vehicleID != "" {
		return rate, model.TierVehicle
	}
	if r.hasAvg {
		return r.average, model.TierFleetAverage
	}
	return r.fallback, model.TierDefault
}
