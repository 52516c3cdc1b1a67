package opt

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"controltower/internal/model"
)

// ErrInvalidWeights is returned for a negative, non-finite or zero-sum weight vector.
var ErrInvalidWeights = errors.New("invalid weights")

type Weights struct {
	Cost     float64 `json:"cost"`
	Delay    float64 `json:"delay"`
	Emission float64 `json:"emission"`
}

func WeightsFrom(v [3]float64) Weights { return Weights{Cost: v[0], Delay: v[1], Emission: v[2]} }

// Normalize divides each weight by the sum of all three.
func (w Weights) Normalize() (Weights, error) {
	for _, v := range []float64{w.Cost, w.Delay, w.Emission} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Weights{}, fmt.Errorf("%w: weights must be finite and non-negative", ErrInvalidWeights)
		}
	}
	sum := w.Cost + w.Delay + w.Emission
	if sum == 0 {
		return Weights{}, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return Weights{Cost: w.Cost / sum, Delay: w.Delay / sum, Emission: w.Emission / sum}, nil
}

type Granularity string

const (
	ByOrder Granularity = "order"
	ByLane  Granularity = "lane"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", ByOrder:
		return ByOrder, nil
	case ByLane:
		return ByLane, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// RouteScore is one ranked row. Raw metrics are nil when no value was
// available; the matching scaled value is then the neutral score.
type RouteScore struct {
	ID             string   `json:"id"`
	Origin         string   `json:"origin"`
	Destination    string   `json:"destination"`
	Carrier        string   `json:"carrier,omitempty"`
	Orders         int      `json:"orders"`
	CostPerKm      *float64 `json:"costPerKm"`
	Delay          *float64 `json:"delayDays"`
	Emission       *float64 `json:"emissionKg"`
	ScaledCost     float64  `json:"scaledCost"`
	ScaledDelay    float64  `json:"scaledDelay"`
	ScaledEmission float64  `json:"scaledEmission"`
	Score          float64  `json:"score"`
	Rank           int      `json:"rank"`
}

// ScoreRoutes ranks resolved records (or lanes) by a weighted composite of
// min-max scaled cost per km, delay and emissions. Higher raw values scale
// higher, so a lower score is better and rank 1 is the best candidate.
func ScoreRoutes(records []model.Enriched, w Weights, g Granularity, neutral float64) ([]RouteScore, error) {
	nw, err := w.Normalize()
	if err != nil {
		return nil, err
	}
	var rows []RouteScore
	switch g {
	case ByLane:
		rows = aggregateLanes(records)
	default:
		rows = orderRows(records)
	}
	if len(rows) == 0 {
		return []RouteScore{}, nil
	}
	cost := make([]*float64, len(rows))
	delay := make([]*float64, len(rows))
	emission := make([]*float64, len(rows))
	for i, r := range rows {
		cost[i], delay[i], emission[i] = r.CostPerKm, r.Delay, r.Emission
	}
	sc := MinMax(cost, neutral)
	sd := MinMax(delay, neutral)
	se := MinMax(emission, neutral)
	for i := range rows {
		rows[i].ScaledCost, rows[i].ScaledDelay, rows[i].ScaledEmission = sc[i], sd[i], se[i]
		rows[i].Score = nw.Cost*sc[i] + nw.Delay*sd[i] + nw.Emission*se[i]
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score < rows[j].Score })
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// MinMax scales values to [0,1]. Nil values and every value of a
// zero-variance set get neutral.
func MinMax(values []*float64, neutral float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v == nil {
			continue
		}
		lo = math.Min(lo, *v)
		hi = math.Max(hi, *v)
	}
	out := make([]float64, len(values))
	span := hi - lo
	for i, v := range values {
		if v == nil || !(span > 0) {
			out[i] = neutral
			continue
		}
		out[i] = (*v - lo) / span
	}
	return out
}

func orderRows(records []model.Enriched) []RouteScore {
	out := make([]RouteScore, 0, len(records))
	for _, r := range records {
		if !r.Resolved {
			continue
		}
		out = append(out, RouteScore{
			ID:          r.ID(),
			Origin:      r.Order.Origin,
			Destination: r.Order.Destination,
			Carrier:     r.Carrier(),
			Orders:      1,
			CostPerKm:   r.CostPerKm,
			Delay:       r.DelayDays,
			Emission:    r.EmissionKg,
		})
	}
	return out
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v != nil {
		m.sum += *v
		m.n++
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// aggregateLanes averages each metric over the non-null values of every
// order sharing an origin and destination. Lanes keep first-seen order.
func aggregateLanes(records []model.Enriched) []RouteScore {
	type lane struct {
		row                   RouteScore
		cost, delay, emission mean
	}
	index := map[string]*lane{}
	var order []*lane
	for _, r := range records {
		if !r.Resolved {
			continue
		}
		id := r.Lane()
		l, ok := index[id]
		if !ok {
			l = &lane{row: RouteScore{ID: id, Origin: r.Order.Origin, Destination: r.Order.Destination}}
			index[id] = l
			order = append(order, l)
		}
		l.row.Orders++
		l.cost.add(r.CostPerKm)
		l.delay.add(r.DelayDays)
		l.emission.add(r.EmissionKg)
	}
	out := make([]RouteScore, 0, len(order))
	for _, l := range order {
		row := l.row
		row.CostPerKm, row.Delay, row.Emission = l.cost.value(), l.delay.value(), l.emission.value()
		out = append(out, row)
	}
	return out
}

// BestAndWorst returns the n best rows and the n worst rows, worst first.
// scores must already be ranked.
func BestAndWorst(scores []RouteScore, n int) (best, worst []RouteScore) {
	if n <= 0 || len(scores) == 0 {
		return []RouteScore{}, []RouteScore{}
	}
	if n > len(scores) {
		n = len(scores)
	}
	best = append([]RouteScore(nil), scores[:n]...)
	worst = make([]RouteScore, 0, n)
	for i := len(scores) - 1; i >= len(scores)-n; i-- {
		worst = append(worst, scores[i])
	}
	return best, worst
}
