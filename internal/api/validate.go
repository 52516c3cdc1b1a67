package api

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"controltower/internal/analytics"
	"controltower/internal/model"
	"controltower/internal/opt"
)

// params is the parsed query string shared by every recomputation endpoint.
type params struct {
	filter      analytics.Filter
	weights     opt.Weights
	objective   string
	granularity opt.Granularity
	top         int
	heur        model.Heuristics
}

// key canonicalises everything that can change a computed result.
func (p params) key() string {
	return fmt.Sprintf("%s;w=%g,%g,%g;g=%s;top=%d;lb=%d;us=%g;basis=%s",
		p.filter.Key(), p.weights.Cost, p.weights.Delay, p.weights.Emission,
		p.granularity, p.top, p.heur.LookbackDays, p.heur.UnderstockDays, p.heur.DemandBasis)
}

func listParam(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func dateParam(q url.Values, name string) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return &t, nil
}

func floatParam(q url.Values, name string, dst *float64) error {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%s must be a finite number", name)
	}
	*dst = f
	return nil
}

// positiveParam is floatParam restricted to (0, max].
func positiveParam(q url.Values, name string, dst *float64, max float64) error {
	v := *dst
	if err := floatParam(q, name, &v); err != nil {
		return err
	}
	if !(v > 0 && v <= max) {
		return fmt.Errorf("%s must be a number in (0,%g]", name, max)
	}
	*dst = v
	return nil
}

func intParam(q url.Values, name string, dst *int, min, max int) error {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return fmt.Errorf("%s must be an integer in [%d,%d]", name, min, max)
	}
	*dst = n
	return nil
}

func (s *Server) parseParams(r *http.Request) (params, error) {
	q := r.URL.Query()
	p := params{
		heur: s.Cfg.Heuristics,
		top:  10,
	}
	var err error
	if p.filter.From, err = dateParam(q, "from"); err != nil {
		return p, err
	}
	if p.filter.To, err = dateParam(q, "to"); err != nil {
		return p, err
	}
	if p.filter.From != nil && p.filter.To != nil && p.filter.To.Before(*p.filter.From) {
		return p, fmt.Errorf("to must not be before from")
	}
	p.filter.Priorities = listParam(q, "priority")
	p.filter.Categories = listParam(q, "category")
	p.filter.Origins = listParam(q, "origin")
	p.filter.Destinations = listParam(q, "destination")
	p.filter.Segments = listParam(q, "segment")

	p.weights = opt.WeightsFrom(p.heur.DefaultWeights)
	if name := strings.ToLower(strings.TrimSpace(q.Get("objective"))); name != "" {
		preset, ok := p.heur.Objectives[name]
		if !ok {
			return p, fmt.Errorf("unknown objective %q", name)
		}
		p.objective = name
		p.weights = opt.WeightsFrom(preset)
	}
	for name, dst := range map[string]*float64{"wCost": &p.weights.Cost, "wDelay": &p.weights.Delay, "wEmission": &p.weights.Emission} {
		if err := floatParam(q, name, dst); err != nil {
			return p, err
		}
	}
	if _, err := p.weights.Normalize(); err != nil {
		return p, err
	}
	if p.granularity, err = opt.ParseGranularity(q.Get("granularity")); err != nil {
		return p, err
	}
	if err := intParam(q, "top", &p.top, 1, 1000); err != nil {
		return p, err
	}
	if err := intParam(q, "lookbackDays", &p.heur.LookbackDays, 1, 3650); err != nil {
		return p, err
	}
	if err := positiveParam(q, "understockDays", &p.heur.UnderstockDays, 3650); err != nil {
		return p, err
	}
	if v := q.Get("demandBasis"); v != "" {
		if v != model.DemandByOrders && v != model.DemandByQuantity {
			return p, fmt.Errorf("demandBasis must be %q or %q", model.DemandByOrders, model.DemandByQuantity)
		}
		p.heur.DemandBasis = v
	}
	return p, nil
}
