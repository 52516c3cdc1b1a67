package store

import "controltower/internal/model"

// BuildMaster left-joins deliveries, routes and costs onto orders by order id.
// The first row per order id wins on each side; order is preserved.
func BuildMaster(t Tables) []model.MasterRecord {
	if len(t.Orders) == 0 {
		return nil
	}
	deliveries := make(map[string]*model.Delivery, len(t.Deliveries))
	for i := range t.Deliveries {
		d := &t.Deliveries[i]
		if _, ok := deliveries[d.OrderID]; !ok {
			deliveries[d.OrderID] = d
		}
	}
	routes := make(map[string]*model.RouteRecord, len(t.Routes))
	for i := range t.Routes {
		r := &t.Routes[i]
		if _, ok := routes[r.OrderID]; !ok {
			routes[r.OrderID] = r
		}
	}
	costs := make(map[string]*model.CostRecord, len(t.Costs))
	for i := range t.Costs {
		c := &t.Costs[i]
		if _, ok := costs[c.OrderID]; !ok {
			costs[c.OrderID] = c
		}
	}
	out := make([]model.MasterRecord, 0, len(t.Orders))
	for _, o := range t.Orders {
		out = append(out, model.MasterRecord{
			Order:    o,
			Delivery: deliveries[o.ID],
			Route:    routes[o.ID],
			Cost:     costs[o.ID],
		})
	}
	return out
}
