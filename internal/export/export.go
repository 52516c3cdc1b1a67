// Package export writes ranked routes, rebalancing plans and the master view
// as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"controltower/internal/model"
	"controltower/internal/opt"
)

// File names used by WriteDir and the download endpoints.
const (
	RoutesFile    = "route_scores.csv"
	TransfersFile = "transfer_plan.csv"
	ReordersFile  = "reorder_plan.csv"
	MasterFile    = "master_orders.csv"
)

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}

func optDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func optBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func Routes(w io.Writer, scores []opt.RouteScore) error {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			strconv.Itoa(s.Rank), s.ID, s.Origin, s.Destination, s.Carrier, strconv.Itoa(s.Orders),
			optNum(s.CostPerKm), optNum(s.Delay), optNum(s.Emission),
			num(s.ScaledCost), num(s.ScaledDelay), num(s.ScaledEmission), num(s.Score),
		})
	}
	return write(w, []string{"rank", "id", "origin", "destination", "carrier", "orders",
		"cost_per_km", "delay_days", "emission_kg", "scaled_cost", "scaled_delay", "scaled_emission", "score"}, rows)
}

func Transfers(w io.Writer, transfers []opt.Transfer) error {
	rows := make([][]string, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, []string{t.From, t.To, t.Category, num(t.Quantity)})
	}
	return write(w, []string{"source_warehouse", "destination_warehouse", "product_category", "quantity"}, rows)
}

// Reorders writes the reorder list with the matching stock item columns.
// An undefined cover is written as "inf".
func Reorders(w io.Writer, plan opt.Plan) error {
	items := make(map[[2]string]opt.StockItem, len(plan.Items))
	for _, it := range plan.Items {
		items[[2]string{it.Warehouse, it.Category}] = it
	}
	rows := make([][]string, 0, len(plan.Reorders))
	for _, r := range plan.Reorders {
		it := items[[2]string{r.Warehouse, r.Category}]
		cover := "inf"
		if it.Cover != nil {
			cover = num(*it.Cover)
		}
		rows = append(rows, []string{r.Warehouse, r.Category, num(it.Stock), num(it.ReorderLevel), num(it.Demand),
			cover, num(r.Quantity), num(r.Uncovered), strconv.FormatBool(r.HasInventory)})
	}
	return write(w, []string{"warehouse", "product_category", "stock", "reorder_level", "recent_demand",
		"stock_cover_days", "suggested_quantity", "uncovered_deficit", "has_inventory"}, rows)
}

func Master(w io.Writer, records []model.Enriched) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		o := r.Order
		var carrier, cost string
		var promised, actual *time.Time
		if d := r.Delivery; d != nil {
			carrier, promised, actual = d.Carrier, d.PromisedDate, d.ActualDate
		}
		if r.Resolved {
			cost = r.TotalDeliveryCost().StringFixed(2)
		}
		rows = append(rows, []string{
			o.ID, optDate(o.OrderDate), o.Origin, o.Destination, o.ProductCategory, o.Priority, o.CustomerSegment,
			num(o.Quantity), o.Revenue.StringFixed(2), carrier, optDate(promised), optDate(actual),
			strconv.FormatBool(r.Resolved), cost, optNum(r.DistanceKm), optNum(r.DelayDays), optNum(r.CostPerKm),
			optNum(r.EmissionKg), string(r.EmissionTier), optBool(r.OnTime),
		})
	}
	return write(w, []string{"order_id", "order_date", "origin", "destination", "product_category", "priority",
		"customer_segment", "quantity", "order_value", "carrier", "promised_date", "actual_date", "resolved",
		"total_cost", "distance_km", "delay_days", "cost_per_km", "emission_kg", "emission_tier", "on_time"}, rows)
}

// WriteDir writes all four files into dir, creating it if needed.
func WriteDir(dir string, scores []opt.RouteScore, plan opt.Plan, records []model.Enriched) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	files := []struct {
		name string
		fn   func(io.Writer) error
	}{
		{RoutesFile, func(w io.Writer) error { return Routes(w, scores) }},
		{TransfersFile, func(w io.Writer) error { return Transfers(w, plan.Transfers) }},
		{ReordersFile, func(w io.Writer) error { return Reorders(w, plan) }},
		{MasterFile, func(w io.Writer) error { return Master(w, records) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.fn); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
