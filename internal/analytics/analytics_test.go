package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"controltower/internal/model"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func order(id, d, origin, dest, priority, category string) model.Order {
	o := model.Order{ID: id, Origin: origin, Destination: dest, Priority: priority, ProductCategory: category, CustomerSegment: "SMB"}
	if d != "" {
		o.OrderDate = date(d)
	}
	return o
}

func TestFilterMatch(t *testing.T) {
	orders := []model.Order{
		order("1", "2024-01-01", "A", "B", "Express", "Books"),
		order("2", "2024-01-15", "A", "C", "Standard", "Toys"),
		order("3", "", "B", "C", "Express", "Books"),
		order("4", "2024-01-31", "C", "A", "Express", "Books"),
	}
	cases := []struct {
		name string
		f    Filter
		want []string
	}{
		{"empty", Filter{}, []string{"1", "2", "3", "4"}},
		{"inclusive dates", Filter{From: date("2024-01-01"), To: date("2024-01-15")}, []string{"1", "2"}},
		{"to only", Filter{To: date("2024-01-31")}, []string{"1", "2", "4"}},
		{"priority", Filter{Priorities: []string{"Express"}}, []string{"1", "3", "4"}},
		{"origin and category", Filter{Origins: []string{"A", "B"}, Categories: []string{"Books"}}, []string{"1", "3"}},
		{"destination", Filter{Destinations: []string{"A"}}, []string{"4"}},
		{"segment", Filter{Segments: []string{"Enterprise"}}, nil},
	}
	for _, tc := range cases {
		var got []string
		for _, o := range tc.f.Orders(orders) {
			got = append(got, o.ID)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestFilterKeyIsCanonical(t *testing.T) {
	a := Filter{Priorities: []string{"b", "a"}, From: date("2024-01-01")}
	b := Filter{Priorities: []string{"a", "b"}, From: date("2024-01-01")}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == (Filter{}).Key() {
		t.Fatalf("distinct filters share a key")
	}
}

func TestFilterOptionsAndInventory(t *testing.T) {
	opts := FilterOptions([]model.Order{
		order("1", "2024-02-01", "B", "X", "Express", "Books"),
		order("2", "2024-01-01", "A", "X", "", "Toys"),
	})
	if len(opts.Origins) != 2 || opts.Origins[0] != "A" || len(opts.Priorities) != 1 {
		t.Fatalf("options: %+v", opts)
	}
	if !opts.MinDate.Equal(*date("2024-01-01")) || !opts.MaxDate.Equal(*date("2024-02-01")) {
		t.Fatalf("bounds: %v %v", opts.MinDate, opts.MaxDate)
	}
	inv := Filter{Categories: []string{"Toys"}, Origins: []string{"nowhere"}}.Inventory([]model.InventorySnapshot{
		{Warehouse: "W1", ProductCategory: "Toys"}, {Warehouse: "W1", ProductCategory: "Books"},
	})
	if len(inv) != 1 || inv[0].ProductCategory != "Toys" {
		t.Fatalf("inventory filter: %+v", inv)
	}
}

func enriched(o model.Order, carrier string, cost, delay, em *float64, onTime *bool) model.Enriched {
	return model.Enriched{
		MasterRecord: model.MasterRecord{Order: o, Delivery: &model.Delivery{OrderID: o.ID, Carrier: carrier}},
		Resolved:     cost != nil,
		TotalCost:    cost,
		DelayDays:    delay,
		EmissionKg:   em,
		OnTime:       onTime,
	}
}

func sample() []model.Enriched {
	o1 := order("1", "2024-01-01", "A", "B", "Express", "Books")
	o1.Revenue = decimal.RequireFromString("100.25")
	o2 := order("2", "2024-01-02", "A", "B", "Standard", "Books")
	o2.Revenue = decimal.RequireFromString("50")
	o3 := order("3", "2024-01-03", "C", "D", "Express", "Toys")
	return []model.Enriched{
		enriched(o1, "Fast", fp(300), fp(2), fp(10), bp(false)),
		enriched(o2, "Fast", fp(100), fp(0), fp(20), bp(true)),
		enriched(o3, "Slow", nil, nil, nil, nil),
	}
}

func TestOverallKPIs(t *testing.T) {
	k := Overall(sample())
	if k.TotalOrders != 3 || k.Dropped != 1 || k.TotalRevenue.String() != "150.25" {
		t.Fatalf("kpis: %+v", k)
	}
	if *k.OnTimeRate != 0.5 || *k.AvgDelayDays != 1 || *k.AvgCostPerOrder != 200 || k.TotalEmissionKg != 30 {
		t.Fatalf("kpis: onTime=%v delay=%v cost=%v em=%v", *k.OnTimeRate, *k.AvgDelayDays, *k.AvgCostPerOrder, k.TotalEmissionKg)
	}
	empty := Overall(nil)
	if empty.TotalOrders != 0 || empty.OnTimeRate != nil || empty.AvgDelayDays != nil {
		t.Fatalf("empty kpis: %+v", empty)
	}
}

func TestOnTimeByGroup(t *testing.T) {
	key, err := GroupKey(GroupCarrier)
	if err != nil {
		t.Fatal(err)
	}
	rows := OnTimeBy(sample(), key)
	if len(rows) != 2 || rows[0].Group != "Fast" || rows[0].Orders != 2 || *rows[0].OnTimeRate != 0.5 {
		t.Fatalf("rows: %+v", rows)
	}
	if rows[1].OnTimeRate != nil {
		t.Fatalf("no deliveries with delay should leave rate nil")
	}
	if _, err := GroupKey("color"); !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("want ErrUnknownGroup, got %v", err)
	}
}

func TestLanesAndCosts(t *testing.T) {
	lanes := Lanes(sample())
	if len(lanes) != 2 || lanes[0].Orders != 2 || *lanes[0].AvgCost != 200 || *lanes[0].AvgEmissionKg != 15 {
		t.Fatalf("lanes: %+v", lanes)
	}
	high := HighCostLanes(sample(), 10)
	if len(high) != 1 || high[0].AvgCost != 200 {
		t.Fatalf("high cost lanes: %+v", high)
	}
	em := EmissionsByOrigin(sample())
	if len(em) != 1 || em[0].TotalKg != 30 || *em[0].AvgKgPerOrder != 15 {
		t.Fatalf("emissions: %+v", em)
	}

	recs := sample()
	recs[0].Cost = &model.CostRecord{Components: map[model.CostComponent]decimal.Decimal{model.CostFuel: decimal.NewFromInt(10)}}
	recs[1].Cost = &model.CostRecord{Components: map[model.CostComponent]decimal.Decimal{model.CostFuel: decimal.NewFromInt(5), model.CostLabor: decimal.NewFromInt(1)}}
	key, _ := GroupKey(GroupPriority)
	rows := CostBreakdown(recs, key)
	if len(rows) != 2 || rows[0].Group != "Express" || rows[0].Total.String() != "10" || rows[1].Total.String() != "6" {
		t.Fatalf("breakdown: %+v", rows)
	}
}

func TestFeedbackInsights(t *testing.T) {
	rows := []model.Feedback{
		{ID: "f1", OrderID: "1", Date: date("2024-01-01"), Rating: fp(2), Text: "Package arrived late, very late!", IssueCategory: "Delay"},
		{ID: "f2", OrderID: "2", Date: date("2024-01-03"), Rating: fp(4), Text: "Quick and fine", IssueCategory: "None"},
		{ID: "f3", OrderID: "9", Date: date("2024-01-10"), Rating: fp(5), Text: "great"},
	}
	fb := Feedback(rows, sample(), 20)
	if fb.Responses != 2 {
		t.Fatalf("feedback outside active set must be skipped: %d", fb.Responses)
	}
	if len(fb.Weekly) != 1 || fb.Weekly[0].AvgRating != 3 || fb.Weekly[0].WeekStart.Weekday() != time.Monday {
		t.Fatalf("weekly: %+v", fb.Weekly)
	}
	if fb.ByIssue[0].Issue != "Delay" || *fb.ByIssue[0].AvgRating != 2 {
		t.Fatalf("by issue: %+v", fb.ByIssue)
	}
	if fb.TopWords[0].Word != "late" || fb.TopWords[0].Count != 2 {
		t.Fatalf("top words: %+v", fb.TopWords)
	}
	for _, w := range fb.TopWords {
		if len(w.Word) <= 3 {
			t.Fatalf("short word kept: %q", w.Word)
		}
	}
	if len(fb.RatingDelay) != 2 || fb.RatingDelay[0].DelayDays != 2 {
		t.Fatalf("rating vs delay: %+v", fb.RatingDelay)
	}
	if all := Feedback(rows, nil, 0); all.Responses != 3 {
		t.Fatalf("nil active set keeps everything: %d", all.Responses)
	}
}
