package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"controltower/internal/cache"
	"controltower/internal/config"
	"controltower/internal/logger"
)

// writeDataset lays down a small extract: 50 recent W1/Books orders, 10
// W2/Books orders, and two fully joined orders on the W1->B lane.
func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	anchor := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	var orders strings.Builder
	orders.WriteString("Order_ID,Order_Date,Origin,Destination,Product_Category,Priority,Customer_Segment,Order_Value_INR\n")
	for i := 1; i <= 60; i++ {
		wh, prio := "W1", "Express"
		if i > 50 {
			wh = "W2"
		}
		if i%2 == 0 {
			prio = "Standard"
		}
		d := anchor.AddDate(0, 0, -(i % 29))
		fmt.Fprintf(&orders, "O%d,%s,%s,B,Books,%s,SMB,100\n", i, d.Format("2006-01-02"), wh, prio)
	}
	files := map[string]string{
		"orders.csv": orders.String(),
		"delivery_performance.csv": "Order_ID,Carrier,Promised_Delivery_Date,Actual_Delivery_Date,Delivery_Cost_INR\n" +
			"O1,FastShip,2024-03-30,2024-04-01,500\n" +
			"O2,FastShip,2024-03-29,2024-03-28,300\n",
		"routes_distance.csv":     "Order_ID,Route,Distance_KM\nO1,W1-B,100\nO2,W1-B,100\n",
		"cost_breakdown.csv":      "Order_ID,Fuel_Cost\nO1,0\nO2,0\n",
		"warehouse_inventory.csv": "Warehouse,Product_Category,Stock_Level,Reorder_Level\nW1,Books,5,10\nW2,Books,200,20\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.Source.Dir = writeDataset(t)
	s, err := NewServer(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if _, err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return s, s.Router()
}

func get(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode: %v", path, err)
		}
	}
	return rr
}

func TestHealthReady(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Dir = t.TempDir()
	s, err := NewServer(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	h := s.Router()
	if rr := get(t, h, "/healthz", nil); rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := get(t, h, "/readyz", nil); rr.Code != 503 {
		t.Fatalf("ready before load: got %d", rr.Code)
	}
	if rr := get(t, h, "/v1/kpis", nil); rr.Code != 503 {
		t.Fatalf("kpis before load: got %d", rr.Code)
	}
	if _, err := s.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if rr := get(t, h, "/readyz", nil); rr.Code != 200 {
		t.Fatalf("ready after load: got %d", rr.Code)
	}
}

func TestDatasetReportsNotices(t *testing.T) {
	_, h := newTestServer(t)
	var body struct {
		RowCounts map[string]int `json:"rowCounts"`
		Notices   []struct {
			Table string `json:"table"`
			Kind  string `json:"kind"`
		} `json:"notices"`
		Options struct {
			Origins []string `json:"origins"`
		} `json:"options"`
	}
	if rr := get(t, h, "/v1/dataset", &body); rr.Code != 200 {
		t.Fatalf("dataset: %d %s", rr.Code, rr.Body.String())
	}
	if body.RowCounts["orders"] != 60 || len(body.Notices) != 2 {
		t.Fatalf("dataset: %+v", body)
	}
	if len(body.Options.Origins) != 2 {
		t.Fatalf("options: %+v", body.Options)
	}
}

func TestRouteScores(t *testing.T) {
	_, h := newTestServer(t)
	var body struct {
		Items []struct {
			ID   string `json:"id"`
			Rank int    `json:"rank"`
		} `json:"items"`
		Dropped int `json:"dropped"`
	}
	rr := get(t, h, "/v1/routes/scores?wCost=1&wDelay=1&wEmission=0", &body)
	if rr.Code != 200 {
		t.Fatalf("scores: %d %s", rr.Code, rr.Body.String())
	}
	if len(body.Items) != 2 || body.Items[0].ID != "O2" || body.Items[0].Rank != 1 {
		t.Fatalf("ranking: %+v", body.Items)
	}
	if body.Dropped != 58 {
		t.Fatalf("dropped: %d", body.Dropped)
	}

	var lanes struct {
		Items []struct {
			ID     string `json:"id"`
			Orders int    `json:"orders"`
		} `json:"items"`
	}
	get(t, h, "/v1/routes/scores?granularity=lane", &lanes)
	if len(lanes.Items) != 1 || lanes.Items[0].Orders != 2 {
		t.Fatalf("lanes: %+v", lanes.Items)
	}
}

func TestInvalidParametersAreProblems(t *testing.T) {
	_, h := newTestServer(t)
	for _, path := range []string{
		"/v1/routes/scores?wCost=0&wDelay=0&wEmission=0",
		"/v1/routes/scores?wCost=-1",
		"/v1/routes/scores?objective=speed",
		"/v1/kpis?from=2024-13-01",
		"/v1/kpis?from=2024-03-10&to=2024-03-01",
		"/v1/warehouses/plan?lookbackDays=0",
		"/v1/warehouses/plan?lookbackDays=3651",
		"/v1/warehouses/plan?understockDays=NaN",
		"/v1/warehouses/plan?understockDays=Inf",
		"/v1/warehouses/health?understockDays=0",
		"/v1/warehouses/health?understockDays=3651",
		"/v1/routes/scores?wDelay=NaN",
		"/v1/routes/scores?granularity=hub",
		"/v1/costs?groupBy=color",
	} {
		rr := get(t, h, path, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: got %d", path, rr.Code)
		}
		var p Problem
		if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil || p.Status != 400 || p.Detail == "" {
			t.Fatalf("%s: problem body %s", path, rr.Body.String())
		}
	}
}

func TestWarehousePlan(t *testing.T) {
	_, h := newTestServer(t)
	var body struct {
		Plan struct {
			Transfers []struct {
				From     string  `json:"from"`
				To       string  `json:"to"`
				Quantity float64 `json:"quantity"`
			} `json:"transfers"`
			Reorders []any `json:"reorders"`
		} `json:"plan"`
	}
	if rr := get(t, h, "/v1/warehouses/plan", &body); rr.Code != 200 {
		t.Fatalf("plan: %d %s", rr.Code, rr.Body.String())
	}
	tr := body.Plan.Transfers
	if len(tr) != 1 || tr[0].From != "W2" || tr[0].To != "W1" || tr[0].Quantity != 45 {
		t.Fatalf("transfers: %+v", tr)
	}
	if len(body.Plan.Reorders) != 0 {
		t.Fatalf("reorders: %+v", body.Plan.Reorders)
	}

	var health struct {
		StatusCounts map[string]int `json:"statusCounts"`
	}
	get(t, h, "/v1/warehouses/health?category=Toys", &health)
	if len(health.StatusCounts) != 0 {
		t.Fatalf("category filter should empty inventory: %+v", health)
	}
}

func TestOrdersPaging(t *testing.T) {
	_, h := newTestServer(t)
	var body struct {
		Items      []map[string]any `json:"items"`
		NextCursor string           `json:"nextCursor"`
		Total      int              `json:"total"`
	}
	get(t, h, "/v1/orders?priority=Express&limit=20", &body)
	if body.Total != 30 || len(body.Items) != 20 || body.NextCursor != "20" {
		t.Fatalf("page 1: total=%d items=%d next=%q", body.Total, len(body.Items), body.NextCursor)
	}
	body.Items = nil
	get(t, h, "/v1/orders?priority=Express&limit=20&cursor=20", &body)
	if len(body.Items) != 10 || body.NextCursor != "" {
		t.Fatalf("page 2: items=%d next=%q", len(body.Items), body.NextCursor)
	}
}

func TestResultsAreCached(t *testing.T) {
	s, h := newTestServer(t)
	first := get(t, h, "/v1/kpis?priority=Express,Standard", nil)
	second := get(t, h, "/v1/kpis?priority=Standard&priority=Express", nil)
	if first.Code != 200 || !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatalf("cached response differs")
	}
	if n := s.Cache.(*cache.Memory).Len(); n != 1 {
		t.Fatalf("equivalent filters should share one entry, got %d", n)
	}
}

func TestExportCSV(t *testing.T) {
	_, h := newTestServer(t)
	rr := get(t, h, "/v1/export/transfers.csv", nil)
	if rr.Code != 200 || !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "transfer_plan.csv") {
		t.Fatalf("disposition: %s", rr.Header().Get("Content-Disposition"))
	}
	rows, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil || len(rows) != 2 || rows[1][0] != "W2" {
		t.Fatalf("rows: %v %v", rows, err)
	}
	if rr := get(t, h, "/v1/export/master.csv", nil); rr.Code != 200 {
		t.Fatalf("master export: %d", rr.Code)
	}
	if rr := get(t, h, "/v1/export/secrets.csv", nil); rr.Code != 404 {
		t.Fatalf("unknown export: %d", rr.Code)
	}
}

func TestReloadPublishesOverWebSocket(t *testing.T) {
	_, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/events/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		t.Fatal(err)
	}
	var ack wsMessage
	if err := conn.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		t.Fatalf("ack: %+v %v", ack, err)
	}

	resp, err := http.Post(srv.URL+"/v1/dataset/reload", "application/json", nil)
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("reload: %v %v", resp, err)
	}
	resp.Body.Close()

	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "next" {
		t.Fatalf("event: %+v %v", msg, err)
	}
	var evt Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil || evt.Type != "dataset.reloaded" {
		t.Fatalf("payload: %s", msg.Payload)
	}
}

func TestMetricsAndDebug(t *testing.T) {
	_, h := newTestServer(t)
	get(t, h, "/v1/routes/scores", nil)
	rr := get(t, h, "/metrics", nil)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "emission_tier_total") {
		t.Fatalf("metrics missing emission tiers")
	}
	var dbg struct {
		Runs map[string]any `json:"runs"`
	}
	get(t, h, "/v1/admin/debug", &dbg)
	if _, ok := dbg.Runs["scores"]; !ok {
		t.Fatalf("debug runs: %+v", dbg.Runs)
	}
	if rr := get(t, h, "/", nil); rr.Code != 200 || !strings.Contains(rr.Body.String(), "Control Tower") {
		t.Fatalf("dashboard: %d", rr.Code)
	}
}
