package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"controltower/internal/model"
	"controltower/internal/opt"
)

func readAll(t *testing.T, s string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestRoutesCSV(t *testing.T) {
	cpk := 3.5
	var buf bytes.Buffer
	err := Routes(&buf, []opt.RouteScore{{ID: "O1", Origin: "A", Destination: "B", Orders: 1, CostPerKm: &cpk, ScaledCost: 0, ScaledDelay: 0.5, Score: 0.25, Rank: 1}})
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	rows := readAll(t, buf.String())
	if len(rows) != 2 || rows[1][0] != "1" || rows[1][6] != "3.5" || rows[1][7] != "" || rows[1][12] != "0.25" {
		t.Fatalf("rows: %v", rows)
	}
}

func TestReordersWriteInfiniteCover(t *testing.T) {
	cover := 2.5
	plan := opt.Plan{
		Items: []opt.StockItem{
			{Warehouse: "W1", Category: "Books", Stock: 5, Cover: &cover},
			{Warehouse: "W2", Category: "Toys"},
		},
		Reorders: []opt.Reorder{
			{Warehouse: "W1", Category: "Books", Quantity: 55, HasInventory: true},
			{Warehouse: "W2", Category: "Toys", Quantity: 5},
		},
	}
	var buf bytes.Buffer
	if err := Reorders(&buf, plan); err != nil {
		t.Fatalf("Reorders: %v", err)
	}
	rows := readAll(t, buf.String())
	if rows[1][5] != "2.5" || rows[1][6] != "55" || rows[2][5] != "inf" || rows[2][8] != "false" {
		t.Fatalf("rows: %v", rows)
	}
}

func TestWriteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	plan := opt.Plan{Transfers: []opt.Transfer{{From: "W2", To: "W1", Category: "Books", Quantity: 45}}}
	records := []model.Enriched{{MasterRecord: model.MasterRecord{Order: model.Order{ID: "O1", Quantity: 1}}}}
	if err := WriteDir(dir, nil, plan, records); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	for _, name := range []string{RoutesFile, TransfersFile, ReordersFile, MasterFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, TransfersFile))
	if err != nil {
		t.Fatal(err)
	}
	rows := readAll(t, string(data))
	if len(rows) != 2 || rows[1][0] != "W2" || rows[1][3] != "45" {
		t.Fatalf("transfers: %v", rows)
	}
	data, _ = os.ReadFile(filepath.Join(dir, MasterFile))
	master := readAll(t, string(data))
	if master[1][0] != "O1" || master[1][12] != "false" || master[1][13] != "" {
		t.Fatalf("master: %v", master)
	}
}
