package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"controltower/internal/model"
)

// Table names. CSV sources append ".csv"; Postgres sources use them as-is.
const (
	TableOrders     = "orders"
	TableDeliveries = "delivery_performance"
	TableRoutes     = "routes_distance"
	TableFleet      = "vehicle_fleet"
	TableInventory  = "warehouse_inventory"
	TableFeedback   = "customer_feedback"
	TableCosts      = "cost_breakdown"
)

// AllTables lists the seven extracts in load order.
var AllTables = []string{TableOrders, TableDeliveries, TableRoutes, TableFleet, TableInventory, TableFeedback, TableCosts}

var (
	// ErrTableMissing is returned by a Source when a table does not exist.
	ErrTableMissing = errors.New("table missing")
	// ErrUnknownSource is returned for an unsupported source kind.
	ErrUnknownSource = errors.New("unknown source")
)

// Source fetches a raw table as a header row plus data rows.
type Source interface {
	Name() string
	Fetch(ctx context.Context, table string) (header []string, rows [][]string, err error)
}

// Notice kinds.
const (
	NoticeMissing   = "missing"
	NoticeReadError = "read_error"
	NoticeDuplicate = "duplicate"
)

// Notice is a non-fatal ingestion problem surfaced to the caller.
type Notice struct {
	Table   string `json:"table"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Tables struct {
	Orders     []model.Order
	Deliveries []model.Delivery
	Routes     []model.RouteRecord
	Fleet      []model.Vehicle
	Inventory  []model.InventorySnapshot
	Feedback   []model.Feedback
	Costs      []model.CostRecord
}

// Snapshot is an immutable, fully parsed and joined dataset.
type Snapshot struct {
	ID            string
	Source        string
	LoadedAt      time.Time
	Tables        Tables
	Master        []model.MasterRecord
	Notices       []Notice
	ParseWarnings map[string]int
}

func (s *Snapshot) RowCounts() map[string]int {
	t := s.Tables
	return map[string]int{
		TableOrders:     len(t.Orders),
		TableDeliveries: len(t.Deliveries),
		TableRoutes:     len(t.Routes),
		TableFleet:      len(t.Fleet),
		TableInventory:  len(t.Inventory),
		TableFeedback:   len(t.Feedback),
		TableCosts:      len(t.Costs),
	}
}

// Load fetches and parses every table. Missing or unreadable tables degrade to
// empty tables with a notice; only context cancellation is returned as an error.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	snap := &Snapshot{
		ID:            uuid.New().String(),
		Source:        src.Name(),
		LoadedAt:      time.Now().UTC(),
		ParseWarnings: map[string]int{},
	}
	for _, table := range AllTables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, rows, err := src.Fetch(ctx, table)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			kind := NoticeReadError
			if errors.Is(err, ErrTableMissing) {
				kind = NoticeMissing
			}
			snap.Notices = append(snap.Notices, Notice{Table: table, Kind: kind, Message: err.Error()})
			continue
		}
		p := newParser(table, header)
		switch table {
		case TableOrders:
			snap.Tables.Orders = p.orders(rows, &snap.Notices)
		case TableDeliveries:
			snap.Tables.Deliveries = p.deliveries(rows)
		case TableRoutes:
			snap.Tables.Routes = p.routes(rows)
		case TableFleet:
			snap.Tables.Fleet = p.fleet(rows)
		case TableInventory:
			snap.Tables.Inventory = p.inventory(rows, &snap.Notices)
		case TableFeedback:
			snap.Tables.Feedback = p.feedback(rows)
		case TableCosts:
			snap.Tables.Costs = p.costs(rows)
		}
		if p.warnings > 0 {
			snap.ParseWarnings[table] = p.warnings
		}
	}
	snap.Master = BuildMaster(snap.Tables)
	return snap, nil
}

// NewSource builds a Source for kind "csv" (dir) or "postgres" (dsn).
func NewSource(kind, dir, dsn string) (Source, error) {
	switch kind {
	case "", "csv":
		return NewCSVSource(dir), nil
	case "postgres":
		return NewPostgresSource(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, kind)
	}
}
