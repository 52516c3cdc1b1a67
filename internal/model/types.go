package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Core tabular records. Nullable columns are pointers; a nil value means the
// cell was absent or failed to parse at ingestion.

type Order struct {
	ID              string          `json:"orderId"`
	OrderDate       *time.Time      `json:"orderDate,omitempty"`
	Origin          string          `json:"origin"`
	Destination     string          `json:"destination"`
	ProductCategory string          `json:"productCategory"`
	Priority        string          `json:"priority"`
	CustomerSegment string          `json:"customerSegment"`
	Quantity        float64         `json:"quantity"`
	Revenue         decimal.Decimal `json:"revenue"`
	SpecialHandling string          `json:"specialHandling,omitempty"`
}

type Delivery struct {
	OrderID        string          `json:"orderId"`
	Carrier        string          `json:"carrier"`
	VehicleID      string          `json:"vehicleId,omitempty"`
	PromisedDate   *time.Time      `json:"promisedDate,omitempty"`
	ActualDate     *time.Time      `json:"actualDate,omitempty"`
	PromisedDays   *float64        `json:"promisedDays,omitempty"`
	ActualDays     *float64        `json:"actualDays,omitempty"`
	Status         string          `json:"status,omitempty"`
	DeliveryCost   decimal.Decimal `json:"deliveryCost"`
	CustomerRating *float64        `json:"customerRating,omitempty"`
}

type RouteRecord struct {
	OrderID        string   `json:"orderId"`
	Route          string   `json:"route,omitempty"`
	DistanceKm     *float64 `json:"distanceKm,omitempty"`
	FuelConsumedL  *float64 `json:"fuelConsumedL,omitempty"`
	TollCharges    *float64 `json:"tollCharges,omitempty"`
	TrafficDelayMn *float64 `json:"trafficDelayMinutes,omitempty"`
}

type Vehicle struct {
	ID             string   `json:"vehicleId"`
	Type           string   `json:"type,omitempty"`
	CO2PerKm       *float64 `json:"co2KgPerKm,omitempty"`
	FuelEfficiency *float64 `json:"fuelEfficiencyKmPerL,omitempty"`
	Status         string   `json:"status,omitempty"`
	Location       string   `json:"location,omitempty"`
}

// CostComponent names a column of the cost breakdown table.
type CostComponent string

const (
	CostFuel        CostComponent = "fuel"
	CostLabor       CostComponent = "labor"
	CostMaintenance CostComponent = "maintenance"
	CostInsurance   CostComponent = "insurance"
	CostPackaging   CostComponent = "packaging"
	CostTechnology  CostComponent = "technology"
	CostOverhead    CostComponent = "overhead"
	CostToll        CostComponent = "toll"
)

// CostComponents lists every component in export order.
var CostComponents = []CostComponent{CostFuel, CostLabor, CostMaintenance, CostInsurance, CostPackaging, CostTechnology, CostOverhead, CostToll}

type CostRecord struct {
	OrderID    string                            `json:"orderId"`
	Components map[CostComponent]decimal.Decimal `json:"components"`
}

// Total sums every component present on the record.
func (c CostRecord) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c.Components {
		total = total.Add(v)
	}
	return total
}

type InventorySnapshot struct {
	Warehouse       string     `json:"warehouse"`
	ProductCategory string     `json:"productCategory"`
	Stock           float64    `json:"stock"`
	ReorderLevel    float64    `json:"reorderLevel"`
	StorageCost     *float64   `json:"storageCostPerUnit,omitempty"`
	LastRestocked   *time.Time `json:"lastRestocked,omitempty"`
}

type Feedback struct {
	ID             string     `json:"feedbackId"`
	OrderID        string     `json:"orderId"`
	Date           *time.Time `json:"date,omitempty"`
	Rating         *float64   `json:"rating,omitempty"`
	Text           string     `json:"text,omitempty"`
	IssueCategory  string     `json:"issueCategory,omitempty"`
	WouldRecommend string     `json:"wouldRecommend,omitempty"`
}

// MasterRecord is an order left-joined with its delivery, route and cost rows.
type MasterRecord struct {
	Order    Order        `json:"order"`
	Delivery *Delivery    `json:"delivery,omitempty"`
	Route    *RouteRecord `json:"route,omitempty"`
	Cost     *CostRecord  `json:"cost,omitempty"`
}

// TotalDeliveryCost is the delivery charge plus every cost component.
func (m MasterRecord) TotalDeliveryCost() decimal.Decimal {
	total := decimal.Zero
	if m.Delivery != nil {
		total = total.Add(m.Delivery.DeliveryCost)
	}
	if m.Cost != nil {
		total = total.Add(m.Cost.Total())
	}
	return total
}

// EmissionTier reports which CO2 rate was used for an emission estimate.
type EmissionTier string

const (
	TierNone         EmissionTier = ""
	TierVehicle      EmissionTier = "vehicle"
	TierFleetAverage EmissionTier = "fleet_average"
	TierDefault      EmissionTier = "default"
)

// Enriched is a master record plus derived KPIs. Derived fields are nil when
// the record could not be resolved or the inputs were missing.
type Enriched struct {
	MasterRecord
	Resolved     bool         `json:"resolved"`
	TotalCost    *float64     `json:"totalCost,omitempty"`
	DistanceKm   *float64     `json:"distanceKm,omitempty"`
	DelayDays    *float64     `json:"delayDays,omitempty"`
	CostPerKm    *float64     `json:"costPerKm,omitempty"`
	EmissionKg   *float64     `json:"emissionKg,omitempty"`
	EmissionTier EmissionTier `json:"emissionTier,omitempty"`
	OnTime       *bool        `json:"onTime,omitempty"`
}

func (e Enriched) ID() string { return e.Order.ID }

// Lane is the origin/destination pair key.
func (e Enriched) Lane() string { return LaneID(e.Order.Origin, e.Order.Destination) }

func (e Enriched) Carrier() string {
	if e.Delivery == nil {
		return ""
	}
	return e.Delivery.Carrier
}

func LaneID(origin, destination string) string { return origin + "→" + destination }

// Demand basis for warehouse demand estimates.
const (
	DemandByOrders   = "orders"
	DemandByQuantity = "quantity"
)

// Heuristics collects every tunable used by the deriver, scorer and rebalancer.
type Heuristics struct {
	FallbackCO2PerKm float64               `yaml:"fallbackCo2PerKm" json:"fallbackCo2PerKm"`
	NeutralScore     float64               `yaml:"neutralScore" json:"neutralScore"`
	DefaultWeights   [3]float64            `yaml:"defaultWeights" json:"defaultWeights"`
	Objectives       map[string][3]float64 `yaml:"objectives" json:"objectives"`
	LookbackDays     int                   `yaml:"lookbackDays" json:"lookbackDays"`
	UnderstockDays   float64               `yaml:"understockDays" json:"understockDays"`
	SurplusFactor    float64               `yaml:"surplusFactor" json:"surplusFactor"`
	ReorderBuffer    float64               `yaml:"reorderBuffer" json:"reorderBuffer"`
	DemandBasis      string                `yaml:"demandBasis" json:"demandBasis"`
}

// DefaultHeuristics returns the documented defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		FallbackCO2PerKm: 0.65,
		NeutralScore:     0.5,
		DefaultWeights:   [3]float64{0.4, 0.35, 0.25},
		Objectives: map[string][3]float64{
			"cost":      {1, 0, 0},
			"time":      {0, 1, 0},
			"emissions": {0, 0, 1},
			"balanced":  {1.0 / 3, 1.0 / 3, 1.0 / 3},
		},
		LookbackDays:   30,
		UnderstockDays: 7,
		SurplusFactor:  2.0,
		ReorderBuffer:  5,
		DemandBasis:    DemandByOrders,
	}
}
