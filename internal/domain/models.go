package domain

import "time"

// Item is inventory master data. Lead times missing from the record decode as zero.
type Item struct {
	ItemID                string  `json:"item_id"`
	SupplyLeadTime        float64 `json:"supply_lead_time"`
	ManufacturingLeadTime float64 `json:"manufacturing_lead_time"`
	MinOrderQuantity      float64 `json:"min_order_quantity"`
}

// BufferZones holds the three DDMRP zone sizes.
type BufferZones struct {
	RedZone    float64 `json:"red_zone"`
	YellowZone float64 `json:"yellow_zone"`
	GreenZone  float64 `json:"green_zone"`
}

// Total returns red + yellow + green.
func (z BufferZones) Total() float64 {
	return z.RedZone + z.YellowZone + z.GreenZone
}

// BufferProfile is the persisted zone sizing of an item, keyed by item_id.
type BufferProfile struct {
	ItemID string `json:"item_id"`
	BufferZones
	UpdatedAt time.Time `json:"updated_at"`
}

// NetFlowPosition is a point-in-time classification of an item's net flow.
type NetFlowPosition struct {
	ItemID      string    `json:"item_id"`
	NetFlow     float64   `json:"net_flow"`
	Ratio       *float64  `json:"ratio"`
	Color       Color     `json:"color"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Alert is raised for positions sitting in the red or yellow zone.
type Alert struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	AlertType AlertType `json:"alert_type"`
	Color     Color     `json:"color"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// DemandNode identifies a product at a location.
type DemandNode struct {
	ProductID  string `json:"product_id"`
	LocationID string `json:"location_id"`
}

// SalesRecord is one realized customer demand observation.
type SalesRecord struct {
	ProductID    string  `json:"product_id"`
	LocationID   string  `json:"location_id"`
	SalesDate    string  `json:"sales_date"`
	QuantitySold float64 `json:"quantity_sold"`
}

// PurchaseOrder is a quantity ordered to the upstream supplier.
type PurchaseOrder struct {
	ProductID  string  `json:"product_id"`
	LocationID string  `json:"location_id"`
	OrderDate  string  `json:"order_date"`
	OrderedQty float64 `json:"ordered_qty"`
}

// DemandDistributionProfile is the best-fitting demand distribution for a node.
// Param1/Param2 are family specific: normal (mu, sigma), lognormal (mu, sigma of
// the log), gamma (shape, rate), beta (alpha, beta on the Loc/Scale window).
type DemandDistributionProfile struct {
	ProductID        string    `json:"product_id"`
	LocationID       string    `json:"location_id"`
	DistributionType string    `json:"distribution_type"`
	Param1           float64   `json:"param1"`
	Param2           *float64  `json:"param2"`
	Loc              *float64  `json:"loc,omitempty"`
	Scale            *float64  `json:"scale,omitempty"`
	KSStatistic      float64   `json:"ks_statistic"`
	PValue           float64   `json:"p_value"`
	SampleSize       int       `json:"sample_size"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BullwhipRecord is the persisted result of one analysis window.
type BullwhipRecord struct {
	ProductID            string  `json:"product_id"`
	LocationID           string  `json:"location_id"`
	AnalysisPeriodStart  string  `json:"analysis_period_start"`
	AnalysisPeriodEnd    string  `json:"analysis_period_end"`
	CustomerDemandMean   float64 `json:"customer_demand_mean"`
	CustomerDemandStdDev float64 `json:"customer_demand_std_dev"`
	OrderQtyMean         float64 `json:"order_qty_mean"`
	OrderQtyStdDev       float64 `json:"order_qty_std_dev"`
	BullwhipRatio        float64 `json:"bullwhip_ratio"`
	BullwhipScore        int     `json:"bullwhip_score"`
}

// ThresholdConfigID is the key of the single live ThresholdConfig record.
const ThresholdConfigID = 1

// ThresholdConfig holds the global tuning thresholds. Version is bumped on
// every successful write and guards read-modify-write updates.
type ThresholdConfig struct {
	ID                         int       `json:"id"`
	DemandVariabilityThreshold float64   `json:"demand_variability_threshold"`
	DecouplingThreshold        float64   `json:"decoupling_threshold"`
	FirstTimeAdjusted          bool      `json:"first_time_adjusted"`
	Version                    int64     `json:"version"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// PerformanceRecord is one period of observed planning performance.
type PerformanceRecord struct {
	PeriodStart          string   `json:"period_start,omitempty"`
	StockoutCount        float64  `json:"stockout_count"`
	OverstockCount       float64  `json:"overstock_count"`
	ServiceLevelAchieved *float64 `json:"service_level_achieved,omitempty"`
}

// DemandVariability is the simulator input for one node.
type DemandVariability struct {
	ProductID         string   `json:"product_id"`
	LocationID        string   `json:"location_id"`
	DemandVariability float64  `json:"demand_variability"`
	LeadTimeDays      *float64 `json:"lead_time_days"`
}

// SafetyStockSample is one retained Monte-Carlo trial.
type SafetyStockSample struct {
	ID                    string    `json:"id"`
	ProductID             string    `json:"product_id"`
	LocationID            string    `json:"location_id"`
	SimulationRun         int       `json:"simulation_run"`
	SimulatedDemand       float64   `json:"simulated_demand"`
	SimulatedLeadTime     float64   `json:"simulated_lead_time"`
	CalculatedSafetyStock float64   `json:"calculated_safety_stock"`
	CreatedAt             time.Time `json:"created_at"`
}

// Order statuses.
const (
	OrderOpen      = "open"
	OrderCompleted = "completed"
)

// Order is a supply or production order awaiting capacity and execution.
// An empty Status counts as open.
type Order struct {
	OrderID     string     `json:"order_id"`
	ItemID      string     `json:"item_id"`
	Quantity    float64    `json:"quantity"`
	OrderDate   string     `json:"order_date,omitempty"`
	Status      string     `json:"status,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CapacityScheduleEntry is one day's allocation of an order within a schedule.
type CapacityScheduleEntry struct {
	ScheduleID string    `json:"schedule_id"`
	Line       int       `json:"line"`
	OrderID    string    `json:"order_id,omitempty"`
	ItemID     string    `json:"item_id"`
	StartDate  string    `json:"start_date"`
	Quantity   float64   `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// WriteResult reports whether a computed value reached the store.
// A failed write never invalidates the value it accompanies.
type WriteResult struct {
	Saved    bool   `json:"saved"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason,omitempty"`
}
