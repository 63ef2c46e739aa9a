package persistence

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskModel represents the tasks table
type TaskModel struct {
	ID                    int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Kind                  string     `gorm:"column:kind;not null;index"`
	Status                string     `gorm:"column:status;not null;index"`
	Progress              float64    `gorm:"column:progress;not null;default:0"`
	Phase                 string     `gorm:"column:phase"`
	Message               string     `gorm:"column:message;type:text"`
	FileName              string     `gorm:"column:file_name"`
	Parameters            string     `gorm:"column:parameters;type:text"`
	TotalRecords          int        `gorm:"column:total_records;not null;default:0"`
	ProcessedRecords      int        `gorm:"column:processed_records;not null;default:0"`
	ErrorCount            int        `gorm:"column:error_count;not null;default:0"`
	ErrorMessage          *string    `gorm:"column:error_message;type:text"`
	ResultPath            *string    `gorm:"column:result_path"`
	CancellationRequested bool       `gorm:"column:cancellation_requested;not null;default:false"`
	CreatedAt             time.Time  `gorm:"column:created_at;not null;index"`
	StartedAt             *time.Time `gorm:"column:started_at"`
	EndedAt               *time.Time `gorm:"column:ended_at"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;not null"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

// StyleModel represents the styles table
type StyleModel struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	StyleCode   string          `gorm:"column:style_code;unique;not null"`
	Brand       string          `gorm:"column:brand;not null"`
	Category    string          `gorm:"column:category;not null;index"`
	SubCategory string          `gorm:"column:sub_category"`
	MRP         decimal.Decimal `gorm:"column:mrp;type:decimal(12,2);not null"`
	Gender      string          `gorm:"column:gender"`
}

func (StyleModel) TableName() string {
	return "styles"
}

// SkuModel represents the skus table
type SkuModel struct {
	ID      int64       `gorm:"column:id;primaryKey;autoIncrement"`
	Code    string      `gorm:"column:sku;unique;not null"`
	StyleID int64       `gorm:"column:style_id;not null;index"`
	Style   *StyleModel `gorm:"foreignKey:StyleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	Size    string      `gorm:"column:size"`
}

func (SkuModel) TableName() string {
	return "skus"
}

// StoreModel represents the stores table
type StoreModel struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Branch string `gorm:"column:branch;unique;not null"`
	City   string `gorm:"column:city"`
}

func (StoreModel) TableName() string {
	return "stores"
}

// SaleModel represents the sales table.
// One row per (day, sku, store) line in the uploaded file; the table is
// fully replaced on every successful sales upload.
type SaleModel struct {
	ID       int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Date     time.Time       `gorm:"column:date;not null;index"`
	SkuID    int64           `gorm:"column:sku_id;not null;index"`
	Sku      *SkuModel       `gorm:"foreignKey:SkuID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	StoreID  int64           `gorm:"column:store_id;not null;index"`
	Store    *StoreModel     `gorm:"foreignKey:StoreID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	Quantity int             `gorm:"column:quantity;not null"`
	Discount decimal.Decimal `gorm:"column:discount;type:decimal(14,2);not null"`
	Revenue  decimal.Decimal `gorm:"column:revenue;type:decimal(14,2);not null"`
}

func (SaleModel) TableName() string {
	return "sales"
}

// NoosResultModel represents the noos_results table
type NoosResultModel struct {
	ID                   int64           `gorm:"column:id;primaryKey;autoIncrement"`
	AlgorithmRunID       int64           `gorm:"column:algorithm_run_id;not null;index"`
	Category             string          `gorm:"column:category;not null;index"`
	StyleCode            string          `gorm:"column:style_code;not null"`
	StyleROS             decimal.Decimal `gorm:"column:style_ros;type:decimal(14,4);not null"`
	Type                 string          `gorm:"column:type;not null;index"`
	StyleRevContribution decimal.Decimal `gorm:"column:style_rev_contribution;type:decimal(14,4);not null"`
	TotalQuantitySold    int             `gorm:"column:total_quantity_sold;not null"`
	TotalRevenue         decimal.Decimal `gorm:"column:total_revenue;type:decimal(14,2);not null"`
	DaysAvailable        int             `gorm:"column:days_available;not null"`
	DaysWithSales        int             `gorm:"column:days_with_sales;not null"`
	AvgDiscount          decimal.Decimal `gorm:"column:avg_discount;type:decimal(14,4);not null"`
	CalculatedAt         time.Time       `gorm:"column:calculated_at;not null"`
}

func (NoosResultModel) TableName() string {
	return "noos_results"
}

// AlgorithmParametersModel represents the algorithm_parameters table
type AlgorithmParametersModel struct {
	ID                     int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ParameterSet           string     `gorm:"column:parameter_set;unique;not null"`
	LiquidationThreshold   float64    `gorm:"column:liquidation_threshold;not null"`
	BestsellerMultiplier   float64    `gorm:"column:bestseller_multiplier;not null"`
	MinVolumeThreshold     float64    `gorm:"column:min_volume_threshold;not null"`
	ConsistencyThreshold   float64    `gorm:"column:consistency_threshold;not null"`
	AnalysisStartDate      *time.Time `gorm:"column:analysis_start_date"`
	AnalysisEndDate        *time.Time `gorm:"column:analysis_end_date"`
	CoreDurationMonths     int        `gorm:"column:core_duration_months;not null;default:6"`
	BestsellerDurationDays int        `gorm:"column:bestseller_duration_days;not null;default:90"`
	AvailabilityPolicy     string     `gorm:"column:availability_policy;not null;default:'observed'"`
	IsActive               bool       `gorm:"column:is_active;not null;default:false;index"`
	CreatedAt              time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (AlgorithmParametersModel) TableName() string {
	return "algorithm_parameters"
}

// AuditLogModel represents the audit_logs table
type AuditLogModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp  time.Time `gorm:"column:timestamp;not null;index"`
	EntityType string    `gorm:"column:entity_type;not null;index"`
	EntityID   int64     `gorm:"column:entity_id;not null"`
	Action     string    `gorm:"column:action;not null"`
	Details    string    `gorm:"column:details;type:text"`
	ModifiedBy string    `gorm:"column:modified_by"`
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}
