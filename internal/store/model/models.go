package model

import "gorm.io/datatypes"

// PortfolioModel is the singleton account row. Money columns are decimal
// strings so values round-trip exactly.
type PortfolioModel struct {
	ID          int64  `gorm:"column:id;primaryKey"`
	CashBalance string `gorm:"column:cash_balance"`
	LastUpdated int64  `gorm:"column:last_updated"`
}

func (PortfolioModel) TableName() string { return "portfolio" }

type PositionModel struct {
	Ticker   string `gorm:"column:ticker;primaryKey"`
	Quantity int64  `gorm:"column:quantity"`
	AvgPrice string `gorm:"column:avg_price"`
}

func (PositionModel) TableName() string { return "positions" }

// TradeRecordModel rows are append-only; they are never updated or deleted.
type TradeRecordModel struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp   int64   `gorm:"column:timestamp"`
	Ticker      string  `gorm:"column:ticker"`
	Action      string  `gorm:"column:action"`
	Quantity    int64   `gorm:"column:quantity"`
	Price       string  `gorm:"column:price"`
	TotalCost   string  `gorm:"column:total_cost"`
	RealizedPnL *string `gorm:"column:realized_pnl"`
}

func (TradeRecordModel) TableName() string { return "trade_records" }

// DecisionModel is one gate verdict, kept for audit. Breakdown holds the
// exposure snapshot as JSON.
type DecisionModel struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TraceID   string         `gorm:"column:trace_id;uniqueIndex"`
	Ticker    string         `gorm:"column:ticker"`
	Action    string         `gorm:"column:action"`
	Status    string         `gorm:"column:status"`
	Reason    string         `gorm:"column:reason"`
	Detail    string         `gorm:"column:detail"`
	Quantity  int64          `gorm:"column:quantity"`
	Price     string         `gorm:"column:price"`
	RiskScore int            `gorm:"column:risk_score"`
	Manual    bool           `gorm:"column:manual"`
	Override  bool           `gorm:"column:override"`
	Executed  bool           `gorm:"column:executed"`
	Breakdown datatypes.JSON `gorm:"column:breakdown;type:TEXT"`
	CreatedAt int64          `gorm:"column:created_at"`
}

func (DecisionModel) TableName() string { return "decision_log" }
