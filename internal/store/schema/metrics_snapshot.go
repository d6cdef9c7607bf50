package schema

import (
	"time"

	"gorm.io/datatypes"
)

// MetricsSnapshot represents the metrics_snapshots table - a periodic
// historical log of derived system metrics. Snapshots are informational
// only and never read back by the ledger engine.
type MetricsSnapshot struct {
	// ID is a generated unique identifier (UUID)
	ID string `gorm:"column:id;primaryKey;type:text"`
	// TotalUsers is the total account count at snapshot time
	TotalUsers int64 `gorm:"column:total_users;not null"`
	// TotalTokens is the sum of sampled balances
	TotalTokens int64 `gorm:"column:total_tokens;not null"`
	// HealthScore is the derived 0-100 gauge
	HealthScore int `gorm:"column:health_score;not null"`
	// Detail carries the full SystemMetrics payload as JSON
	Detail datatypes.JSON `gorm:"column:detail;type:jsonb"`
	// CreatedAt is when the snapshot was computed; the monitor sets it to the
	// metrics computation time, so it is only auto-filled when left zero
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime;index:idx_metrics_snapshots_created"`
}

// TableName specifies the table name for the MetricsSnapshot model
func (MetricsSnapshot) TableName() string {
	return "metrics_snapshots"
}
