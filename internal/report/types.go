package report

// Result is the precomputed aggregate bundle handed to the delivery layer.
// It is read-only here; the upstream analysis stage owns its lifecycle.
type Result struct {
	SummaryMetrics     *Metrics `json:"summary_metrics"`
	SalesByHeadquarter Table    `json:"sales_by_headquarter"`
	TopModels          Table    `json:"top_models"`
	SalesByChannel     Table    `json:"sales_by_channel"`
	SalesBySegment     Table    `json:"sales_by_segment"`
	MonthlyTrend       Table    `json:"monthly_sales_trend"`
}

// Metrics mirrors the upstream summary_metrics block.
type Metrics struct {
	UniqueClients     int64   `json:"unique_clients"`
	TotalSales        int64   `json:"total_sales"`
	TotalWithoutIGV   float64 `json:"total_sales_without_igv"`
	TotalWithIGV      float64 `json:"total_sales_with_igv"`
	TotalIGVCollected float64 `json:"total_igv_collected"`
	AverageWithoutIGV float64 `json:"average_sales_without_igv"`
	MaxWithoutIGV     float64 `json:"max_sale_without_igv"`
	MinWithoutIGV     float64 `json:"min_sale_without_igv"`
}

// Row is one labeled aggregate value.
type Row struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Table is an ordered aggregate series. Order is meaningful: top-models
// arrives pre-sorted and per-headquarter lines are emitted in table order.
type Table []Row

// First returns the label of the leading row, or "" when empty.
func (t Table) First() string {
	if len(t) == 0 {
		return ""
	}
	return t[0].Label
}
