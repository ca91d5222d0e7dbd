package prompt

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ratios are pre-computed before the data quality stage so the model
// doesn't have to do arithmetic. All rates are percentages.
type Ratios struct {
	CancellationRate float64 `json:"cancellation_rate"`
	AOV              float64 `json:"aov"`
	RepeatRate       float64 `json:"repeat_rate"`
	StockoutRate     float64 `json:"stockout_rate"`
	DeadStockRate    float64 `json:"dead_stock_rate"`
	NetProfitMargin  float64 `json:"net_profit_margin"`
	ExpenseRatio     float64 `json:"expense_ratio"`
	ConversionRate   float64 `json:"conversion_rate"`
	LossRate         float64 `json:"loss_rate"`
}

// ComputeRatios reads the sales, warehouse, finance and crm modules of a
// normalized snapshot. Missing or non-object modules count as empty.
func ComputeRatios(normalized json.RawMessage) Ratios {
	var doc map[string]any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return Ratios{}
	}
	sales := module(doc, "sales")
	warehouse := module(doc, "warehouse")
	finance := module(doc, "finance")
	crm := module(doc, "crm")

	skus := number(warehouse, "skus")
	revenue := number(finance, "revenue")
	leads := number(crm, "leads")

	return Ratios{
		CancellationRate: percent(number(sales, "cancelled"), number(sales, "total_orders")),
		AOV:              number(sales, "aov"),
		RepeatRate:       number(sales, "repeat"),
		StockoutRate:     percent(number(warehouse, "out_of_stock"), skus),
		DeadStockRate:    percent(number(warehouse, "dead_stock"), skus),
		NetProfitMargin:  percent(number(finance, "profit"), revenue),
		ExpenseRatio:     percent(number(finance, "expenses"), revenue),
		ConversionRate:   percent(number(crm, "converted"), leads),
		LossRate:         percent(number(crm, "lost"), leads),
	}
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

func module(doc map[string]any, key string) map[string]any {
	m, _ := doc[key].(map[string]any)
	return m
}

// number accepts JSON numbers and numeric strings like "35%".
func number(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, "%", ""))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
