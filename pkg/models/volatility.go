package models

// VolatilitySummary classifies the conditional volatility of a query day.
type VolatilitySummary struct {
	Level           string     `json:"level"` // low, normal, high, unknown
	Percentile      float64    `json:"percentile"`
	ChartVolatility []*float64 `json:"chart_volatility"`
}

// AnomalySummary flags unusually high prices on the query day.
type AnomalySummary struct {
	Unusual         bool       `json:"unusual"`
	ExcessiveReturn float64    `json:"excessive_return"`
	ChartPrice      []*float64 `json:"chart_price"`
}

// VolatilityReport is the response body of the volatility endpoint.
type VolatilityReport struct {
	Area         string            `json:"area"`
	Date         string            `json:"date"`
	Volatility   VolatilitySummary `json:"volatility"`
	PriceAnomaly AnomalySummary    `json:"price_anomaly"`
}
