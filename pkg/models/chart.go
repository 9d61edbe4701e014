package models

// ChartDataset is a single line in a chart.js payload.
type ChartDataset struct {
	Label       string     `json:"label"`
	Data        []*float64 `json:"data"`
	BorderColor string     `json:"borderColor,omitempty"`
	Fill        bool       `json:"fill"`
	Tension     float64    `json:"tension,omitempty"`
}

// ChartJS is a chart.js line-chart payload the frontend renders directly.
type ChartJS struct {
	Type string    `json:"type"`
	Data ChartData `json:"data"`
}

// ChartData holds the labels and datasets of a chart.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// SmartAnalysis summarizes the cheapest upcoming window for one area.
type SmartAnalysis struct {
	CurrentPrice  float64 `json:"current_price"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	BestTimeLabel string  `json:"best_time_label"`
	Advice        string  `json:"advice"`
}

// SmartDashboard is the response body of the smart-window endpoint.
type SmartDashboard struct {
	Analysis SmartAnalysis `json:"analysis"`
	ChartJS  *ChartJS      `json:"chart_js"`
}
