// Package volatility classifies the conditional volatility of a query day
// against a six-month lookback and flags anomalous same-day price levels.
//
// Pipeline: detrend hourly prices with a centered rolling mean, fit a
// GARCH(1,1) model to the residuals, bucket the query day's mean
// conditional volatility into empirical tertiles, and independently score
// the day's residuals against a median/MAD threshold.
package volatility

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gridsage/gridsage/internal/timeseries"
	"github.com/gridsage/gridsage/pkg/models"
	"github.com/gridsage/gridsage/pkg/utils"
)

const (
	detrendWindow     = 24
	detrendMinPeriods = 12
	minResiduals      = 50

	// madScale makes the median absolute deviation a consistent estimator
	// of the standard deviation under normality.
	madScale = 1.4826

	anomalyThreshold = 3.0
)

// ErrInsufficientData is returned when fewer residual points survive
// detrending than the model needs.
var ErrInsufficientData = errors.New("insufficient data for volatility model")

// Lookback returns the actuals window for a query date: six calendar
// months of hourly data ending at 23:00 on that day.
func Lookback(queryDate time.Time) (from, to time.Time) {
	dayEnd := utils.DayStart(queryDate).AddDate(0, 0, 1)
	return dayEnd.AddDate(0, -6, 0), dayEnd
}

// Analyze runs the full pipeline on an hourly actuals series and reports
// on the query day. The series is expected to cover the Lookback window.
func Analyze(series timeseries.Series, queryDate time.Time) (*models.VolatilityReport, error) {
	residuals := detrend(series)
	if residuals.Len() < minResiduals {
		return nil, fmt.Errorf("%w: %d residual points, need %d",
			ErrInsufficientData, residuals.Len(), minResiduals)
	}

	_, sigma, err := fitGARCH(residuals.Values())
	if err != nil {
		return nil, fmt.Errorf("garch fit: %w", err)
	}

	day := utils.DayStart(queryDate)
	report := &models.VolatilityReport{
		Date:         utils.FormatDate(day),
		Volatility:   classify(residuals, sigma, day),
		PriceAnomaly: scoreAnomaly(series, residuals, day),
	}
	appendDayCharts(report, series, residuals, sigma, day)
	return report, nil
}

// detrend subtracts the centered rolling mean from the series and drops
// points where the trend is undefined.
func detrend(series timeseries.Series) timeseries.Series {
	trend := timeseries.CenteredRollingMean(series.Values(), detrendWindow, detrendMinPeriods)

	points := make([]timeseries.Point, 0, series.Len())
	for i, p := range series.Points {
		if math.IsNaN(p.Value) || math.IsNaN(trend[i]) {
			continue
		}
		points = append(points, timeseries.Point{Time: p.Time, Value: p.Value - trend[i]})
	}
	return timeseries.Series{Points: points}
}

// classify buckets the query day's mean conditional volatility by the
// 33rd/67th percentile of the whole fitted window.
func classify(residuals timeseries.Series, sigma []float64, day time.Time) models.VolatilitySummary {
	sorted := make([]float64, len(sigma))
	copy(sorted, sigma)
	sort.Float64s(sorted)

	lowCut := stat.Quantile(0.33, stat.Empirical, sorted, nil)
	highCut := stat.Quantile(0.67, stat.Empirical, sorted, nil)

	daySum, dayCount := 0.0, 0
	for i, p := range residuals.Points {
		if utils.SameDay(p.Time, day) {
			daySum += sigma[i]
			dayCount++
		}
	}
	if dayCount == 0 {
		return models.VolatilitySummary{Level: "unknown", ChartVolatility: []*float64{}}
	}
	dayMean := daySum / float64(dayCount)

	level := "normal"
	switch {
	case dayMean < lowCut:
		level = "low"
	case dayMean > highCut:
		level = "high"
	}

	below := 0
	for _, s := range sigma {
		if s <= dayMean {
			below++
		}
	}

	return models.VolatilitySummary{
		Level:      level,
		Percentile: float64(below) / float64(len(sigma)),
	}
}

// scoreAnomaly flags the query day when any residual sits more than three
// robust-spread units from the lookback median.
func scoreAnomaly(series, residuals timeseries.Series, day time.Time) models.AnomalySummary {
	values := residuals.Values()
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	spread := madScale * stat.Quantile(0.5, stat.Empirical, dev, nil)

	unusual := false
	excessSum, dayCount := 0.0, 0
	for _, p := range residuals.Points {
		if !utils.SameDay(p.Time, day) {
			continue
		}
		dayCount++
		if math.Abs(p.Value-median) > anomalyThreshold*spread {
			unusual = true
		}
		if excess := p.Value - median; excess > 0 {
			excessSum += excess
		}
	}

	summary := models.AnomalySummary{Unusual: unusual, ChartPrice: []*float64{}}
	if dayCount > 0 {
		summary.ExcessiveReturn = round2(excessSum / float64(dayCount))
	}
	return summary
}

// appendDayCharts fills the per-hour price and sigma arrays for the query
// day only, in timestamp order, rounded to two decimals.
func appendDayCharts(report *models.VolatilityReport, series, residuals timeseries.Series, sigma []float64, day time.Time) {
	price := []*float64{}
	vol := []*float64{}

	for i, p := range residuals.Points {
		if !utils.SameDay(p.Time, day) {
			continue
		}
		s := round2(sigma[i])
		vol = append(vol, &s)

		raw := series.At(p.Time)
		if math.IsNaN(raw) {
			price = append(price, nil)
			continue
		}
		v := round2(raw)
		price = append(price, &v)
	}

	report.Volatility.ChartVolatility = vol
	report.PriceAnomaly.ChartPrice = price
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
