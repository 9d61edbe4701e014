package market

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gridsage/gridsage/internal/timeseries"
	"github.com/gridsage/gridsage/pkg/models"
	"github.com/gridsage/gridsage/pkg/utils"
)

// smartLookahead is the forward window the smart analyzer examines.
const smartLookahead = 48 * time.Hour

// SwissSmart analyzes the newest Swiss forecast issue and recommends the
// cheapest hour in the next 48 hours. When the look-ahead slice is empty
// (forecast horizon exhausted) it falls back to the last 24 points of the
// full series regardless of their timestamps.
func (s *Service) SwissSmart(ctx context.Context) (*models.SmartDashboard, error) {
	out := s.FetchLatest(ctx, ForecastCurveName("ch", DefaultRun))
	if out.Failed() {
		return nil, out.NotFoundError()
	}

	full := out.Series.DropNaN()
	if full.Empty() {
		return nil, fmt.Errorf("%w: swiss forecast", ErrNoData)
	}

	now := utils.StripZone(utils.NowCET())
	window := full.Slice(now, now.Add(smartLookahead))
	if window.Empty() {
		window = full.Tail(24)
	}

	analysis := analyzeWindow(window)
	return &models.SmartDashboard{
		Analysis: analysis,
		ChartJS:  windowChart(window),
	}, nil
}

func analyzeWindow(window timeseries.Series) models.SmartAnalysis {
	current := window.Points[0].Value
	min, max := current, current
	bestAt := window.Points[0].Time

	for _, p := range window.Points {
		if p.Value < min {
			min = p.Value
			bestAt = p.Time
		}
		if p.Value > max {
			max = p.Value
		}
	}

	label := utils.FormatHourLabel(bestAt)
	return models.SmartAnalysis{
		CurrentPrice:  round2(current),
		MinPrice:      round2(min),
		MaxPrice:      round2(max),
		BestTimeLabel: label,
		Advice: fmt.Sprintf("Cheapest hour ahead is %s at %.2f €/MWh. Shift flexible consumption there.",
			label, min),
	}
}

func windowChart(window timeseries.Series) *models.ChartJS {
	labels := make([]string, window.Len())
	data := make([]*float64, window.Len())
	for i, p := range window.Points {
		labels[i] = utils.FormatHourLabel(p.Time)
		v := round2(p.Value)
		data[i] = &v
	}
	return &models.ChartJS{
		Type: "line",
		Data: models.ChartData{
			Labels: labels,
			Datasets: []models.ChartDataset{{
				Label:       "CH spot €/MWh",
				Data:        data,
				BorderColor: "rgb(75, 192, 192)",
				Tension:     0.3,
			}},
		},
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
