package market

import (
	"context"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridsage/gridsage/internal/timeseries"
	"github.com/gridsage/gridsage/pkg/models"
	"github.com/gridsage/gridsage/pkg/utils"
)

// EuropePrices builds the hour-indexed price grid for one calendar day.
// Per area it tries the forecast curve first and falls back to actuals;
// areas where both fail end up in the missing list with 24 null slots.
// The endpoint never fails because of a single area.
func (s *Service) EuropePrices(ctx context.Context, date time.Time, run string) (*models.PriceGrid, error) {
	if run == "" {
		run = DefaultRun
	}
	start := utils.DayStart(date)
	end := start.AddDate(0, 0, 1)

	byArea := make(map[string]timeseries.Series, len(models.Areas))
	failed := make(map[string]bool)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, area := range models.Areas {
		area := area
		g.Go(func() error {
			out := s.FetchSeries(gctx, ForecastCurveName(area, run), start, end)
			if out.Failed() {
				out = s.FetchSeries(gctx, ActualsCurveName(area), start, end)
			}

			mu.Lock()
			defer mu.Unlock()
			if out.Failed() {
				log.Printf("prices: area %s unavailable: %v", strings.ToUpper(area), out.Err)
				failed[area] = true
				byArea[area] = timeseries.Series{}
				return nil
			}
			byArea[area] = timeseries.ResampleHourly(out.Series)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grid := &models.PriceGrid{
		Date:    utils.FormatDate(start),
		Run:     run,
		Unit:    "€/MWh",
		Hours:   make([]models.HourPrices, 0, 24),
		Missing: []string{},
	}
	for _, area := range models.Areas {
		if failed[area] {
			grid.Missing = append(grid.Missing, strings.ToUpper(area))
		}
	}

	for h := 0; h < 24; h++ {
		slot := utils.HourSlot(start, h)
		prices := make(map[string]*float64, len(models.Areas))
		for _, area := range models.Areas {
			prices[strings.ToUpper(area)] = nil
			v := byArea[area].At(slot)
			if !math.IsNaN(v) {
				val := v
				prices[strings.ToUpper(area)] = &val
			}
		}
		grid.Hours = append(grid.Hours, models.HourPrices{Hour: h, Prices: prices})
	}
	return grid, nil
}
