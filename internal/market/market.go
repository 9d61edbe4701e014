// Package market turns raw provider curves into the price products the API
// serves: the per-area day-ahead grid, the Swiss smart window, and the
// hourly actuals feed for the volatility engine.
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridsage/gridsage/internal/insight"
	"github.com/gridsage/gridsage/internal/timeseries"
	"github.com/gridsage/gridsage/pkg/models"
)

// DefaultRun is the forecast run token used when the caller does not pick one.
const DefaultRun = "EC00"

var (
	// ErrCurveNotFound is returned when neither exact lookup nor search
	// resolves a curve name.
	ErrCurveNotFound = errors.New("curve not found")

	// ErrNoData is returned when a resolved curve has no usable points.
	ErrNoData = errors.New("no data for curve")

	// ErrUnknownArea is returned for an area code outside the fixed set.
	ErrUnknownArea = errors.New("unknown area")
)

// CurveAPI is the slice of the provider client the market layer needs.
// *insight.Session satisfies it; tests substitute a fake.
type CurveAPI interface {
	GetCurve(ctx context.Context, name string) (*insight.Curve, error)
	Search(ctx context.Context, query string) ([]insight.Curve, error)
	Data(ctx context.Context, curveID int, from, to time.Time) (timeseries.Series, error)
	LatestData(ctx context.Context, curveID int) (timeseries.Series, error)
}

// Service resolves curves and assembles price products. The provider handle
// is injected once at construction and shared across requests.
type Service struct {
	api CurveAPI
}

// NewService creates a market service on top of a provider client.
func NewService(api CurveAPI) *Service {
	return &Service{api: api}
}

// ForecastCurveName builds the provider curve name for an area's day-ahead
// forecast under the given run token.
func ForecastCurveName(area, run string) string {
	return strings.ToLower(fmt.Sprintf("pri %s spot %s €/mwh cet h f", area, run))
}

// ActualsCurveName builds the provider curve name for an area's settled
// day-ahead prices.
func ActualsCurveName(area string) string {
	return strings.ToLower(fmt.Sprintf("pri %s spot €/mwh cet h a", area))
}

// ActualsHourly fetches an area's settled prices in [from, to) resampled
// to hourly buckets. Used by the volatility engine.
func (s *Service) ActualsHourly(ctx context.Context, area string, from, to time.Time) (timeseries.Series, error) {
	if !ValidArea(area) {
		return timeseries.Series{}, fmt.Errorf("%w: %s", ErrUnknownArea, area)
	}

	out := s.FetchSeries(ctx, ActualsCurveName(strings.ToLower(area)), from, to)
	if out.Failed() {
		return timeseries.Series{}, out.NotFoundError()
	}

	hourly := timeseries.ResampleHourly(out.Series)
	if hourly.Empty() {
		return timeseries.Series{}, fmt.Errorf("%w: %s actuals", ErrNoData, area)
	}
	return hourly, nil
}

// ValidArea reports whether the area code is in the supported set.
func ValidArea(area string) bool {
	area = strings.ToLower(area)
	for _, a := range models.Areas {
		if a == area {
			return true
		}
	}
	return false
}
