package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridsage/gridsage/internal/insight"
	"github.com/gridsage/gridsage/internal/timeseries"
)

// FetchStatus tags the outcome of a series fetch so callers can tell
// "fetch worked, zero points" apart from "fetch failed".
type FetchStatus string

const (
	FetchOK       FetchStatus = "ok"       // resolved and returned points
	FetchDegraded FetchStatus = "degraded" // resolved but the window is empty
	FetchFailed   FetchStatus = "failed"   // resolution or retrieval error
)

// FetchOutcome is the tagged result of fetching one curve.
type FetchOutcome struct {
	Status FetchStatus
	Series timeseries.Series
	Err    error
}

// resolve finds a curve by exact name, falling back to the first search
// match. The first-match heuristic mirrors the provider's own client
// behavior; match quality is not validated.
func (s *Service) resolve(ctx context.Context, name string) (*insight.Curve, error) {
	c, err := s.api.GetCurve(ctx, name)
	if err == nil {
		return c, nil
	}

	candidates, serr := s.api.Search(ctx, name)
	if serr != nil {
		return nil, fmt.Errorf("resolve %q: %w", name, serr)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCurveNotFound, name)
	}
	return &candidates[0], nil
}

// FetchSeries resolves a curve name and retrieves its points in [from, to).
func (s *Service) FetchSeries(ctx context.Context, name string, from, to time.Time) FetchOutcome {
	curve, err := s.resolve(ctx, name)
	if err != nil {
		return FetchOutcome{Status: FetchFailed, Err: err}
	}

	series, err := s.api.Data(ctx, curve.ID, from, to)
	if err != nil {
		return FetchOutcome{Status: FetchFailed, Err: fmt.Errorf("fetch %q: %w", name, err)}
	}
	if series.Empty() {
		return FetchOutcome{Status: FetchDegraded, Series: series}
	}
	return FetchOutcome{Status: FetchOK, Series: series}
}

// FetchLatest resolves a curve name and retrieves its most recent issue.
func (s *Service) FetchLatest(ctx context.Context, name string) FetchOutcome {
	curve, err := s.resolve(ctx, name)
	if err != nil {
		return FetchOutcome{Status: FetchFailed, Err: err}
	}

	series, err := s.api.LatestData(ctx, curve.ID)
	if err != nil {
		return FetchOutcome{Status: FetchFailed, Err: fmt.Errorf("fetch latest %q: %w", name, err)}
	}
	if series.Empty() {
		return FetchOutcome{Status: FetchDegraded, Series: series}
	}
	return FetchOutcome{Status: FetchOK, Series: series}
}

// Failed reports whether the outcome carries an error.
func (o FetchOutcome) Failed() bool { return o.Status == FetchFailed }

// NotFoundError maps a failed outcome's error to ErrCurveNotFound when the
// underlying cause was a missing curve.
func (o FetchOutcome) NotFoundError() error {
	if o.Err == nil {
		return nil
	}
	if errors.Is(o.Err, insight.ErrCurveNotFound) || errors.Is(o.Err, ErrCurveNotFound) {
		return fmt.Errorf("%w: %v", ErrCurveNotFound, o.Err)
	}
	return o.Err
}
