// Package insight implements a thin client for the Volue Insight time
// series API: OAuth2 client-credentials auth, curve lookup and search,
// and raw data retrieval.
//
// Docs: https://volueinsight.com/docs
package insight

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gridsage/gridsage/internal/infra"
	"github.com/gridsage/gridsage/internal/timeseries"
	"github.com/gridsage/gridsage/pkg/utils"
)

const (
	defaultAuthURL = "https://auth.volueinsight.com/oauth2/token"
	defaultBaseURL = "https://api.volueinsight.com/api"

	// Refresh the token a minute before it actually expires.
	tokenSlack = time.Minute
)

var (
	// ErrNotInitialized is returned when the session has no credentials.
	ErrNotInitialized = errors.New("insight session not initialized")

	// ErrCurveNotFound is returned when a curve name resolves to nothing.
	ErrCurveNotFound = errors.New("curve not found")
)

// Curve describes a time series curve in the provider catalog.
type Curve struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Frequency string `json:"frequency"`
	TimeZone  string `json:"time_zone"`
	CurveType string `json:"curve_type"`
}

// rawSeries is the wire shape of a data response: points are
// [epoch_ms, value] pairs where value may be null.
type rawSeries struct {
	ID     int           `json:"id"`
	Name   string        `json:"name"`
	Points [][2]*float64 `json:"points"`
}

// Config holds session settings. AuthURL and BaseURL default to the
// production endpoints and exist so tests can point at a fake server.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	BaseURL      string
}

// Session is an authenticated connection to the provider. Safe for
// concurrent use.
type Session struct {
	clientID     string
	clientSecret string
	authURL      string
	baseURL      string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewSession creates a session. Returns ErrNotInitialized when the
// credentials are empty so callers can decide whether that is fatal.
func NewSession(cfg Config) (*Session, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotInitialized
	}
	s := &Session{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		authURL:      cfg.AuthURL,
		baseURL:      cfg.BaseURL,
	}
	if s.authURL == "" {
		s.authURL = defaultAuthURL
	}
	if s.baseURL == "" {
		s.baseURL = defaultBaseURL
	}
	return s, nil
}

// ensureToken fetches or refreshes the OAuth2 access token.
func (s *Session) ensureToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExp.Add(-tokenSlack)) {
		return s.token, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	body, _, err := infra.DoPostForm(ctx, s.authURL, map[string]string{
		"Authorization": "Basic " + basic,
	}, "grant_type=client_credentials")
	if err != nil {
		return "", fmt.Errorf("insight auth: %w", err)
	}
	defer body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(body).Decode(&tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("insight auth: empty access token")
	}

	s.token = tok.AccessToken
	s.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return s.token, nil
}

// getJSON performs an authenticated GET against the API and decodes JSON.
func (s *Session) getJSON(ctx context.Context, path string, dest any) error {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return err
	}

	body, _, err := infra.DoGet(ctx, s.baseURL+path, map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	})
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read insight response: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse insight JSON: %w", err)
	}
	return nil
}

// GetCurve looks up a curve by its exact name.
func (s *Session) GetCurve(ctx context.Context, name string) (*Curve, error) {
	var c Curve
	path := "/curves/get?name=" + url.QueryEscape(name)
	if err := s.getJSON(ctx, path, &c); err != nil {
		var he *infra.HTTPError
		if errors.As(err, &he) && he.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrCurveNotFound, name)
		}
		return nil, err
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCurveNotFound, name)
	}
	return &c, nil
}

// Search returns curves matching the query, most relevant first.
func (s *Session) Search(ctx context.Context, query string) ([]Curve, error) {
	var curves []Curve
	path := "/curves/?query=" + url.QueryEscape(query)
	if err := s.getJSON(ctx, path, &curves); err != nil {
		return nil, err
	}
	return curves, nil
}

// Data fetches raw points for a curve in [from, to) and returns them as a
// series in naive CET. Null points become NaN values.
func (s *Session) Data(ctx context.Context, curveID int, from, to time.Time) (timeseries.Series, error) {
	path := fmt.Sprintf("/series/%d?from=%s&to=%s",
		curveID,
		url.QueryEscape(utils.FormatDate(from)),
		url.QueryEscape(utils.FormatDate(to)))
	return s.fetchSeries(ctx, path)
}

// LatestData fetches points from the most recent issue of an instance
// curve (forecasts republished per model run).
func (s *Session) LatestData(ctx context.Context, curveID int) (timeseries.Series, error) {
	path := "/instances/" + strconv.Itoa(curveID) + "/latest?with_data=true"
	return s.fetchSeries(ctx, path)
}

func (s *Session) fetchSeries(ctx context.Context, path string) (timeseries.Series, error) {
	var raw rawSeries
	if err := s.getJSON(ctx, path, &raw); err != nil {
		return timeseries.Series{}, err
	}

	points := make([]timeseries.Point, 0, len(raw.Points))
	for _, p := range raw.Points {
		if p[0] == nil {
			continue
		}
		ts := time.UnixMilli(int64(*p[0])).UTC()
		val := math.NaN()
		if p[1] != nil {
			val = *p[1]
		}
		points = append(points, timeseries.Point{
			Time:  utils.StripZone(ts),
			Value: val,
		})
	}
	return timeseries.New(points), nil
}
