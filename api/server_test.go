package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gridsage/gridsage/internal/assistant"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/insight"
	"github.com/gridsage/gridsage/internal/llm"
	"github.com/gridsage/gridsage/internal/market"
	"github.com/gridsage/gridsage/internal/timeseries"
	"github.com/gridsage/gridsage/internal/volatility"
	"github.com/gridsage/gridsage/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test fixtures
// ════════════════════════════════════════════════════════════════════

// fakeCurveAPI is an in-memory provider with a fixed curve catalog.
type fakeCurveAPI struct {
	curves map[string]int
	data   map[int]timeseries.Series
	latest map[int]timeseries.Series
}

func (f *fakeCurveAPI) GetCurve(ctx context.Context, name string) (*insight.Curve, error) {
	if id, ok := f.curves[name]; ok {
		return &insight.Curve{ID: id, Name: name}, nil
	}
	return nil, insight.ErrCurveNotFound
}

func (f *fakeCurveAPI) Search(ctx context.Context, query string) ([]insight.Curve, error) {
	return nil, nil
}

func (f *fakeCurveAPI) Data(ctx context.Context, curveID int, from, to time.Time) (timeseries.Series, error) {
	return f.data[curveID].Slice(from, to), nil
}

func (f *fakeCurveAPI) LatestData(ctx context.Context, curveID int) (timeseries.Series, error) {
	return f.latest[curveID], nil
}

// scriptProvider replays canned responses in order.
type scriptProvider struct {
	responses []*llm.Response
	calls     int
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool, opts *llm.ChatOptions) (*llm.Response, error) {
	if p.calls >= len(p.responses) {
		return nil, errors.New("script exhausted")
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptProvider) Ping(ctx context.Context) error { return nil }

func newTestServer(mkt *market.Service, asst *assistant.Service) *Server {
	srv := &Server{
		cfg: &config.Config{
			Insight: config.InsightConfig{ClientID: "abcdefghijkl"},
			LLM:     config.LLMConfig{OpenAIKey: "sk-test-0123456789"},
		},
		market:    mkt,
		assistant: asst,
		wsHub:     NewWSHub(),
	}
	srv.router = srv.buildRouter()
	return srv
}

func hourlySeries(start time.Time, values ...float64) timeseries.Series {
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Time: start.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return timeseries.New(points)
}

// dailyPattern builds days*24 hourly prices with a sinusoidal day shape
// and a small deterministic wiggle so returns are never constant.
func dailyPattern(start time.Time, days int) timeseries.Series {
	values := make([]float64, days*24)
	for i := range values {
		h := i % 24
		values[i] = 60 + 15*math.Sin(2*math.Pi*float64(h)/24) + 3*math.Sin(1.7*float64(i))
	}
	return hourlySeries(start, values...)
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["detail"]
}

// ════════════════════════════════════════════════════════════════════
// Health
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := newTestServer(market.NewService(&fakeCurveAPI{}), nil)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["insight"] != true {
		t.Error("insight should be reported available")
	}
	if body["assistant"] != false {
		t.Error("assistant should be reported unavailable")
	}
}

// ════════════════════════════════════════════════════════════════════
// European prices
// ════════════════════════════════════════════════════════════════════

func TestEuropePrices_RequiresDate(t *testing.T) {
	srv := newTestServer(market.NewService(&fakeCurveAPI{}), nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/europe/prices", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(decodeDetail(t, rec), "date") {
		t.Errorf("detail should mention date, got %q", decodeDetail(t, rec))
	}
}

func TestEuropePrices_InvalidDate(t *testing.T) {
	srv := newTestServer(market.NewService(&fakeCurveAPI{}), nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/europe/prices?date=01-02-2024", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEuropePrices_NoSession(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/europe/prices?date=2024-03-01", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestEuropePrices_Grid(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 24)
	for i := range values {
		values[i] = 50 + float64(i)
	}
	api := &fakeCurveAPI{
		curves: map[string]int{"pri ch spot ec00 €/mwh cet h f": 1},
		data:   map[int]timeseries.Series{1: hourlySeries(day, values...)},
	}
	srv := newTestServer(market.NewService(api), nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/europe/prices?date=2024-03-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var grid models.PriceGrid
	if err := json.Unmarshal(rec.Body.Bytes(), &grid); err != nil {
		t.Fatal(err)
	}
	if grid.Date != "2024-03-01" {
		t.Errorf("date = %q", grid.Date)
	}
	if grid.Run != market.DefaultRun {
		t.Errorf("run = %q, want %q", grid.Run, market.DefaultRun)
	}
	if len(grid.Hours) != 24 {
		t.Fatalf("got %d hour slots, want 24", len(grid.Hours))
	}
	if v := grid.Hours[3].Prices["CH"]; v == nil || *v != 53 {
		t.Errorf("CH hour 3 = %v, want 53", v)
	}
	// Every area except CH had no curve at all
	if len(grid.Missing) != len(models.Areas)-1 {
		t.Errorf("missing = %v", grid.Missing)
	}
	for _, m := range grid.Missing {
		if m == "CH" {
			t.Error("CH should not be listed as missing")
		}
		if m != strings.ToUpper(m) {
			t.Errorf("missing area %q should be uppercase", m)
		}
	}
}

func TestEuropePrices_CustomRun(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeCurveAPI{
		curves: map[string]int{"pri de spot ec12 €/mwh cet h f": 9},
		data:   map[int]timeseries.Series{9: hourlySeries(day, 40, 41, 42)},
	}
	srv := newTestServer(market.NewService(api), nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/europe/prices?date=2024-03-01&run=EC12", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var grid models.PriceGrid
	if err := json.Unmarshal(rec.Body.Bytes(), &grid); err != nil {
		t.Fatal(err)
	}
	if grid.Run != "EC12" {
		t.Errorf("run = %q, want EC12", grid.Run)
	}
	if v := grid.Hours[1].Prices["DE"]; v == nil || *v != 41 {
		t.Errorf("DE hour 1 = %v, want 41", v)
	}
}

// ════════════════════════════════════════════════════════════════════
// Swiss smart dashboard
// ════════════════════════════════════════════════════════════════════

func TestSwissSmart(t *testing.T) {
	// A past-dated forecast forces the trailing-window fallback, which
	// keeps the test independent of the wall clock.
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 48)
	for i := range values {
		values[i] = 100 - float64(i)
	}
	api := &fakeCurveAPI{
		curves: map[string]int{"pri ch spot ec00 €/mwh cet h f": 3},
		latest: map[int]timeseries.Series{3: hourlySeries(start, values...)},
	}
	srv := newTestServer(market.NewService(api), nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/dashboard/swiss-smart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var dash models.SmartDashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatal(err)
	}
	if dash.Analysis.MinPrice != 53 {
		t.Errorf("min price = %v, want 53", dash.Analysis.MinPrice)
	}
	if dash.ChartJS == nil || len(dash.ChartJS.Data.Labels) != 24 {
		t.Errorf("chart should have 24 labels, got %+v", dash.ChartJS)
	}
}

func TestSwissSmart_NoForecast(t *testing.T) {
	srv := newTestServer(market.NewService(&fakeCurveAPI{}), nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/dashboard/swiss-smart", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Chat
// ════════════════════════════════════════════════════════════════════

func TestChat_NotConfigured(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := doRequest(t, srv, http.MethodPost, "/v1/chat", models.ChatRequest{Message: "hi"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestChat_RequiresMessage(t *testing.T) {
	asst := assistant.NewService(&scriptProvider{}, nil, assistant.Config{})
	srv := newTestServer(nil, asst)

	rec := doRequest(t, srv, http.MethodPost, "/v1/chat", models.ChatRequest{Message: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChat_Turn(t *testing.T) {
	provider := &scriptProvider{responses: []*llm.Response{
		{Content: "Spot prices look calm today."},
	}}
	asst := assistant.NewService(provider, nil, assistant.Config{})
	srv := newTestServer(nil, asst)

	rec := doRequest(t, srv, http.MethodPost, "/v1/chat", models.ChatRequest{
		Message:   "how is the market?",
		SessionID: "sess-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var turn models.ChatTurn
	if err := json.Unmarshal(rec.Body.Bytes(), &turn); err != nil {
		t.Fatal(err)
	}
	if turn.TextContent != "Spot prices look calm today." {
		t.Errorf("text = %q", turn.TextContent)
	}
	if turn.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", turn.SessionID)
	}
}

// ════════════════════════════════════════════════════════════════════
// Volatility
// ════════════════════════════════════════════════════════════════════

func TestVolatility_UnknownArea(t *testing.T) {
	srv := newTestServer(market.NewService(&fakeCurveAPI{}), nil)

	rec := doRequest(t, srv, http.MethodPost, "/v1/volatility", VolatilityRequest{Area: "xx", Date: "2024-03-01"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVolatility_InvalidDate(t *testing.T) {
	srv := newTestServer(market.NewService(&fakeCurveAPI{}), nil)

	rec := doRequest(t, srv, http.MethodPost, "/v1/volatility", VolatilityRequest{Area: "de", Date: "yesterday"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVolatility_InsufficientData(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeCurveAPI{
		curves: map[string]int{"pri de spot €/mwh cet h a": 5},
		data:   map[int]timeseries.Series{5: dailyPattern(day, 1)},
	}
	srv := newTestServer(market.NewService(api), nil)

	rec := doRequest(t, srv, http.MethodPost, "/v1/volatility", VolatilityRequest{Area: "de", Date: "2024-03-01"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body.String())
	}
}

func TestVolatility_Report(t *testing.T) {
	queryDay := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	start := queryDay.AddDate(0, 0, -9)
	api := &fakeCurveAPI{
		curves: map[string]int{"pri de spot €/mwh cet h a": 5},
		data:   map[int]timeseries.Series{5: dailyPattern(start, 10)},
	}
	srv := newTestServer(market.NewService(api), nil)

	rec := doRequest(t, srv, http.MethodPost, "/v1/volatility", VolatilityRequest{Area: "DE", Date: "2024-03-10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var report models.VolatilityReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Area != "DE" {
		t.Errorf("area = %q, want DE", report.Area)
	}
	if report.Date != "2024-03-10" {
		t.Errorf("date = %q", report.Date)
	}
	switch report.Volatility.Level {
	case "low", "normal", "high":
	default:
		t.Errorf("level = %q", report.Volatility.Level)
	}
	if len(report.Volatility.ChartVolatility) == 0 {
		t.Error("volatility chart should not be empty")
	}
	if len(report.PriceAnomaly.ChartPrice) != len(report.Volatility.ChartVolatility) {
		t.Error("charts should cover the same hours")
	}
}

// ════════════════════════════════════════════════════════════════════
// Config keys
// ════════════════════════════════════════════════════════════════════

func TestConfigKeys(t *testing.T) {
	srv := newTestServer(nil, nil)

	rec := doRequest(t, srv, http.MethodGet, "/v1/config/keys", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Keys []config.KeyStatus `json:"keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(body.Keys))
	}
	for _, k := range body.Keys {
		if k.Configured && k.Masked == "" {
			t.Errorf("configured key %s should be masked, not empty", k.Name)
		}
		if strings.Contains(k.Masked, "abcdefghijkl") {
			t.Errorf("key %s leaked: %q", k.Name, k.Masked)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Error mapping
// ════════════════════════════════════════════════════════════════════

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{insight.ErrNotInitialized, http.StatusServiceUnavailable},
		{market.ErrUnknownArea, http.StatusBadRequest},
		{market.ErrCurveNotFound, http.StatusNotFound},
		{market.ErrNoData, http.StatusNotFound},
		{volatility.ErrInsufficientData, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, c.err)
		if rec.Code != c.want {
			t.Errorf("%v → %d, want %d", c.err, rec.Code, c.want)
		}
		if decodeDetail(t, rec) == "" {
			t.Errorf("%v should carry a detail message", c.err)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket hub
// ════════════════════════════════════════════════════════════════════

func TestWSHubBroadcast(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 4)}
	hub.Register(client)

	// Register is channel-based; wait until the hub has the client.
	deadline := time.After(time.Second)
	for hub.ClientCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("client never registered")
		case <-time.After(time.Millisecond):
		}
	}

	hub.Broadcast(WSMessage{Type: "prices", Data: "payload"})

	select {
	case msg := <-client.send:
		if msg.Type != "prices" {
			t.Errorf("type = %q, want prices", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached client")
	}

	hub.Unregister(client)
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("client never unregistered")
		case <-time.After(time.Millisecond):
		}
	}
}
