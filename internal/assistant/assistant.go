package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridsage/gridsage/internal/datafeed"
	"github.com/gridsage/gridsage/internal/llm"
	"github.com/gridsage/gridsage/internal/market"
	"github.com/gridsage/gridsage/pkg/models"
)

// Config sizes the session store.
type Config struct {
	SessionCapacity int
	SessionTTL      time.Duration
	ChatOptions     *llm.ChatOptions
}

// Service runs chat turns against per-session agents.
type Service struct {
	store *Store
}

// NewService wires the assistant. marketSvc may be nil when provider
// credentials are missing; the data tool then degrades to an in-band
// error object instead of failing the whole assistant.
func NewService(provider llm.Provider, marketSvc *market.Service, cfg Config) *Service {
	if cfg.SessionCapacity <= 0 {
		cfg.SessionCapacity = 256
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	search := datafeed.NewWebSearch()
	news := datafeed.NewNews()
	tools := []llm.Tool{
		FetchEnergyDataTool(marketSvc),
		WebSearchTool(search),
		EnergyNewsTool(news),
	}

	factory := func() *Agent {
		return NewAgent(provider, tools, cfg.ChatOptions)
	}
	return &Service{
		store: NewStore(cfg.SessionCapacity, cfg.SessionTTL, factory),
	}
}

// Run executes one chat turn. A missing session id gets a fresh UUID,
// echoed back so the client can continue the conversation. Agent errors
// come back as a normal turn payload, not an HTTP failure.
func (s *Service) Run(ctx context.Context, message, sessionID string) models.ChatTurn {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := s.store.Acquire(sessionID)
	sess.Lock()
	defer sess.Unlock()

	out, err := sess.Agent.Process(ctx, message)
	if err != nil {
		return models.ChatTurn{
			TextContent: fmt.Sprintf("agent error: %v", err),
			ChartData:   nil,
			SessionID:   sessionID,
		}
	}

	switch v := out.(type) {
	case FinalAnswer:
		return models.ChatTurn{
			TextContent: v.TextContent,
			ChartData:   CleanForJSON(v.ChartData),
			SessionID:   sessionID,
		}
	default:
		return models.ChatTurn{
			TextContent: fmt.Sprintf("%v", v),
			ChartData:   nil,
			SessionID:   sessionID,
		}
	}
}

// EndSession tears down a conversation explicitly.
func (s *Service) EndSession(sessionID string) {
	s.store.Remove(sessionID)
}

// Sessions reports the number of live conversations.
func (s *Service) Sessions() int {
	return s.store.Len()
}
