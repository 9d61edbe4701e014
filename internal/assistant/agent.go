// Package assistant hosts the tool-using conversational agent: one agent
// per conversation id with retained memory, a bounded session store, and
// the data/search/news/finalize tools the model can call.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridsage/gridsage/internal/llm"
)

const systemPrompt = `You are GridSage, an energy market analyst assistant.
You answer questions about European electricity and gas prices using the
tools available to you. Fetch real data with fetch_energy_data before making
quantitative claims. When you are done, call final_answer with your full
textual explanation and, when a chart helps, a chart.js payload in
chart_data. Dates are naive CET wall-clock times.`

// FinalAnswer is the terminal payload of one turn.
type FinalAnswer struct {
	TextContent string `json:"text_content"`
	ChartData   any    `json:"chart_data"`
}

// NewFinalAnswer packages a text explanation with an optional chart.
func NewFinalAnswer(text string, chart any) FinalAnswer {
	return FinalAnswer{TextContent: text, ChartData: chart}
}

// Agent is a stateful conversational agent. Memory persists across turns
// and is never reset mid-session. Not safe for concurrent turns; the
// session store serializes access.
type Agent struct {
	provider llm.Provider
	registry *llm.ToolRegistry
	tools    []llm.Tool
	memory   []llm.Message
	opts     *llm.ChatOptions
	maxIter  int

	// captured final_answer payload for the turn in flight
	final *FinalAnswer
}

// NewAgent builds an agent with the given tools plus the finalize tool.
func NewAgent(provider llm.Provider, tools []llm.Tool, opts *llm.ChatOptions) *Agent {
	a := &Agent{
		provider: provider,
		opts:     opts,
		maxIter:  10,
	}

	registry := llm.NewToolRegistry()
	all := make([]llm.Tool, 0, len(tools)+1)
	for _, t := range tools {
		registry.Register(t)
		all = append(all, t)
	}

	finalize := llm.Tool{
		Name:        "final_answer",
		Description: "Provides the final answer to the user, with text and an optional chart.",
		Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
			"text_content": llm.StringProp("The complete textual explanation of the answer."),
			"chart_data":   llm.ObjectProp("A chart.js payload (keys 'type', 'data', ...) or omitted if no chart is needed."),
		}, "text_content"),
		Handler: a.handleFinalAnswer,
	}
	registry.Register(finalize)
	all = append(all, finalize)

	a.registry = registry
	a.tools = all
	return a
}

func (a *Agent) handleFinalAnswer(ctx context.Context, args json.RawMessage) (string, error) {
	var in FinalAnswer
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("final_answer arguments: %w", err)
	}
	a.final = &in
	return "final answer recorded", nil
}

// Process runs one turn. The return value is either a FinalAnswer (the
// model called the finalize tool) or the model's raw text reply.
func (a *Agent) Process(ctx context.Context, message string) (any, error) {
	a.final = nil

	messages := make([]llm.Message, 0, len(a.memory)+2)
	messages = append(messages, llm.SystemMessage(systemPrompt))
	messages = append(messages, a.memory...)
	messages = append(messages, llm.UserMessage(message))

	resp, finalMsgs, err := llm.RunToolLoop(ctx, a.provider, a.registry, messages, a.tools, a.opts, a.maxIter)
	if err != nil {
		return nil, err
	}

	// Retain everything after the system prompt so the next turn sees the
	// full conversation including tool exchanges.
	a.memory = append(a.memory[:0], finalMsgs[1:]...)
	if resp.Content != "" {
		a.memory = append(a.memory, llm.AssistantMessage(resp.Content))
	}

	if a.final != nil {
		return *a.final, nil
	}
	return resp.Content, nil
}

// MemorySize returns the number of retained messages.
func (a *Agent) MemorySize() int { return len(a.memory) }
