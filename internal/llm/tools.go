package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Tool represents a function the model may call.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
	Handler     ToolHandler `json:"-"`
}

// ToolHandler executes a tool call and returns a string result.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// JSONSchema represents a JSON Schema definition for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Default     any                    `json:"default,omitempty"`
}

// ObjectSchema creates a JSON Schema for an object with the given properties.
func ObjectSchema(desc string, props map[string]*JSONSchema, required ...string) *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: desc,
		Properties:  props,
		Required:    required,
	}
}

// StringProp creates a JSON Schema for a string property.
func StringProp(desc string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: desc}
}

// IntProp creates a JSON Schema for an integer property.
func IntProp(desc string) *JSONSchema {
	return &JSONSchema{Type: "integer", Description: desc}
}

// ObjectProp creates a JSON Schema for a free-form object property.
func ObjectProp(desc string) *JSONSchema {
	return &JSONSchema{Type: "object", Description: desc}
}

// ToolRegistry manages available tools and executes tool calls.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty tool registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Overwrites if already present.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// RegisterFunc registers a tool with an inline handler.
func (r *ToolRegistry) RegisterFunc(name, desc string, params *JSONSchema, handler ToolHandler) {
	r.Register(Tool{
		Name:        name,
		Description: desc,
		Parameters:  params,
		Handler:     handler,
	})
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools as a slice.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	return result
}

// Execute runs a tool call and returns the string result.
func (r *ToolRegistry) Execute(ctx context.Context, call ToolCall) (string, error) {
	tool, ok := r.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}
	if tool.Handler == nil {
		return "", fmt.Errorf("llm: tool %q has no handler", call.Name)
	}
	return tool.Handler(ctx, call.Arguments)
}

// RunToolLoop executes the tool-calling loop:
// 1. Send messages to the model
// 2. If the model returns tool calls, execute them in order
// 3. Append tool results to messages
// 4. Repeat until the model returns a text response or maxIterations is reached
//
// Tool handler errors are fed back to the model as error text, not returned.
func RunToolLoop(ctx context.Context, provider Provider, registry *ToolRegistry,
	messages []Message, tools []Tool, opts *ChatOptions, maxIterations int) (*Response, []Message, error) {

	if maxIterations <= 0 {
		maxIterations = 10
	}

	// Work with a copy of messages to avoid mutating the caller's slice.
	msgs := make([]Message, len(messages))
	copy(msgs, messages)

	for i := 0; i < maxIterations; i++ {
		resp, err := provider.Chat(ctx, msgs, tools, opts)
		if err != nil {
			return nil, msgs, err
		}

		if !resp.HasToolCalls() {
			return resp, msgs, nil
		}

		msgs = append(msgs, AssistantToolCallMessage(resp.ToolCalls))

		for _, call := range resp.ToolCalls {
			output, err := registry.Execute(ctx, call)
			if err != nil {
				output = fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
			}
			msgs = append(msgs, ToolResultMessage(call.ID, call.Name, output))
		}
	}

	return nil, msgs, fmt.Errorf("llm: tool loop exceeded %d iterations", maxIterations)
}
