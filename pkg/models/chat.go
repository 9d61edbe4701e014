package models

// ChatRequest is the body of a chat turn. SessionID may be empty on the
// first turn; the server then assigns one.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatTurn is the assistant's reply to one turn. ChartData is a chart.js
// payload when the assistant attached one, nil otherwise.
type ChatTurn struct {
	TextContent string `json:"text_content"`
	ChartData   any    `json:"chart_data"`
	SessionID   string `json:"session_id"`
}
