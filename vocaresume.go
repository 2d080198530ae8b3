// Package vocaresume defines the request/response types for the vocaresume daemon.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line.
package vocaresume

// Message types carried in Request.Type.
const (
	TypeSession = "session"
	TypeIngest  = "ingest"
	TypeRoute   = "route"
	TypeStats   = "stats"
)

// Request is sent from a client (UI layer or task runner) to the daemon.
type Request struct {
	// Type selects the operation: "session", "ingest", "route" or "stats".
	Type string `json:"type"`
	// RequestID is a per-session incrementing identifier assigned by the client.
	// The daemon echoes it back in route responses for ordering.
	RequestID int `json:"request_id,omitempty"`
	// SessionID identifies the user session that owns the router.
	SessionID string `json:"session_id,omitempty"`
	// Query is the free-form routing query.
	Query string `json:"query,omitempty"`
	// K is the number of neighbours to search. Zero means the configured default.
	K int `json:"k,omitempty"`
	// DocType is "resume" or "job_description" for ingest requests.
	DocType string `json:"doc_type,omitempty"`
	// Text is the plain-text document for ingest requests.
	Text string `json:"text,omitempty"`
}

// Alternative is a non-selected task with its similarity score.
type Alternative struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RouteResponse is the daemon's answer to a route request.
type RouteResponse struct {
	// RequestID is echoed from the request for ordering on the client side.
	RequestID int `json:"request_id"`
	// TaskIndex is the selected task (0=analysis, 1=interview, 2=suggestions, 3=job_fit).
	TaskIndex int `json:"task_index"`
	// Label is the selected task label.
	Label string `json:"label"`
	// Score is the confidence of the selection (0.0 to 1.0).
	Score float64 `json:"score"`
	// Alternatives lists the other candidate tasks, sorted by score descending.
	Alternatives []Alternative `json:"alternatives"`
	// Backend is "vector" or "keyword" at the time the response was produced.
	Backend string `json:"backend"`
	// Error is set when the daemon cannot fulfill the request.
	Error *Error `json:"error,omitempty"`
}

// SessionResponse carries a freshly allocated session id.
type SessionResponse struct {
	SessionID string `json:"session_id,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

// IngestResponse acknowledges an ingest request.
type IngestResponse struct {
	OK    bool   `json:"ok"`
	Error *Error `json:"error,omitempty"`
}

// StatsResponse reports per-label route counts for a session.
type StatsResponse struct {
	Counts  map[string]int `json:"counts"`
	Backend string         `json:"backend"`
	Error   *Error         `json:"error,omitempty"`
}

// Error describes a daemon-side error returned to the client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "invalid_request", "unknown_type").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ConfigRequest is sent from a client for configuration operations.
type ConfigRequest struct {
	// Action is the config operation: "get", "defaults", "validate" or "tasks".
	Action string `json:"action"`
}

// ConfigResponse is sent from the daemon in response to a ConfigRequest.
type ConfigResponse struct {
	// Config is the current configuration (for "get" and "defaults" actions).
	Config *Config `json:"config,omitempty"`
	// Tasks is the downstream task catalogue (for the "tasks" action).
	Tasks []TaskSpec `json:"tasks,omitempty"`
	// Warnings contains configuration warnings (for "validate" action).
	Warnings []string `json:"warnings,omitempty"`
	// Error is set when the operation fails.
	Error *Error `json:"error,omitempty"`
}
