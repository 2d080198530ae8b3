package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocaresume/vocaresume"
	"github.com/vocaresume/vocaresume/router"
)

const defaultSessionTTL = 30 * time.Minute

// errorResponse answers requests that could not be decoded or dispatched.
type errorResponse struct {
	Error *vocaresume.Error `json:"error"`
}

// inflightEntry tracks a cancellable in-flight route request for a session.
// token is assigned by the server; client request ids may repeat.
type inflightEntry struct {
	token  uint64
	cancel context.CancelFunc
}

// Server listens on a Unix domain socket for routing requests.
type Server struct {
	listener net.Listener
	sockPath string
	registry *prometheus.Registry
	metrics  *metrics
	sessions *sessions

	mu        sync.Mutex
	inflight  map[string]inflightEntry
	nextToken uint64
}

// NewServer creates a server whose session routers are built from cfg.
// Each session persists under <persistDir>/<session id> when persistDir is set.
func NewServer(sockPath string, cfg *vocaresume.Config, persistDir string) (*Server, error) {
	ttl := time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute
	return NewServerWithFactory(sockPath, configRouterFactory(cfg, persistDir), ttl)
}

// configRouterFactory builds session routers over the configured ladders.
func configRouterFactory(cfg *vocaresume.Config, persistDir string) RouterFactory {
	return func(ctx context.Context, sessionID string, opts ...router.Option) *router.Router {
		dir := ""
		if persistDir != "" {
			dir = filepath.Join(persistDir, sessionID)
		}
		return router.New(ctx, cfg, dir, opts...)
	}
}

// NewServerWithFactory creates a server with a custom RouterFactory.
func NewServerWithFactory(sockPath string, factory RouterFactory, sessionTTL time.Duration) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)

	return &Server{
		listener: listener,
		sockPath: sockPath,
		registry: reg,
		metrics:  m,
		sessions: newSessions(sessionTTL, factory, m),
		inflight: make(map[string]inflightEntry),
	}, nil
}

// MetricsHandler serves the server's Prometheus metrics.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Serve accepts connections and handles requests.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener, closes every session router, and removes the socket file.
func (s *Server) Close() {
	s.listener.Close()
	s.sessions.close()
	os.Remove(s.sockPath)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	if !scanner.Scan() {
		return
	}

	raw := scanner.Bytes()
	slog.Debug("request", "bytes", len(raw))

	// Check if this is a config request (has "action" field)
	var cfgReq vocaresume.ConfigRequest
	if err := json.Unmarshal(raw, &cfgReq); err == nil && cfgReq.Action != "" {
		s.writeResponse(conn, s.handleConfigRequest(&cfgReq))
		return
	}

	var req vocaresume.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Warn("invalid request", "error", err)
		s.writeResponse(conn, errorResponse{Error: &vocaresume.Error{
			Code:    "invalid_request",
			Message: err.Error(),
		}})
		return
	}

	switch req.Type {
	case vocaresume.TypeSession:
		s.writeResponse(conn, vocaresume.SessionResponse{SessionID: s.sessions.create(context.Background())})

	case vocaresume.TypeIngest:
		s.writeResponse(conn, s.handleIngest(&req))

	case vocaresume.TypeRoute:
		s.handleRoute(conn, &req)

	case vocaresume.TypeStats:
		s.writeResponse(conn, s.handleStats(&req))

	default:
		s.writeResponse(conn, errorResponse{Error: &vocaresume.Error{
			Code:    "unknown_type",
			Message: "unknown request type: " + req.Type,
		}})
	}
}

// maxRequestSize bounds one request line; ingested documents travel inline.
const maxRequestSize = 8 * 1024 * 1024

func (s *Server) lookup(sessionID string) (*router.Router, *vocaresume.Error) {
	if sessionID == "" {
		return nil, &vocaresume.Error{Code: "invalid_request", Message: "session_id is required"}
	}
	r, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, &vocaresume.Error{Code: "unknown_session", Message: "unknown or expired session: " + sessionID}
	}
	return r, nil
}

func (s *Server) handleIngest(req *vocaresume.Request) vocaresume.IngestResponse {
	r, rerr := s.lookup(req.SessionID)
	if rerr != nil {
		return vocaresume.IngestResponse{Error: rerr}
	}

	ctx := context.Background()
	switch req.DocType {
	case "resume":
		r.IngestResume(ctx, req.Text)
	case "job_description":
		r.IngestJobDescription(ctx, req.Text)
	default:
		return vocaresume.IngestResponse{Error: &vocaresume.Error{
			Code:    "invalid_request",
			Message: "doc_type must be resume or job_description",
		}}
	}
	return vocaresume.IngestResponse{OK: true}
}

func (s *Server) handleRoute(conn net.Conn, req *vocaresume.Request) {
	r, rerr := s.lookup(req.SessionID)
	if rerr != nil {
		s.writeResponse(conn, vocaresume.RouteResponse{
			RequestID:    req.RequestID,
			Alternatives: []vocaresume.Alternative{},
			Error:        rerr,
		})
		return
	}

	// Cancel any in-flight request for this session and create a new context.
	ctx, cancel := context.WithCancel(context.Background())
	sid := req.SessionID
	reqID := req.RequestID
	s.mu.Lock()
	if prev, ok := s.inflight[sid]; ok {
		prev.cancel()
	}
	s.nextToken++
	token := s.nextToken
	s.inflight[sid] = inflightEntry{token: token, cancel: cancel}
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if cur, ok := s.inflight[sid]; ok && cur.token == token {
			delete(s.inflight, sid)
		}
		s.mu.Unlock()
	}()

	start := time.Now()
	res := r.Route(ctx, req.Query, req.K)

	// The router counts superseded routes too; keep the counter in step with Stats.
	backend := r.RoutingBackend()
	if strings.TrimSpace(req.Query) != "" {
		s.metrics.routes.WithLabelValues(res.Label, string(backend)).Inc()
		s.metrics.routeDuration.Observe(time.Since(start).Seconds())
	}

	// If cancelled, skip writing; the client has already moved on.
	if ctx.Err() != nil {
		return
	}
	slog.Debug("routed", "session", sid, "request_id", reqID, "label", res.Label, "score", res.Score, "backend", backend)

	s.writeResponse(conn, res.Response(reqID, backend))
}

func (s *Server) handleStats(req *vocaresume.Request) vocaresume.StatsResponse {
	r, rerr := s.lookup(req.SessionID)
	if rerr != nil {
		return vocaresume.StatsResponse{Counts: map[string]int{}, Error: rerr}
	}
	return vocaresume.StatsResponse{
		Counts:  r.Stats(),
		Backend: string(r.RoutingBackend()),
	}
}

func (s *Server) handleConfigRequest(req *vocaresume.ConfigRequest) vocaresume.ConfigResponse {
	var resp vocaresume.ConfigResponse

	switch req.Action {
	case "get":
		cfg, err := vocaresume.LoadConfig()
		if err != nil {
			resp.Error = &vocaresume.Error{
				Code:    "config_error",
				Message: err.Error(),
			}
		} else {
			resp.Config = cfg
		}

	case "defaults":
		resp.Config = vocaresume.DefaultConfig()

	case "validate":
		cfg, err := vocaresume.LoadConfig()
		if err != nil {
			resp.Error = &vocaresume.Error{
				Code:    "config_error",
				Message: err.Error(),
			}
		} else {
			resp.Warnings = vocaresume.ValidateConfig(cfg)
		}

	case "tasks":
		resp.Tasks = vocaresume.DefaultTasks()

	default:
		resp.Error = &vocaresume.Error{
			Code:    "unknown_action",
			Message: "unknown config action: " + req.Action,
		}
	}
	return resp
}

func (s *Server) writeResponse(conn net.Conn, resp any) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	slog.Debug("response", "data", string(data))

	conn.Write(append(data, '\n'))
}
