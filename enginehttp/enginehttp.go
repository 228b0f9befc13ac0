// Package enginehttp exposes a running jackd engine's agent/team/schedule
// state over a small read-only HTTP surface (§11 domain stack: an optional
// debug/introspection endpoint, traced with otelhttp the way the teacher
// instruments its own HTTP handlers), for the jackd inspect CLI and any
// external dashboard to poll.
package enginehttp

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jackagents/jackgo/agent"
	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/store"
)

// AgentSource supplies the live agents/teams a Server reports on; jackd's
// run command implements this over the engine's own spawn bookkeeping
// rather than exposing the engine type itself, keeping the HTTP surface
// decoupled from engine internals.
type AgentSource interface {
	Agents() map[string]*agent.Agent
	Teams() map[string]*agent.Team
}

// Server is a read-only HTTP front for a running engine's telemetry.
type Server struct {
	nodeName string
	source   AgentSource
	logger   core.Logger
	clockUs  func() int64
}

// NewServer builds a Server. clockUs supplies the timestamp stamped onto
// each snapshot; jackd wires the engine's own clock so reported times
// line up with its internal tick accounting.
func NewServer(nodeName string, source AgentSource, logger core.Logger, clockUs func() int64) *Server {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Server{nodeName: nodeName, source: source, logger: logger, clockUs: clockUs}
}

// Handler returns the traced http.Handler to mount under ListenAndServe,
// wrapping every route with otelhttp so requests into a running jackd
// process show up in the same trace pipeline as its agents' work.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/agents", s.handleAgents)
	mux.HandleFunc("/agents/", s.handleAgentByName)
	return otelhttp.NewHandler(mux, "jackd."+s.nodeName)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0)
	for name := range s.source.Agents() {
		names = append(names, name)
	}
	for name := range s.source.Teams() {
		names = append(names, name)
	}
	s.writeJSON(w, names)
}

func (s *Server) handleAgentByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/agents/"):]
	if name == "" {
		http.NotFound(w, r)
		return
	}

	now := int64(0)
	if s.clockUs != nil {
		now = s.clockUs()
	}

	if a, ok := s.source.Agents()[name]; ok {
		snap := store.Capture(s.nodeName, a, nil, now)
		s.writeJSON(w, snap)
		return
	}
	if t, ok := s.source.Teams()[name]; ok {
		snap := store.Capture(s.nodeName, t.Agent, t, now)
		s.writeJSON(w, snap)
		return
	}
	http.Error(w, "unknown agent or team: "+name, http.StatusNotFound)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("enginehttp: encode response failed", map[string]interface{}{"error": err.Error()})
	}
}
