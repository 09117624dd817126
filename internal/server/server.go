package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sawdustofmind/cricket-live-scoring/internal/hub"
	"github.com/sawdustofmind/cricket-live-scoring/internal/log"
	"github.com/sawdustofmind/cricket-live-scoring/internal/mirror"
	"github.com/sawdustofmind/cricket-live-scoring/internal/models"
	"github.com/sawdustofmind/cricket-live-scoring/internal/store"
)

// Config carries the gateway's tunables. Defaults() gives values suitable
// for interactive scoring traffic.
type Config struct {
	PingInterval  time.Duration // how often the server pings each viewer
	PongTimeout   time.Duration // max silence before a viewer is dropped
	WriteTimeout  time.Duration // deadline for a single outbound frame
	MaxFrameSize  int64         // max inbound frame, bytes
	AllowedOrigin string        // empty allows any origin
}

func Defaults() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongTimeout:  75 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxFrameSize: 64 * 1024,
	}
}

// Server wires the REST surface and the WebSocket endpoint to the match
// store and the connection hub.
type Server struct {
	cfg    Config
	store  *store.Store
	hub    *hub.Hub
	mirror *mirror.Mirror
}

func New(cfg Config, st *store.Store, h *hub.Hub, mir *mirror.Mirror) *Server {
	return &Server{cfg: cfg, store: st, hub: h, mirror: mir}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/heartbeat", s.heartbeatHandler).Methods("GET", "POST")
	r.HandleFunc("/sessions", s.createMatchHandler).Methods("POST")
	r.HandleFunc("/sessions", s.listMatchesHandler).Methods("GET")
	r.HandleFunc("/sessions/{id}", s.getMatchHandler).Methods("GET")
	r.HandleFunc("/sessions/{id}/status", s.setStatusHandler).Methods("PUT")
	r.HandleFunc("/sessions/{id}/admin", s.setAdminHandler).Methods("PUT")
	r.HandleFunc("/ws/{matchId}", s.websocketHandler)
	return r
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) heartbeatHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	log.Debug("Heartbeat received")
}

type createMatchRequest struct {
	TeamA      string `json:"team_a"`
	TeamB      string `json:"team_b"`
	Format     string `json:"format"`
	OversLimit int    `json:"overs_limit"`
}

func (s *Server) createMatchHandler(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("Failed to parse JSON", zap.Error(err))
		http.Error(w, fmt.Sprintf("Failed to parse JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.TeamA == "" || req.TeamB == "" || req.OversLimit <= 0 {
		http.Error(w, "team_a, team_b and a positive overs_limit are required", http.StatusBadRequest)
		return
	}

	m := s.store.Create(req.TeamA, req.TeamB, req.Format, req.OversLimit)
	s.mirror.Publish(m)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listMatchesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) getMatchHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, ok := s.store.Get(id)
	if !ok {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type setStatusRequest struct {
	Status models.MatchStatus `json:"status"`
}

func (s *Server) setStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse JSON: %v", err), http.StatusBadRequest)
		return
	}

	m, err := s.store.SetStatus(id, req.Status)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.broadcastUpdate(m)
	writeJSON(w, http.StatusOK, m)
}

type setAdminRequest struct {
	AdminID string `json:"admin_id"`
}

func (s *Server) setAdminHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req setAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse JSON: %v", err), http.StatusBadRequest)
		return
	}
	if req.AdminID == "" {
		http.Error(w, "admin_id is required", http.StatusBadRequest)
		return
	}

	m, err := s.store.SetAdmin(id, req.AdminID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	s.broadcastUpdate(m)
	writeJSON(w, http.StatusOK, m)
}

// broadcastUpdate fans the new canonical state out to every viewer of the
// match and mirrors it to Redis.
func (s *Server) broadcastUpdate(m *models.Match) {
	payload, err := json.Marshal(models.UpdateMessage(m))
	if err != nil {
		log.Error("Failed to marshal update", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	s.hub.Broadcast(m.ID, payload)
	s.mirror.Publish(m)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrMatchCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error("Unexpected store error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to write response", zap.Error(err))
	}
}
