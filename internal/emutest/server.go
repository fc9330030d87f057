// Package emutest runs an in-process stand-in for the emulator service.
// It implements the JSON envelope, the core emulator endpoints backed by
// a minimal 6502 core, and leaves enterprise endpoints unregistered so
// they answer 404 exactly like a deployment that has not built them.
package emutest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	machines map[string]*machine

	adcBroken  bool
	authToken  string
	noMetrics  bool
	coreAbsent bool
}

type Option func(*Server)

// WithADCBroken makes the fake core mis-add by one, so semantic
// verification has a genuine bug to find.
func WithADCBroken() Option {
	return func(s *Server) { s.adcBroken = true }
}

// WithAuthToken registers /auth/login and /auth/me, simulating a
// deployment that has built the auth endpoints.
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

// WithoutMetrics leaves /metrics unregistered.
func WithoutMetrics() Option {
	return func(s *Server) { s.noMetrics = true }
}

// WithoutCore leaves every emulator endpoint unregistered, simulating a
// broken deployment where even core operations 404.
func WithoutCore() Option {
	return func(s *Server) { s.coreAbsent = true }
}

func NewServer(opts ...Option) *Server {
	s := &Server{machines: map[string]*machine{}}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()

	if !s.coreAbsent {
		mux.HandleFunc("POST /emulator", s.handleCreate)
		mux.HandleFunc("GET /emulators", s.handleList)
		mux.HandleFunc("GET /emulator/{id}", s.handleState)
		mux.HandleFunc("DELETE /emulator/{id}", s.handleDelete)
		mux.HandleFunc("POST /emulator/{id}/reset", s.handleReset)
		mux.HandleFunc("POST /emulator/{id}/step", s.handleStep)
		mux.HandleFunc("POST /emulator/{id}/execute", s.handleExecute)
		mux.HandleFunc("POST /emulator/{id}/program", s.handleLoad)
		mux.HandleFunc("GET /emulator/{id}/memory", s.handleReadMemory)
		mux.HandleFunc("POST /emulator/{id}/memory", s.handleWriteMemory)
	}

	if !s.noMetrics {
		mux.HandleFunc("GET /metrics", s.handleMetrics)
	}

	if s.authToken != "" {
		mux.HandleFunc("POST /auth/login", s.handleLogin)
		mux.HandleFunc("GET /auth/me", s.handleMe)
	}

	s.Server = httptest.NewServer(mux)
	return s
}

// SessionCount reports how many instances are currently live.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.machines)
}

type cpuState struct {
	A      byte   `json:"a"`
	X      byte   `json:"x"`
	Y      byte   `json:"y"`
	PC     uint16 `json:"pc"`
	SP     byte   `json:"sp"`
	Status byte   `json:"status"`
	Cycles uint64 `json:"cycles"`
	Halted bool   `json:"halted"`
}

type emulatorState struct {
	ID  string   `json:"id"`
	CPU cpuState `json:"cpu"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeFailure(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

func (s *Server) lookup(r *http.Request) (*machine, string, bool) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[id]
	return m, id, ok
}

func (s *Server) handleCreate(w http.ResponseWriter, _ *http.Request) {
	id := uuid.NewString()
	m := newMachine(s.adcBroken)

	s.mu.Lock()
	s.machines[id] = m
	s.mu.Unlock()

	writeSuccess(w, emulatorState{ID: id, CPU: m.state()})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	states := make([]emulatorState, 0, len(s.machines))
	for id, m := range s.machines {
		m.mu.Lock()
		states = append(states, emulatorState{ID: id, CPU: m.state()})
		m.mu.Unlock()
	}
	s.mu.Unlock()

	writeSuccess(w, states)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}

	m.mu.Lock()
	state := m.state()
	m.mu.Unlock()

	writeSuccess(w, emulatorState{ID: id, CPU: state})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	_, ok := s.machines[id]
	delete(s.machines, id)
	s.mu.Unlock()

	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}
	writeSuccess(w, fmt.Sprintf("Emulator %s deleted", id))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}
	m.mu.Lock()
	m.reset()
	state := m.state()
	m.mu.Unlock()

	writeSuccess(w, emulatorState{ID: id, CPU: state})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	m, id, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}
	m.mu.Lock()
	m.step()
	state := m.state()
	m.mu.Unlock()

	writeSuccess(w, emulatorState{ID: id, CPU: state})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	m, _, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}

	var req struct {
		Steps int `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "invalid execute request")
		return
	}

	m.mu.Lock()
	executed := 0
	for i := 0; i < req.Steps; i++ {
		if m.halted {
			break
		}
		m.step()
		executed++
	}
	halted := m.halted
	final := m.state()
	m.mu.Unlock()

	writeSuccess(w, map[string]any{
		"steps_executed": executed,
		"halted":         halted,
		"final_state":    final,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	m, _, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}

	var req struct {
		Address uint16 `json:"address"`
		Data    []int  `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "invalid program request")
		return
	}

	m.mu.Lock()
	for i, b := range req.Data {
		m.mem[req.Address+uint16(i)] = byte(b)
	}
	m.mu.Unlock()

	writeSuccess(w, fmt.Sprintf("Loaded %d bytes at address $%04X", len(req.Data), req.Address))
}

func (s *Server) handleReadMemory(w http.ResponseWriter, r *http.Request) {
	m, _, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}

	address, err := strconv.Atoi(r.URL.Query().Get("address"))
	if err != nil || address < 0 || address > 0xFFFF {
		writeFailure(w, "invalid address")
		return
	}
	length := 1
	if raw := r.URL.Query().Get("length"); raw != "" {
		length, err = strconv.Atoi(raw)
		if err != nil || length < 1 {
			writeFailure(w, "invalid length")
			return
		}
	}

	m.mu.Lock()
	data := make([]int, 0, length)
	for i := 0; i < length; i++ {
		data = append(data, int(m.mem[uint16(address+i)]))
	}
	m.mu.Unlock()

	writeSuccess(w, map[string]any{"address": address, "data": data})
}

func (s *Server) handleWriteMemory(w http.ResponseWriter, r *http.Request) {
	m, _, ok := s.lookup(r)
	if !ok {
		writeFailure(w, "Emulator not found")
		return
	}

	var req struct {
		Address uint16 `json:"address"`
		Value   *int   `json:"value"`
		Data    []int  `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "invalid memory request")
		return
	}

	m.mu.Lock()
	switch {
	case req.Value != nil:
		m.mem[req.Address] = byte(*req.Value)
	case len(req.Data) > 0:
		for i, b := range req.Data {
			m.mem[req.Address+uint16(i)] = byte(b)
		}
	default:
		m.mu.Unlock()
		writeFailure(w, "memory request needs value or data")
		return
	}
	m.mu.Unlock()

	writeSuccess(w, fmt.Sprintf("Memory written at $%04X", req.Address))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	active := len(s.machines)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP emulator_instances_active Number of live emulator instances.\n")
	fmt.Fprintf(w, "# TYPE emulator_instances_active gauge\n")
	fmt.Fprintf(w, "emulator_instances_active %d\n", active)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeFailure(w, "invalid credentials")
		return
	}

	writeSuccess(w, map[string]any{
		"token": s.authToken,
		"user":  map[string]any{"username": req.Username},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.authToken {
		writeFailure(w, "missing or invalid token")
		return
	}
	writeSuccess(w, map[string]any{"username": "admin"})
}
