package emuhttp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
)

// Session binds the emulator-scoped operations to one remote instance.
// It owns only the identifier and a reference to the shared transport,
// never a cached copy of remote state; isolation is the server's
// contract, the client's job is only to detect violations.
type Session struct {
	ID        domain.SessionID
	CreatedAt time.Time

	transport ports.Transport
}

type sessionState struct {
	ID  string             `json:"id"`
	CPU domain.CPUSnapshot `json:"cpu"`
}

// ExecuteResult reports a multi-step execution. StepsExecuted may be
// less than requested when the program halts early; that is success.
type ExecuteResult struct {
	StepsExecuted int                `json:"steps_executed"`
	Halted        bool               `json:"halted"`
	FinalState    domain.CPUSnapshot `json:"final_state"`
}

// OpenSession creates a fresh remote emulator instance. The handle
// cannot exist without a successful create.
func OpenSession(ctx context.Context, transport ports.Transport) (*Session, error) {
	outcome := transport.Send(ctx, http.MethodPost, "/emulator", nil)
	if err := outcome.CoreErr("create session"); err != nil {
		return nil, err
	}

	var state sessionState
	if err := outcome.Decode(&state); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if state.ID == "" {
		return nil, domain.NewFailure(domain.FailureProtocol, "create session: response missing id")
	}

	return &Session{
		ID:        domain.SessionID(state.ID),
		CreatedAt: time.Now(),
		transport: transport,
	}, nil
}

// AttachSession wraps an already-created instance id without touching
// the service. Operations on a stale id surface as Application errors.
func AttachSession(transport ports.Transport, id domain.SessionID) *Session {
	return &Session{ID: id, transport: transport}
}

func (s *Session) path(suffix string) string {
	return "/emulator/" + url.PathEscape(string(s.ID)) + suffix
}

func (s *Session) State(ctx context.Context) (domain.CPUSnapshot, error) {
	outcome := s.transport.Send(ctx, http.MethodGet, s.path(""), nil)
	return decodeCPU(outcome, "get state")
}

func (s *Session) Reset(ctx context.Context) error {
	outcome := s.transport.Send(ctx, http.MethodPost, s.path("/reset"), nil)
	_, err := decodeCPU(outcome, "reset")
	return err
}

func (s *Session) Step(ctx context.Context) (domain.CPUSnapshot, error) {
	outcome := s.transport.Send(ctx, http.MethodPost, s.path("/step"), nil)
	return decodeCPU(outcome, "step")
}

func (s *Session) ExecuteN(ctx context.Context, steps int) (ExecuteResult, error) {
	if steps <= 0 {
		return ExecuteResult{}, domain.NewFailure(domain.FailureOutOfRange, "execute: steps %d must be positive", steps)
	}

	outcome := s.transport.Send(ctx, http.MethodPost, s.path("/execute"), map[string]any{"steps": steps})
	if err := outcome.CoreErr("execute"); err != nil {
		return ExecuteResult{}, err
	}

	var result ExecuteResult
	if err := outcome.Decode(&result); err != nil {
		return ExecuteResult{}, fmt.Errorf("execute: %w", err)
	}
	if result.StepsExecuted > steps {
		return ExecuteResult{}, domain.NewFailure(domain.FailureProtocol, "execute: server reported %d steps for a request of %d", result.StepsExecuted, steps)
	}

	return result, nil
}

// Load writes a program image at address. The region is validated
// against the 64KiB address space before the call is sent.
func (s *Session) Load(ctx context.Context, address uint16, data []byte) error {
	if err := domain.CheckMemoryRange(address, len(data)); err != nil {
		return fmt.Errorf("load program: %w", err)
	}

	body := map[string]any{"address": address, "data": toInts(data)}
	outcome := s.transport.Send(ctx, http.MethodPost, s.path("/program"), body)
	return outcome.CoreErr("load program")
}

// WriteMemory writes data bytes starting at address. A single byte goes
// out as {address, value}, a block as {address, data}; the service
// documents both forms.
func (s *Session) WriteMemory(ctx context.Context, address uint16, data []byte) error {
	if err := domain.CheckMemoryRange(address, len(data)); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}

	var body map[string]any
	if len(data) == 1 {
		body = map[string]any{"address": address, "value": data[0]}
	} else {
		body = map[string]any{"address": address, "data": toInts(data)}
	}

	outcome := s.transport.Send(ctx, http.MethodPost, s.path("/memory"), body)
	return outcome.CoreErr("write memory")
}

func (s *Session) WriteByte(ctx context.Context, address uint16, value byte) error {
	return s.WriteMemory(ctx, address, []byte{value})
}

// ReadMemory returns exactly length bytes at address or fails.
func (s *Session) ReadMemory(ctx context.Context, address uint16, length int) ([]byte, error) {
	if err := domain.CheckMemoryRange(address, length); err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}

	query := url.Values{}
	query.Set("address", strconv.Itoa(int(address)))
	query.Set("length", strconv.Itoa(length))

	outcome := s.transport.Send(ctx, http.MethodGet, s.path("/memory?"+query.Encode()), nil)
	if err := outcome.CoreErr("read memory"); err != nil {
		return nil, err
	}

	var payload struct {
		Address uint16 `json:"address"`
		Data    []int  `json:"data"`
	}
	if err := outcome.Decode(&payload); err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	if len(payload.Data) != length {
		return nil, domain.NewFailure(domain.FailureProtocol, "read memory: requested %d bytes at $%04X, got %d", length, address, len(payload.Data))
	}

	data := make([]byte, length)
	for i, v := range payload.Data {
		if v < 0 || v > 255 {
			return nil, domain.NewFailure(domain.FailureProtocol, "read memory: byte %d out of range at index %d", v, i)
		}
		data[i] = byte(v)
	}

	return data, nil
}

// SetResetVector points the 6502 reset vector at target.
func (s *Session) SetResetVector(ctx context.Context, target uint16) error {
	if err := s.WriteByte(ctx, 0xFFFC, byte(target&0xFF)); err != nil {
		return err
	}
	return s.WriteByte(ctx, 0xFFFD, byte(target>>8))
}

func (s *Session) Delete(ctx context.Context) error {
	outcome := s.transport.Send(ctx, http.MethodDelete, s.path(""), nil)
	return outcome.CoreErr("delete session")
}

// ListSessions returns the snapshots of every live instance the service
// reports.
func ListSessions(ctx context.Context, transport ports.Transport) ([]domain.CPUSnapshot, []domain.SessionID, error) {
	outcome := transport.Send(ctx, http.MethodGet, "/emulators", nil)
	if err := outcome.CoreErr("list sessions"); err != nil {
		return nil, nil, err
	}

	var states []sessionState
	if err := outcome.Decode(&states); err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}

	snapshots := make([]domain.CPUSnapshot, 0, len(states))
	ids := make([]domain.SessionID, 0, len(states))
	for _, state := range states {
		snapshots = append(snapshots, state.CPU)
		ids = append(ids, domain.SessionID(state.ID))
	}

	return snapshots, ids, nil
}

func decodeCPU(outcome domain.Outcome, operation string) (domain.CPUSnapshot, error) {
	if err := outcome.CoreErr(operation); err != nil {
		return domain.CPUSnapshot{}, err
	}

	var state sessionState
	if err := outcome.Decode(&state); err != nil {
		return domain.CPUSnapshot{}, fmt.Errorf("%s: %w", operation, err)
	}

	return state.CPU, nil
}

func toInts(data []byte) []int {
	ints := make([]int, len(data))
	for i, b := range data {
		ints[i] = int(b)
	}
	return ints
}
