package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/six502/emuctl/internal/adapters/emuhttp"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
)

// maxStepsToHalt bounds every run-to-halt loop so a broken emulator
// cannot hang an exercise.
const maxStepsToHalt = 200

// Verifier drives the program catalogue against fresh sessions and
// asserts the documented 6502 post-conditions after each step. A
// mismatch here is always a genuine bug, never an absent feature.
type Verifier struct {
	transport ports.Transport
	registry  *Registry
}

func NewVerifier(transport ports.Transport, registry *Registry) *Verifier {
	return &Verifier{transport: transport, registry: registry}
}

type verifyCheck struct {
	name string
	run  func(ctx context.Context) error
}

func (v *Verifier) Run(ctx context.Context, report *domain.Report) error {
	checks := []verifyCheck{
		{"verify/arithmetic-steps", v.checkArithmeticSteps},
		{"verify/simple-add", v.checkSimpleAdd},
		{"verify/countdown-loop", v.checkCountdownLoop},
		{"verify/count-up-loop", v.checkCountUpLoop},
		{"verify/memory-copy", v.checkMemoryCopy},
		{"verify/memory-roundtrip", v.checkMemoryRoundtrip},
		{"verify/session-isolation", v.checkSessionIsolation},
		{"verify/delete-idempotence", v.checkDeleteIdempotence},
	}

	for _, check := range checks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRunAborted, err)
		}

		entry := domain.ReportEntry{Feature: check.name, Attempted: true, Verdict: domain.VerdictPass}
		if err := check.run(ctx); err != nil {
			entry.Verdict = domain.VerdictFail
			entry.Detail = err.Error()
		}
		report.Add(entry)
	}

	return nil
}

// withSession opens a fresh tracked session, runs fn, and deletes the
// session afterwards. Delete failures are left to the registry cleanup.
func (v *Verifier) withSession(ctx context.Context, fn func(*emuhttp.Session) error) error {
	session, err := emuhttp.OpenSession(ctx, v.transport)
	if err != nil {
		return err
	}
	if err := v.registry.Add(session); err != nil {
		return err
	}

	runErr := fn(session)

	if err := session.Delete(ctx); err == nil {
		v.registry.Remove(session.ID)
	}

	return runErr
}

func (v *Verifier) loadAndReset(ctx context.Context, session *emuhttp.Session, program Program) error {
	if err := session.Load(ctx, LoadAddress, program.Bytes); err != nil {
		return err
	}
	if err := session.SetResetVector(ctx, LoadAddress); err != nil {
		return err
	}
	return session.Reset(ctx)
}

func (v *Verifier) runToHalt(ctx context.Context, session *emuhttp.Session, program Program) (domain.CPUSnapshot, error) {
	if err := v.loadAndReset(ctx, session, program); err != nil {
		return domain.CPUSnapshot{}, err
	}

	result, err := session.ExecuteN(ctx, maxStepsToHalt)
	if err != nil {
		return domain.CPUSnapshot{}, err
	}
	if !result.Halted {
		return domain.CPUSnapshot{}, mismatch("program %s did not halt within %d steps", program.Name, maxStepsToHalt)
	}

	return result.FinalState, nil
}

// checkArithmeticSteps single-steps LDA/CLC/ADC/STA/BRK and checks the
// accumulator, the arithmetic flags, and that the cycle counter moves
// after every instruction.
func (v *Verifier) checkArithmeticSteps(ctx context.Context) error {
	program, _ := ProgramByName("arithmetic")

	return v.withSession(ctx, func(session *emuhttp.Session) error {
		if err := v.loadAndReset(ctx, session, program); err != nil {
			return err
		}

		previous, err := session.State(ctx)
		if err != nil {
			return err
		}

		afterLDA, err := v.stepExpectProgress(ctx, session, &previous)
		if err != nil {
			return err
		}
		if afterLDA.A != 0x10 {
			return mismatch("after LDA #$10: expected A=$10, got A=$%02X", afterLDA.A)
		}

		afterCLC, err := v.stepExpectProgress(ctx, session, &previous)
		if err != nil {
			return err
		}
		if afterCLC.Carry() {
			return mismatch("after CLC: carry flag still set")
		}

		afterADC, err := v.stepExpectProgress(ctx, session, &previous)
		if err != nil {
			return err
		}
		if afterADC.A != 0x15 {
			return mismatch("after ADC #$05: expected A=$15, got A=$%02X", afterADC.A)
		}
		if afterADC.Carry() || afterADC.Zero() || afterADC.Negative() {
			return mismatch("after ADC #$05: expected C/Z/N clear, got P=$%02X", afterADC.Status)
		}

		if _, err := v.stepExpectProgress(ctx, session, &previous); err != nil {
			return err
		}

		afterBRK, err := v.stepExpectProgress(ctx, session, &previous)
		if err != nil {
			return err
		}
		if !afterBRK.Halted {
			return mismatch("after BRK: expected halted state")
		}

		stored, err := session.ReadMemory(ctx, 0x0000, 1)
		if err != nil {
			return err
		}
		if stored[0] != 0x15 {
			return mismatch("after STA $00: expected mem[$0000]=$15, got $%02X", stored[0])
		}

		return nil
	})
}

func (v *Verifier) stepExpectProgress(ctx context.Context, session *emuhttp.Session, previous *domain.CPUSnapshot) (domain.CPUSnapshot, error) {
	snapshot, err := session.Step(ctx)
	if err != nil {
		return domain.CPUSnapshot{}, err
	}
	if snapshot.Cycles <= previous.Cycles {
		return domain.CPUSnapshot{}, mismatch("cycle counter did not advance: %d -> %d", previous.Cycles, snapshot.Cycles)
	}
	*previous = snapshot
	return snapshot, nil
}

func (v *Verifier) checkSimpleAdd(ctx context.Context) error {
	program, _ := ProgramByName("simple-add")

	return v.withSession(ctx, func(session *emuhttp.Session) error {
		if err := v.loadAndReset(ctx, session, program); err != nil {
			return err
		}

		result, err := session.ExecuteN(ctx, 10)
		if err != nil {
			return err
		}
		if !result.Halted {
			return mismatch("simple-add did not halt within 10 steps")
		}
		if result.StepsExecuted > 10 {
			return mismatch("simple-add reported %d steps for a request of 10", result.StepsExecuted)
		}
		if result.FinalState.A != 0x08 {
			return mismatch("expected A=$08 after $05+$03, got A=$%02X", result.FinalState.A)
		}

		stored, err := session.ReadMemory(ctx, 0x6000, 1)
		if err != nil {
			return err
		}
		if stored[0] != 0x08 {
			return mismatch("expected mem[$6000]=$08, got $%02X", stored[0])
		}

		return nil
	})
}

func (v *Verifier) checkCountdownLoop(ctx context.Context) error {
	program, _ := ProgramByName("countdown-loop")

	return v.withSession(ctx, func(session *emuhttp.Session) error {
		final, err := v.runToHalt(ctx, session, program)
		if err != nil {
			return err
		}
		if final.X != 0x00 {
			return mismatch("expected X=$00 after countdown, got X=$%02X", final.X)
		}

		stored, err := session.ReadMemory(ctx, 0x6001, 1)
		if err != nil {
			return err
		}
		if stored[0] != 0x00 {
			return mismatch("expected mem[$6001]=$00, got $%02X", stored[0])
		}

		return nil
	})
}

func (v *Verifier) checkCountUpLoop(ctx context.Context) error {
	program, _ := ProgramByName("count-up-loop")

	return v.withSession(ctx, func(session *emuhttp.Session) error {
		final, err := v.runToHalt(ctx, session, program)
		if err != nil {
			return err
		}
		if final.X != 0x05 {
			return mismatch("expected X=$05 after count-up, got X=$%02X", final.X)
		}
		if !final.Zero() {
			return mismatch("expected zero flag set after CPX #$05 match, got P=$%02X", final.Status)
		}
		return nil
	})
}

func (v *Verifier) checkMemoryCopy(ctx context.Context) error {
	program, _ := ProgramByName("memory-copy")

	return v.withSession(ctx, func(session *emuhttp.Session) error {
		final, err := v.runToHalt(ctx, session, program)
		if err != nil {
			return err
		}
		if final.Y != 0x08 {
			return mismatch("expected Y=$08 after copy loop, got Y=$%02X", final.Y)
		}

		copied, err := session.ReadMemory(ctx, 0x6000, 8)
		if err != nil {
			return err
		}
		if !bytes.Equal(copied, program.Bytes[:8]) {
			return mismatch("copied region differs from source: got % X, want % X", copied, program.Bytes[:8])
		}

		return nil
	})
}

func (v *Verifier) checkMemoryRoundtrip(ctx context.Context) error {
	return v.withSession(ctx, func(session *emuhttp.Session) error {
		payload := []byte{0x42, 0x43}
		if err := session.WriteMemory(ctx, 0x6002, payload); err != nil {
			return err
		}

		read, err := session.ReadMemory(ctx, 0x6002, len(payload))
		if err != nil {
			return err
		}
		if !bytes.Equal(read, payload) {
			return mismatch("roundtrip at $6002: wrote % X, read % X", payload, read)
		}

		return nil
	})
}

// checkSessionIsolation proves no shared mutable state leaks across
// sessions: two instances holding different values at the same address
// must read back independently.
func (v *Verifier) checkSessionIsolation(ctx context.Context) error {
	return v.withSession(ctx, func(first *emuhttp.Session) error {
		return v.withSession(ctx, func(second *emuhttp.Session) error {
			if first.ID == second.ID {
				return mismatch("service issued the same id for two create calls: %s", first.ID)
			}

			if err := first.WriteByte(ctx, 0x0000, 0xAA); err != nil {
				return err
			}
			if err := second.WriteByte(ctx, 0x0000, 0xBB); err != nil {
				return err
			}

			fromFirst, err := first.ReadMemory(ctx, 0x0000, 1)
			if err != nil {
				return err
			}
			fromSecond, err := second.ReadMemory(ctx, 0x0000, 1)
			if err != nil {
				return err
			}

			if fromFirst[0] != 0xAA || fromSecond[0] != 0xBB {
				return mismatch("sessions share state: read $%02X/$%02X, want $AA/$BB", fromFirst[0], fromSecond[0])
			}

			return nil
		})
	})
}

// checkDeleteIdempotence verifies a deleted id yields a defined error
// on reuse rather than a crash or a silent success.
func (v *Verifier) checkDeleteIdempotence(ctx context.Context) error {
	session, err := emuhttp.OpenSession(ctx, v.transport)
	if err != nil {
		return err
	}
	if err := session.Delete(ctx); err != nil {
		return err
	}

	err = session.Delete(ctx)
	if err == nil {
		return mismatch("second delete of %s succeeded; the id should be gone", session.ID)
	}

	var failure *domain.Failure
	if !errors.As(err, &failure) || failure.Kind != domain.FailureApplication {
		return mismatch("second delete of %s: expected an application error, got %v", session.ID, err)
	}

	return nil
}

func mismatch(format string, args ...any) error {
	return domain.NewFailure(domain.FailureSemanticMismatch, format, args...)
}
