package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/six502/emuctl/internal/adapters/emuhttp"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
)

// Runner sequences a full verification run: enterprise probes, the
// semantic verifier, the multi-session stress phase, then best-effort
// cleanup of everything the registry tracked.
type Runner struct {
	transport   ports.Transport
	registry    *Registry
	journal     ports.RunJournal
	credentials ports.CredentialStore
	clock       ports.Clock
	baseURL     string
}

func NewRunner(transport ports.Transport, registry *Registry, journal ports.RunJournal, credentials ports.CredentialStore, clock ports.Clock, baseURL string) *Runner {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Runner{
		transport:   transport,
		registry:    registry,
		journal:     journal,
		credentials: credentials,
		clock:       clock,
		baseURL:     baseURL,
	}
}

type RunOptions struct {
	SkipEnterprise bool
	Stress         StressOptions
}

func (r *Runner) newReport() *domain.Report {
	return &domain.Report{StartedAt: r.clock.Now(), BaseURL: r.baseURL}
}

// Run executes every phase. The returned report is valid even when err
// is non-nil; err signals an aborted run, not a failed exercise.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*domain.Report, error) {
	report := r.newReport()

	if !opts.SkipEnterprise {
		if err := r.probePhase(ctx, report); err != nil {
			r.cleanupPhase(ctx, report)
			return report, err
		}
	}

	verifier := NewVerifier(r.transport, r.registry)
	if err := verifier.Run(ctx, report); err != nil {
		r.cleanupPhase(ctx, report)
		return report, err
	}

	if err := Stress(ctx, r.transport, r.registry, report, opts.Stress); err != nil {
		r.cleanupPhase(ctx, report)
		return report, err
	}

	r.cleanupPhase(ctx, report)

	if err := r.appendJournal(ctx, report); err != nil {
		return report, err
	}

	return report, nil
}

// Probe runs only the enterprise capability sweep.
func (r *Runner) Probe(ctx context.Context) (*domain.Report, error) {
	report := r.newReport()
	err := r.probePhase(ctx, report)
	r.cleanupPhase(ctx, report)
	return report, err
}

// Verify runs only the execution verifier.
func (r *Runner) Verify(ctx context.Context) (*domain.Report, error) {
	report := r.newReport()
	verifier := NewVerifier(r.transport, r.registry)
	err := verifier.Run(ctx, report)
	r.cleanupPhase(ctx, report)
	return report, err
}

// StressOnly runs only the parallel multi-session phase.
func (r *Runner) StressOnly(ctx context.Context, opts StressOptions) (*domain.Report, error) {
	report := r.newReport()
	err := Stress(ctx, r.transport, r.registry, report, opts)
	r.cleanupPhase(ctx, report)
	return report, err
}

// probePhase opens one session so snapshot probes can target a live
// emulator; the probe itself tolerates running without one.
func (r *Runner) probePhase(ctx context.Context, report *domain.Report) error {
	var sessionID domain.SessionID
	if session, err := emuhttp.OpenSession(ctx, r.transport); err == nil {
		if err := r.registry.Add(session); err != nil {
			return err
		}
		sessionID = session.ID
	}

	probe := NewProbe(r.transport, r.credentials)
	return probe.Run(ctx, report, sessionID)
}

const cleanupGrace = 5 * time.Second

// cleanupPhase deletes every tracked session and reports leaks. It is
// attempted even after an aborted phase so sessions do not outlive the
// run silently; an already-cancelled context is replaced with a fresh
// short deadline so the deletes get a real attempt.
func (r *Runner) cleanupPhase(ctx context.Context, report *domain.Report) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), cleanupGrace)
		defer cancel()
	}

	leaks := r.registry.CleanupAll(ctx)
	for _, leak := range leaks {
		report.Add(domain.ReportEntry{
			Feature:   "cleanup/leaked-session",
			Attempted: true,
			Verdict:   domain.VerdictFail,
			Detail:    fmt.Sprintf("%s: %v", leak.ID, leak.Err),
		})
	}
}

func (r *Runner) appendJournal(ctx context.Context, report *domain.Report) error {
	if r.journal == nil {
		return nil
	}

	pass, absent, fail := report.Counts()
	record := domain.RunRecord{
		ID:             uuid.NewString(),
		BaseURL:        report.BaseURL,
		StartedAt:      report.StartedAt,
		Duration:       r.clock.Now().Sub(report.StartedAt),
		Pass:           pass,
		ExpectedAbsent: absent,
		Fail:           fail,
	}

	if err := r.journal.Append(ctx, record); err != nil {
		return fmt.Errorf("append run journal: %w", err)
	}
	return nil
}
