package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/six502/emuctl/internal/adapters/emuhttp"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
)

type StressOptions struct {
	Sessions int
	Steps    int
}

func (o StressOptions) withDefaults() StressOptions {
	if o.Sessions <= 0 {
		o.Sessions = 3
	}
	if o.Steps <= 0 {
		o.Steps = 20
	}
	return o
}

// Stress creates several sessions and drives them in parallel. Each
// session handle is self-contained, so the goroutines only share the
// transport and the registry's membership lock.
func Stress(ctx context.Context, transport ports.Transport, registry *Registry, report *domain.Report, opts StressOptions) error {
	opts = opts.withDefaults()

	sessions := make([]*emuhttp.Session, 0, opts.Sessions)
	for i := 0; i < opts.Sessions; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRunAborted, err)
		}

		session, err := emuhttp.OpenSession(ctx, transport)
		if err != nil {
			report.Add(domain.ReportEntry{
				Feature:   fmt.Sprintf("stress/session-%d", i+1),
				Attempted: true,
				Verdict:   domain.VerdictFail,
				Detail:    err.Error(),
			})
			continue
		}
		if err := registry.Add(session); err != nil {
			return err
		}
		sessions = append(sessions, session)
	}

	results := make([]domain.ReportEntry, len(sessions))
	var wg sync.WaitGroup
	for i, session := range sessions {
		wg.Add(1)
		go func(i int, session *emuhttp.Session) {
			defer wg.Done()
			results[i] = stressOne(ctx, session, i, opts.Steps)
		}(i, session)
	}
	wg.Wait()

	for _, entry := range results {
		report.Add(entry)
	}

	return nil
}

func stressOne(ctx context.Context, session *emuhttp.Session, index, steps int) domain.ReportEntry {
	entry := domain.ReportEntry{
		Feature:   fmt.Sprintf("stress/session-%d", index+1),
		Attempted: true,
		Verdict:   domain.VerdictPass,
	}

	program := Catalogue[index%len(Catalogue)]
	fail := func(err error) domain.ReportEntry {
		entry.Verdict = domain.VerdictFail
		entry.Detail = err.Error()
		return entry
	}

	if err := session.Load(ctx, LoadAddress, program.Bytes); err != nil {
		return fail(err)
	}
	if err := session.SetResetVector(ctx, LoadAddress); err != nil {
		return fail(err)
	}
	if err := session.Reset(ctx); err != nil {
		return fail(err)
	}

	result, err := session.ExecuteN(ctx, steps)
	if err != nil {
		return fail(err)
	}
	if result.StepsExecuted > steps {
		return fail(domain.NewFailure(domain.FailureSemanticMismatch,
			"executed %d steps for a request of %d", result.StepsExecuted, steps))
	}

	entry.Detail = fmt.Sprintf("%s: %d/%d steps, halted=%v", program.Name, result.StepsExecuted, steps, result.Halted)
	return entry
}
