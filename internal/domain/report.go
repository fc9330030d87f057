package domain

import "time"

type ReportEntry struct {
	Feature   string
	Attempted bool
	Verdict   Verdict
	Detail    string
}

// Report accumulates feature exercise results in run order. Insertion
// order is preserved for the human summary only.
type Report struct {
	StartedAt time.Time
	BaseURL   string
	Entries   []ReportEntry
}

func (r *Report) Add(entry ReportEntry) {
	r.Entries = append(r.Entries, entry)
}

func (r *Report) Record(feature string, class FeatureClass, outcome Outcome, detail string) Verdict {
	verdict := Classify(class, outcome)
	if detail == "" && outcome.Err != nil {
		detail = outcome.Err.Message
	}
	r.Add(ReportEntry{Feature: feature, Attempted: true, Verdict: verdict, Detail: detail})
	return verdict
}

func (r *Report) Counts() (pass, absent, fail int) {
	for _, entry := range r.Entries {
		switch entry.Verdict {
		case VerdictPass:
			pass++
		case VerdictExpectedAbsent:
			absent++
		case VerdictFail:
			fail++
		}
	}
	return pass, absent, fail
}

// OK reports whether the run should exit zero. ExpectedAbsent entries
// never affect exit status.
func (r *Report) OK() bool {
	_, _, fail := r.Counts()
	return fail == 0
}
