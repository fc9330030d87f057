package domain

import "time"

// RunRecord is the persisted summary of one completed run.
type RunRecord struct {
	ID             string
	BaseURL        string
	StartedAt      time.Time
	Duration       time.Duration
	Pass           int
	ExpectedAbsent int
	Fail           int
}
