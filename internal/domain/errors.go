package domain

import "errors"

var (
	ErrSessionNotTracked = errors.New("session not tracked")
	ErrRunAborted        = errors.New("run aborted")
)
